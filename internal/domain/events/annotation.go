package events

import "fmt"

// AnnotationAction - вид события рисования
type AnnotationAction string

const (
	ActionStart AnnotationAction = "start"
	ActionDraw  AnnotationAction = "draw"
	ActionStop  AnnotationAction = "stop"
	ActionShape AnnotationAction = "shape"
	ActionClear AnnotationAction = "clear"
	ActionUndo  AnnotationAction = "undo"
)

// Tool - инструмент рисования
type Tool string

const (
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolEraser      Tool = "eraser"
	ToolRectangle   Tool = "rectangle"
	ToolCircle      Tool = "circle"
	ToolArrow       Tool = "arrow"
)

// IsShape - фигуры рисуются одним событием shape по завершении жеста
func (t Tool) IsShape() bool {
	return t == ToolRectangle || t == ToolCircle || t == ToolArrow
}

// AnnotationEvent - одно инкрементальное действие на общем холсте.
// Набор полей зависит от Action:
//
//	start: Tool, Color, BrushSize, X, Y
//	draw:  Tool, Color, BrushSize, FromX, FromY, ToX, ToY
//	shape: Tool, Color, BrushSize, StartX, StartY, EndX, EndY
//	stop, clear, undo: без полей
type AnnotationEvent struct {
	Action    AnnotationAction `json:"action"`
	Tool      Tool             `json:"tool,omitempty"`
	Color     string           `json:"color,omitempty"`
	BrushSize float64          `json:"brushSize,omitempty"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	FromX float64 `json:"fromX,omitempty"`
	FromY float64 `json:"fromY,omitempty"`
	ToX   float64 `json:"toX,omitempty"`
	ToY   float64 `json:"toY,omitempty"`

	StartX float64 `json:"startX,omitempty"`
	StartY float64 `json:"startY,omitempty"`
	EndX   float64 `json:"endX,omitempty"`
	EndY   float64 `json:"endY,omitempty"`
}

// Validate проверяет только тег события, содержимое сервер не разбирает
func (e AnnotationEvent) Validate() error {
	switch e.Action {
	case ActionStart, ActionDraw, ActionStop, ActionShape, ActionClear, ActionUndo:
		return nil
	default:
		return fmt.Errorf("unknown annotation action %q", e.Action)
	}
}

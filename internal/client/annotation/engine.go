package annotation

import (
	"image"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/qrave1/RoomCall/internal/domain/events"
)

const (
	arrowHeadLength = 15
	arrowHeadAngle  = math.Pi / 6

	highlighterAlpha = "80"
	highlighterScale = 3

	defaultBrushSize = 3
)

// Emitter получает события, которые нужно разослать остальным участникам
type Emitter func(event events.AnnotationEvent)

// Engine - локальный холст одного клиента. Локальные жесты рисуют и порождают
// события, HandleRemote воспроизводит чужие события и ничего не рассылает.
type Engine struct {
	mu sync.Mutex

	canvas *image.RGBA
	dc     *gg.Context

	localID   string
	tool      events.Tool
	color     string
	brushSize float64

	colors  *colorTable
	history history

	drawing        bool
	startX, startY float64
	lastX, lastY   float64

	emit Emitter
}

func New(width, height int, localID string, emit Emitter) *Engine {
	if emit == nil {
		emit = func(events.AnnotationEvent) {}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	e := &Engine{
		canvas:    canvas,
		dc:        gg.NewContextForRGBA(canvas),
		localID:   localID,
		tool:      events.ToolPen,
		brushSize: defaultBrushSize,
		colors:    newColorTable(),
		emit:      emit,
	}

	e.color = e.colors.assign(localID)
	e.history.push(canvas.Pix)

	return e
}

func (e *Engine) SetTool(tool events.Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tool = tool
}

// SetColor меняет цвет локального автора и его запись в таблице цветов
func (e *Engine) SetColor(color string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.color = color
	e.colors.set(e.localID, color)
}

func (e *Engine) SetBrushSize(size float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if size > 0 {
		e.brushSize = size
	}
}

func (e *Engine) Color() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.color
}

func (e *Engine) ColorOf(sessionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.colors.get(sessionID)
}

// ForgetColor освобождает цвет ушедшего участника
func (e *Engine) ForgetColor(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sessionID != e.localID {
		e.colors.remove(sessionID)
	}
}

// Image возвращает копию холста
func (e *Engine) Image() *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := image.NewRGBA(e.canvas.Rect)
	copy(out.Pix, e.canvas.Pix)

	return out
}

func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.len()
}

func (e *Engine) Begin(x, y float64) {
	e.mu.Lock()

	e.drawing = true
	e.startX, e.startY = x, y
	e.lastX, e.lastY = x, y

	ev := events.AnnotationEvent{
		Action:    events.ActionStart,
		Tool:      e.tool,
		Color:     e.color,
		BrushSize: e.brushSize,
		X:         x,
		Y:         y,
	}
	e.mu.Unlock()

	e.emit(ev)
}

// Move продолжает жест. Фигуры рисуются только в End.
func (e *Engine) Move(x, y float64) {
	e.mu.Lock()

	if !e.drawing {
		e.mu.Unlock()
		return
	}

	if e.tool.IsShape() {
		e.lastX, e.lastY = x, y
		e.mu.Unlock()
		return
	}

	ev := events.AnnotationEvent{
		Action:    events.ActionDraw,
		Tool:      e.tool,
		Color:     e.color,
		BrushSize: e.brushSize,
		FromX:     e.lastX,
		FromY:     e.lastY,
		ToX:       x,
		ToY:       y,
	}

	e.segment(ev.Tool, ev.Color, ev.BrushSize, ev.FromX, ev.FromY, ev.ToX, ev.ToY)
	e.lastX, e.lastY = x, y
	e.mu.Unlock()

	e.emit(ev)
}

func (e *Engine) End() {
	e.mu.Lock()

	if !e.drawing {
		e.mu.Unlock()
		return
	}

	e.drawing = false

	var pending []events.AnnotationEvent

	if e.tool.IsShape() {
		shape := events.AnnotationEvent{
			Action:    events.ActionShape,
			Tool:      e.tool,
			Color:     e.color,
			BrushSize: e.brushSize,
			StartX:    e.startX,
			StartY:    e.startY,
			EndX:      e.lastX,
			EndY:      e.lastY,
		}

		e.shape(shape)
		pending = append(pending, shape)
	}

	e.history.push(e.canvas.Pix)
	pending = append(pending, events.AnnotationEvent{Action: events.ActionStop})
	e.mu.Unlock()

	for _, ev := range pending {
		e.emit(ev)
	}
}

func (e *Engine) Clear() {
	e.mu.Lock()
	e.clearLocked()
	e.mu.Unlock()

	e.emit(events.AnnotationEvent{Action: events.ActionClear})
}

// Undo откатывает последний снимок. Если остался только начальный, работает как Clear.
func (e *Engine) Undo() {
	e.mu.Lock()

	if e.undoLocked() {
		e.mu.Unlock()
		e.emit(events.AnnotationEvent{Action: events.ActionUndo})

		return
	}

	e.clearLocked()
	e.mu.Unlock()

	e.emit(events.AnnotationEvent{Action: events.ActionClear})
}

// HandleRemote воспроизводит событие другого участника. Цвет берется из таблицы,
// а при первой встрече с автором - из события, и запоминается.
func (e *Engine) HandleRemote(senderID string, ev events.AnnotationEvent) {
	if senderID == e.localID {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	color := ev.Color
	if known, ok := e.colors.get(senderID); ok {
		color = known
	} else if color != "" {
		e.colors.set(senderID, color)
	}

	if color == "" {
		color = e.colors.assign(senderID)
	}

	size := ev.BrushSize
	if size <= 0 {
		size = defaultBrushSize
	}

	switch ev.Action {
	case events.ActionStart:
		// Начало жеста ничего не рисует

	case events.ActionDraw:
		e.segment(ev.Tool, color, size, ev.FromX, ev.FromY, ev.ToX, ev.ToY)

	case events.ActionShape:
		ev.Color, ev.BrushSize = color, size
		e.shape(ev)

	case events.ActionStop:
		e.history.push(e.canvas.Pix)

	case events.ActionClear:
		e.clearLocked()

	case events.ActionUndo:
		if !e.undoLocked() {
			e.clearLocked()
		}
	}
}

func (e *Engine) clearLocked() {
	clear(e.canvas.Pix)
	e.history.push(e.canvas.Pix)
}

func (e *Engine) undoLocked() bool {
	prev, ok := e.history.pop()
	if !ok {
		return false
	}

	copy(e.canvas.Pix, prev)

	return true
}

func (e *Engine) segment(tool events.Tool, color string, size, fromX, fromY, toX, toY float64) {
	switch tool {
	case events.ToolEraser:
		e.erase(size, fromX, fromY, toX, toY)
		return
	case events.ToolHighlighter:
		e.dc.SetHexColor(color + highlighterAlpha)
		e.dc.SetLineWidth(size * highlighterScale)
	default:
		e.dc.SetHexColor(color)
		e.dc.SetLineWidth(size)
	}

	e.dc.SetLineCap(gg.LineCapRound)
	e.dc.SetLineJoin(gg.LineJoinRound)
	e.dc.DrawLine(fromX, fromY, toX, toY)
	e.dc.Stroke()
}

// shape рисует контур фигуры без заливки
func (e *Engine) shape(ev events.AnnotationEvent) {
	e.dc.SetHexColor(ev.Color)
	e.dc.SetLineWidth(ev.BrushSize)
	e.dc.SetLineCap(gg.LineCapButt)
	e.dc.SetLineJoin(gg.LineJoinRound)

	switch ev.Tool {
	case events.ToolRectangle:
		x, y := math.Min(ev.StartX, ev.EndX), math.Min(ev.StartY, ev.EndY)
		e.dc.DrawRectangle(x, y, math.Abs(ev.EndX-ev.StartX), math.Abs(ev.EndY-ev.StartY))
		e.dc.Stroke()

	case events.ToolCircle:
		radius := math.Hypot(ev.EndX-ev.StartX, ev.EndY-ev.StartY)
		e.dc.DrawCircle(ev.StartX, ev.StartY, radius)
		e.dc.Stroke()

	case events.ToolArrow:
		angle := math.Atan2(ev.EndY-ev.StartY, ev.EndX-ev.StartX)

		e.dc.DrawLine(ev.StartX, ev.StartY, ev.EndX, ev.EndY)
		e.dc.Stroke()

		for _, side := range []float64{-arrowHeadAngle, arrowHeadAngle} {
			e.dc.DrawLine(
				ev.EndX,
				ev.EndY,
				ev.EndX-arrowHeadLength*math.Cos(angle+side),
				ev.EndY-arrowHeadLength*math.Sin(angle+side),
			)
			e.dc.Stroke()
		}
	}
}

// erase стирает прозрачностью: gg не умеет destination-out, поэтому штрих
// рисуется в маску, а альфа холста уменьшается пропорционально маске
func (e *Engine) erase(size, fromX, fromY, toX, toY float64) {
	bounds := e.canvas.Bounds()

	mask := gg.NewContext(bounds.Dx(), bounds.Dy())
	mask.SetRGBA(0, 0, 0, 1)
	mask.SetLineWidth(size)
	mask.SetLineCap(gg.LineCapRound)
	mask.DrawLine(fromX, fromY, toX, toY)
	mask.Stroke()

	m, ok := mask.Image().(*image.RGBA)
	if !ok {
		return
	}

	pad := size/2 + 1
	area := image.Rect(
		int(math.Floor(math.Min(fromX, toX)-pad)),
		int(math.Floor(math.Min(fromY, toY)-pad)),
		int(math.Ceil(math.Max(fromX, toX)+pad)),
		int(math.Ceil(math.Max(fromY, toY)+pad)),
	).Intersect(bounds)

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			ma := uint32(m.Pix[m.PixOffset(x, y)+3])
			if ma == 0 {
				continue
			}

			// RGBA хранит premultiplied значения, поэтому масштабируются все четыре канала
			i := e.canvas.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				e.canvas.Pix[i+c] = uint8(uint32(e.canvas.Pix[i+c]) * (255 - ma) / 255)
			}
		}
	}
}

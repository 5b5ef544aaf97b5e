package annotation

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomCall/internal/domain/events"
)

type recorder struct {
	mu     sync.Mutex
	events []events.AnnotationEvent
}

func (r *recorder) emit(ev events.AnnotationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recorder) actions() []events.AnnotationAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]events.AnnotationAction, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}

	return out
}

func alphaAt(img *image.RGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(x, y)+3]
}

func redAt(img *image.RGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(x, y)]
}

func isBlank(img *image.RGBA) bool {
	for _, b := range img.Pix {
		if b != 0 {
			return false
		}
	}

	return true
}

func TestRemoteRectangleMatchesSenderGeometry(t *testing.T) {
	t.Parallel()

	sent := &recorder{}
	sender := New(100, 80, "x", sent.emit)
	sender.SetTool(events.ToolRectangle)
	sender.SetColor("#ff0000")
	sender.SetBrushSize(2)

	sender.Begin(10, 10)
	sender.Move(30, 20)
	sender.Move(50, 40)
	sender.End()

	require.Equal(t, []events.AnnotationAction{events.ActionStart, events.ActionShape, events.ActionStop}, sent.actions())

	shape := sent.events[1]
	assert.Equal(t, 40.0, shape.EndX-shape.StartX)
	assert.Equal(t, 30.0, shape.EndY-shape.StartY)

	received := &recorder{}
	receiver := New(100, 80, "y", received.emit)
	for _, ev := range sent.events {
		receiver.HandleRemote("x", ev)
	}

	img := receiver.Image()

	// Контур без заливки
	assert.Greater(t, redAt(img, 30, 10), uint8(200))
	assert.Greater(t, alphaAt(img, 30, 10), uint8(200))
	assert.Greater(t, alphaAt(img, 10, 25), uint8(200))
	assert.Greater(t, alphaAt(img, 50, 25), uint8(200))
	assert.Greater(t, alphaAt(img, 30, 40), uint8(200))
	assert.Zero(t, alphaAt(img, 30, 25))
	assert.Zero(t, alphaAt(img, 5, 25))
	assert.Zero(t, alphaAt(img, 55, 25))
	assert.Zero(t, alphaAt(img, 30, 45))

	assert.Equal(t, sender.Image().Pix, img.Pix)

	// Воспроизведение не порождает событий
	assert.Empty(t, received.actions())

	color, ok := receiver.ColorOf("x")
	require.True(t, ok)
	assert.Equal(t, "#ff0000", color)
}

func TestUndoWithOnlyInitialSnapshotClears(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	engine := New(40, 40, "x", rec.emit)
	require.Equal(t, 1, engine.HistoryLen())

	engine.Undo()

	assert.Equal(t, []events.AnnotationAction{events.ActionClear}, rec.actions())
	assert.True(t, isBlank(engine.Image()))
	assert.Equal(t, 2, engine.HistoryLen())
}

func TestUndoRestoresPreviousSnapshot(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	engine := New(40, 40, "x", rec.emit)

	engine.Begin(5, 5)
	engine.Move(35, 35)
	engine.End()

	require.False(t, isBlank(engine.Image()))
	require.Equal(t, 2, engine.HistoryLen())

	engine.Undo()

	assert.True(t, isBlank(engine.Image()))
	assert.Equal(t, 1, engine.HistoryLen())
	assert.Equal(t, []events.AnnotationAction{
		events.ActionStart,
		events.ActionDraw,
		events.ActionStop,
		events.ActionUndo,
	}, rec.actions())
}

func TestRemoteUndoFollowsSender(t *testing.T) {
	t.Parallel()

	sent := &recorder{}
	sender := New(40, 40, "x", sent.emit)
	receiver := New(40, 40, "y", nil)

	sender.Begin(5, 5)
	sender.Move(35, 5)
	sender.End()
	sender.Begin(5, 20)
	sender.Move(35, 20)
	sender.End()
	sender.Undo()

	for _, ev := range sent.events {
		receiver.HandleRemote("x", ev)
	}

	assert.Equal(t, sender.Image().Pix, receiver.Image().Pix)
	assert.NotZero(t, alphaAt(receiver.Image(), 20, 5))
	assert.Zero(t, alphaAt(receiver.Image(), 20, 20))
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()

	engine := New(20, 20, "x", nil)

	for i := 0; i < MaxHistory+10; i++ {
		engine.Begin(1, 1)
		engine.Move(10, 10)
		engine.End()
	}

	assert.Equal(t, MaxHistory, engine.HistoryLen())
}

func TestRemoteColorSeededOnFirstSight(t *testing.T) {
	t.Parallel()

	receiver := New(40, 40, "y", nil)

	receiver.HandleRemote("x", events.AnnotationEvent{
		Action: events.ActionDraw, Tool: events.ToolPen, Color: "#ff0000", BrushSize: 4,
		FromX: 5, FromY: 10, ToX: 35, ToY: 10,
	})

	// Автор сменил цвет, но у получателя он остается красным
	receiver.HandleRemote("x", events.AnnotationEvent{
		Action: events.ActionDraw, Tool: events.ToolPen, Color: "#0000ff", BrushSize: 4,
		FromX: 5, FromY: 30, ToX: 35, ToY: 30,
	})

	img := receiver.Image()
	assert.Greater(t, redAt(img, 20, 30), uint8(200))
	assert.Zero(t, img.Pix[img.PixOffset(20, 30)+2])

	color, ok := receiver.ColorOf("x")
	require.True(t, ok)
	assert.Equal(t, "#ff0000", color)
}

func TestUncoloredAuthorsGetPaletteThenWrap(t *testing.T) {
	t.Parallel()

	engine := New(10, 10, "me", nil)
	assert.Equal(t, Palette[0], engine.Color())

	seen := func(id string) string {
		engine.HandleRemote(id, events.AnnotationEvent{Action: events.ActionStart})

		color, ok := engine.ColorOf(id)
		require.True(t, ok)

		return color
	}

	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, Palette[i+1], seen(id))
	}

	// Палитра исчерпана: цвет по модулю
	assert.Equal(t, Palette[7%len(Palette)], seen("g"))

	// Повторное событие не меняет цвет
	assert.Equal(t, Palette[1], seen("a"))

	engine.ForgetColor("c")
	assert.Equal(t, Palette[3], seen("h"))
}

func TestHighlighterIsTranslucentAndWide(t *testing.T) {
	t.Parallel()

	engine := New(60, 60, "x", nil)

	engine.HandleRemote("z", events.AnnotationEvent{
		Action: events.ActionDraw, Tool: events.ToolHighlighter, Color: "#00ff00", BrushSize: 4,
		FromX: 10, FromY: 30, ToX: 50, ToY: 30,
	})

	img := engine.Image()

	a := alphaAt(img, 30, 30)
	assert.InDelta(t, 0x80, int(a), 2)

	// Ширина 3x: 12px, то есть края на 24 и 36
	assert.NotZero(t, alphaAt(img, 30, 25))
	assert.Zero(t, alphaAt(img, 30, 20))
}

func TestEraserClearsAlpha(t *testing.T) {
	t.Parallel()

	engine := New(60, 60, "x", nil)
	engine.SetBrushSize(20)

	engine.Begin(5, 30)
	engine.Move(55, 30)
	engine.End()
	require.Greater(t, alphaAt(engine.Image(), 30, 30), uint8(200))

	engine.HandleRemote("z", events.AnnotationEvent{
		Action: events.ActionDraw, Tool: events.ToolEraser, Color: "#000000", BrushSize: 10,
		FromX: 30, FromY: 10, ToX: 30, ToY: 50,
	})

	img := engine.Image()
	assert.Zero(t, alphaAt(img, 30, 30))
	assert.Greater(t, alphaAt(img, 10, 30), uint8(200))
}

func TestRemoteEventsFromSelfAreIgnored(t *testing.T) {
	t.Parallel()

	engine := New(20, 20, "x", nil)
	engine.HandleRemote("x", events.AnnotationEvent{Action: events.ActionClear})

	assert.Equal(t, 1, engine.HistoryLen())
}

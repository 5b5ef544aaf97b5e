package annotation

// Palette - цвета, которые по очереди раздаются участникам
var Palette = []string{"#4CAF50", "#2196F3", "#FF9800", "#9C27B0", "#F44336", "#00BCD4", "#FFEB3B"}

// colorTable - закрепленный за каждым автором цвет
type colorTable struct {
	colors map[string]string
}

func newColorTable() *colorTable {
	return &colorTable{colors: make(map[string]string)}
}

func (t *colorTable) get(sessionID string) (string, bool) {
	c, ok := t.colors[sessionID]
	return c, ok
}

func (t *colorTable) set(sessionID, color string) {
	t.colors[sessionID] = color
}

// assign выдает первый свободный цвет палитры, а когда палитра кончилась -
// цвет по модулю числа уже известных авторов
func (t *colorTable) assign(sessionID string) string {
	if c, ok := t.colors[sessionID]; ok {
		return c
	}

	used := make(map[string]struct{}, len(t.colors))
	for _, c := range t.colors {
		used[c] = struct{}{}
	}

	color := Palette[len(t.colors)%len(Palette)]
	for _, c := range Palette {
		if _, taken := used[c]; !taken {
			color = c
			break
		}
	}

	t.colors[sessionID] = color

	return color
}

func (t *colorTable) remove(sessionID string) {
	delete(t.colors, sessionID)
}

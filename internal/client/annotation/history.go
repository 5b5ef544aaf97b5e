package annotation

// MaxHistory - глубина undo, самые старые снимки вытесняются
const MaxHistory = 20

// history хранит копии пикселей холста
type history struct {
	snapshots [][]uint8
}

func (h *history) push(pix []uint8) {
	snapshot := make([]uint8, len(pix))
	copy(snapshot, pix)

	h.snapshots = append(h.snapshots, snapshot)

	if len(h.snapshots) > MaxHistory {
		// Обнуляем ссылку, чтобы старый снимок не держался в массиве
		h.snapshots[0] = nil
		h.snapshots = h.snapshots[1:]
	}
}

// pop убирает последний снимок и возвращает предыдущий
func (h *history) pop() ([]uint8, bool) {
	if len(h.snapshots) < 2 {
		return nil, false
	}

	h.snapshots = h.snapshots[:len(h.snapshots)-1]

	return h.snapshots[len(h.snapshots)-1], true
}

func (h *history) len() int {
	return len(h.snapshots)
}

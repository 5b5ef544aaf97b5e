package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/domain/models"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
)

// recordingWS - синхронная замена очередей сокетов
type recordingWS struct {
	mu    sync.Mutex
	conns map[string][]events.Message
}

func newRecordingWS(ids ...string) *recordingWS {
	r := &recordingWS{conns: make(map[string][]events.Message)}
	for _, id := range ids {
		r.conns[id] = nil
	}

	return r
}

func (r *recordingWS) Add(sessionID string, _ memory.WSConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[sessionID] = nil
}

func (r *recordingWS) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, sessionID)
}

func (r *recordingWS) Write(sessionID string, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[sessionID]; !ok {
		return false
	}

	r.conns[sessionID] = append(r.conns[sessionID], payload.(events.Message))

	return true
}

func (r *recordingWS) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.conns[sessionID]
	return ok
}

// take возвращает и очищает сообщения сессии
func (r *recordingWS) take(sessionID string) []events.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.conns[sessionID]
	if _, ok := r.conns[sessionID]; ok {
		r.conns[sessionID] = nil
	}

	return msgs
}

func types(msgs []events.Message) []events.Type {
	out := make([]events.Type, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}

	return out
}

func decode[T any](t *testing.T, msg events.Message) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))

	return v
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []models.JournalEntry
}

func (f *fakeJournal) Record(_ context.Context, entry models.JournalEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, entry)
}

func (f *fakeJournal) History(context.Context, string, int) ([]models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.JournalEntry(nil), f.entries...), nil
}

func (f *fakeJournal) Run(ctx context.Context) { <-ctx.Done() }

func (f *fakeJournal) events() []models.JournalEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.JournalEvent, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Event)
	}

	return out
}

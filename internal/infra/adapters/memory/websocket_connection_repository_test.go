package memory

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	block    chan struct{}
	failErr  error
	closed   bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return f.failErr
	}

	if messageType == websocket.TextMessage {
		f.messages = append(f.messages, data)
	}

	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *fakeConn) snapshot() ([][]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([][]byte(nil), f.messages...), f.closed
}

func TestWSConnectionRepositoryPreservesOrder(t *testing.T) {
	t.Parallel()

	repo := NewWSConnectionRepository(128, 0)
	conn := &fakeConn{}
	repo.Add("a", conn)
	t.Cleanup(func() { repo.Remove("a") })

	for i := 0; i < 100; i++ {
		require.True(t, repo.Write("a", map[string]int{"n": i}))
	}

	require.Eventually(t, func() bool {
		msgs, _ := conn.snapshot()
		return len(msgs) == 100
	}, time.Second, 5*time.Millisecond)

	msgs, _ := conn.snapshot()
	for i, raw := range msgs {
		var got map[string]int
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, i, got["n"])
	}
}

func TestWSConnectionRepositoryWriteToUnknownIsDropped(t *testing.T) {
	t.Parallel()

	repo := NewWSConnectionRepository(8, 0)
	assert.False(t, repo.Write("ghost", map[string]string{"type": "offer"}))
	assert.False(t, repo.Has("ghost"))

	repo.Add("a", &fakeConn{})
	assert.True(t, repo.Has("a"))

	repo.Remove("a")
	assert.False(t, repo.Has("a"))
	assert.False(t, repo.Write("a", "late"))
}

func TestWSConnectionRepositoryOverflowClosesConnection(t *testing.T) {
	t.Parallel()

	repo := NewWSConnectionRepository(1, 0)
	conn := &fakeConn{block: make(chan struct{})}
	repo.Add("a", conn)
	t.Cleanup(func() {
		close(conn.block)
		repo.Remove("a")
	})

	delivered := 0
	for i := 0; i < 5; i++ {
		if repo.Write("a", i) {
			delivered++
		}
	}

	assert.Less(t, delivered, 5)

	_, closed := conn.snapshot()
	assert.True(t, closed)
}

func TestWSConnectionRepositoryWriteErrorClosesConnection(t *testing.T) {
	t.Parallel()

	repo := NewWSConnectionRepository(4, 0)
	conn := &fakeConn{failErr: errors.New("broken pipe")}
	repo.Add("a", conn)
	t.Cleanup(func() { repo.Remove("a") })

	require.True(t, repo.Write("a", "hello"))

	require.Eventually(t, func() bool {
		_, closed := conn.snapshot()
		return closed
	}, time.Second, 5*time.Millisecond)
}

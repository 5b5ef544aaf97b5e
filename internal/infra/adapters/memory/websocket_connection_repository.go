package memory

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/application/metric"
)

const writeWait = 10 * time.Second

// WSConn - часть *websocket.Conn, которая нужна писателю
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// WebsocketConnectionRepository интерфейс для работы с активными сессиями в памяти.
// Каждое соединение получает свою FIFO очередь, поэтому порядок Write для одного
// адресата сохраняется.
type WebsocketConnectionRepository interface {
	Add(sessionID string, conn WSConn)
	Remove(sessionID string)

	// Write ставит payload в очередь. false - адресата нет или очередь переполнена.
	Write(sessionID string, payload any) bool
	Has(sessionID string) bool
}

type outbound struct {
	conn  WSConn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (o *outbound) stop() {
	o.once.Do(func() { close(o.done) })
}

type wsConnectionRepository struct {
	// wsConns хранит map[session_id]*outbound
	wsConns map[string]*outbound

	queueSize    int
	pingInterval time.Duration

	mu sync.RWMutex
}

func NewWSConnectionRepository(queueSize int, pingInterval time.Duration) WebsocketConnectionRepository {
	return &wsConnectionRepository{
		wsConns:      make(map[string]*outbound, 10),
		queueSize:    queueSize,
		pingInterval: pingInterval,
	}
}

func (w *wsConnectionRepository) Add(sessionID string, conn WSConn) {
	out := &outbound{
		conn:  conn,
		queue: make(chan []byte, w.queueSize),
		done:  make(chan struct{}),
	}

	w.mu.Lock()
	prev, exists := w.wsConns[sessionID]
	w.wsConns[sessionID] = out
	w.mu.Unlock()

	if exists {
		prev.stop()
	} else {
		// Увеличиваем счетчик активных WS соединений
		metric.IncrementWSActiveConnections()
	}

	go w.writePump(sessionID, out)
}

func (w *wsConnectionRepository) Remove(sessionID string) {
	w.mu.Lock()
	out, exists := w.wsConns[sessionID]
	if exists {
		delete(w.wsConns, sessionID)
	}
	w.mu.Unlock()

	if !exists {
		return
	}

	out.stop()

	// Уменьшаем счетчик активных WS соединений
	metric.DecrementWSActiveConnections()
}

func (w *wsConnectionRepository) Write(sessionID string, payload any) bool {
	out, ok := w.getOutbound(sessionID)
	if !ok {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error(
			"marshal websocket payload",
			slog.Any(constant.Error, err),
			slog.String(constant.SessionID, sessionID),
		)
		return false
	}

	select {
	case <-out.done:
		return false
	default:
	}

	select {
	case out.queue <- data:
		return true
	default:
		// Медленный клиент: закрываем сокет, читатель увидит ошибку и выполнит leave
		slog.Warn("websocket send queue overflow", slog.String(constant.SessionID, sessionID))
		out.stop()
		_ = out.conn.Close()

		return false
	}
}

func (w *wsConnectionRepository) Has(sessionID string) bool {
	_, ok := w.getOutbound(sessionID)
	return ok
}

func (w *wsConnectionRepository) getOutbound(sessionID string) (*outbound, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out, ok := w.wsConns[sessionID]
	return out, ok
}

// writePump - единственный писатель в сокет: сообщения из очереди и ping
func (w *wsConnectionRepository) writePump(sessionID string, out *outbound) {
	var tick <-chan time.Time

	if w.pingInterval > 0 {
		ticker := time.NewTicker(w.pingInterval)
		defer ticker.Stop()

		tick = ticker.C
	}

	for {
		select {
		case <-out.done:
			return

		case data := <-out.queue:
			_ = out.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := out.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Error(
					"write to websocket",
					slog.Any(constant.Error, err),
					slog.String(constant.SessionID, sessionID),
				)
				_ = out.conn.Close()

				return
			}

		case <-tick:
			_ = out.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := out.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Error("ping failed", slog.Any(constant.Error, err), slog.String(constant.SessionID, sessionID))
				_ = out.conn.Close()

				return
			}
		}
	}
}

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/domain/events"
)

const writeWait = 10 * time.Second

var ErrClosed = errors.New("signaling connection closed")

// Handler вызывается из цикла чтения, поэтому не должен блокироваться надолго
type Handler func(msg events.Message)

// Client - клиентская сторона сигнального сокета
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	// writeMu - gorilla допускает только одного писателя
	writeMu sync.Mutex

	mu        sync.RWMutex
	handlers  map[events.Type][]Handler
	sessionID string

	closeOnce sync.Once
	closed    chan struct{}
}

func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}

	return &Client{
		conn:     conn,
		logger:   logger,
		handlers: make(map[events.Type][]Handler),
		closed:   make(chan struct{}),
	}, nil
}

// On подписывает handler на тип сообщения. Вызывать до Run.
func (c *Client) On(t events.Type, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[t] = append(c.handlers[t], h)
}

// SessionID - идентификатор, выданный сервером в connected
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sessionID
}

func (c *Client) Send(t events.Type, payload any) error {
	msg, err := events.New(t, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err = c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", t, err)
	}

	return nil
}

// Run читает сообщения до ошибки сокета или отмены ctx
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		var msg events.Message

		if err := c.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			select {
			case <-c.closed:
				return nil
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}

			return fmt.Errorf("read signaling message: %w", err)
		}

		if msg.Type == events.TypeConnected {
			var connected events.ConnectedEvent
			if err := msg.Decode(&connected); err == nil {
				c.mu.Lock()
				c.sessionID = connected.SessionID
				c.mu.Unlock()
			}
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg events.Message) {
	c.mu.RLock()
	handlers := c.handlers[msg.Type]
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("unhandled signaling message", slog.String(constant.MessageType, msg.Type.String()))
		return
	}

	for _, h := range handlers {
		h(msg)
	}
}

// Close отправляет close frame и закрывает сокет. Повторный вызов безопасен.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.conn.Close()
	})

	return err
}

// Decode - помощник для обработчиков с типизированным payload
func Decode[T any](msg events.Message) (T, error) {
	var v T
	if len(msg.Data) == 0 {
		return v, nil
	}

	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}

	return v, nil
}

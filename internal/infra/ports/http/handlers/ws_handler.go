package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/RoomCall/internal/application/config"
	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/application/metric"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
	"github.com/qrave1/RoomCall/internal/usecase"
)

// maxMessageSize ограничивает входящее сообщение, снимки для анализа тоже проходят через сокет
const maxMessageSize = 8 << 20

type WebSocketHandler struct {
	upgrader    *websocket.Upgrader
	readTimeout time.Duration

	wsRepo memory.WebsocketConnectionRepository

	presenceUsecase      usecase.PresenceUsecase
	relayUsecase         usecase.RelayUsecase
	collaborationUsecase usecase.CollaborationUsecase
}

func NewWebSocketHandler(
	cfg *config.Config,
	wsRepo memory.WebsocketConnectionRepository,
	presenceUsecase usecase.PresenceUsecase,
	relayUsecase usecase.RelayUsecase,
	collaborationUsecase usecase.CollaborationUsecase,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				origin := r.Header.Get("Origin")

				return origin == "" || origin == cfg.Domain
			},
		},
		readTimeout:          cfg.WS.ReadTimeout,
		wsRepo:               wsRepo,
		presenceUsecase:      presenceUsecase,
		relayUsecase:         relayUsecase,
		collaborationUsecase: collaborationUsecase,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}

	sessionID := uuid.NewString()
	ctx := c.Request().Context()

	h.wsRepo.Add(sessionID, ws)

	defer func() {
		// Отключение сокета равносильно leave. Контекст запроса к этому моменту может быть отменен.
		if err := h.presenceUsecase.HandleLeave(context.WithoutCancel(ctx), sessionID); err != nil {
			slog.Error(
				"handle leave on disconnect",
				slog.Any(constant.Error, err),
				slog.String(constant.SessionID, sessionID),
			)
		}

		h.wsRepo.Remove(sessionID)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)

	if err = ws.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		return nil
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	slog.Info("Client connected", slog.String(constant.SessionID, sessionID))

	h.presenceUsecase.HandleConnect(ctx, sessionID)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			h.handleWebsocketError(sessionID, err)

			return nil
		}

		// Любое входящее сообщение продлевает жизнь сокета
		_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout))

		var msg events.Message

		if err = json.Unmarshal(raw, &msg); err != nil {
			slog.Warn(
				"unmarshal websocket message",
				slog.Any(constant.Error, err),
				slog.String(constant.SessionID, sessionID),
			)
			h.reject(sessionID, "malformed message")

			continue
		}

		if !msg.Type.Inbound() {
			slog.Warn(
				"unknown message type",
				slog.String(constant.MessageType, msg.Type.String()),
				slog.String(constant.SessionID, sessionID),
			)
			h.reject(sessionID, fmt.Sprintf("unknown message type %q", msg.Type))

			continue
		}

		metric.RecordSignalingMessage(msg.Type.String())

		err = h.handleMessage(ctx, sessionID, msg)
		if errors.Is(err, errInvalidPayload) {
			slog.Warn(
				"invalid message payload",
				slog.Any(constant.Error, err),
				slog.String(constant.MessageType, msg.Type.String()),
				slog.String(constant.SessionID, sessionID),
			)
			h.reject(sessionID, fmt.Sprintf("%s: %v", msg.Type, err))

			continue
		}

		if err != nil {
			slog.Error(
				"handle message",
				slog.Any(constant.Error, err),
				slog.String(constant.MessageType, msg.Type.String()),
				slog.String(constant.SessionID, sessionID),
			)
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, sessionID string, msg events.Message) error {
	switch msg.Type {
	case events.TypeJoin:
		var joinEvent events.JoinEvent

		if err := decodePayload(msg, &joinEvent); err != nil {
			return err
		}

		if err := h.presenceUsecase.HandleJoin(ctx, sessionID, joinEvent); err != nil {
			return fmt.Errorf("handle join: %w", err)
		}

	case events.TypeLeave:
		if err := h.presenceUsecase.HandleLeave(ctx, sessionID); err != nil {
			return fmt.Errorf("handle leave: %w", err)
		}

	case events.TypeMuteUser, events.TypeUnmuteUser:
		var command events.HostCommandEvent

		if err := decodePayload(msg, &command); err != nil {
			return err
		}

		h.presenceUsecase.HandleMute(ctx, sessionID, command.TargetUserID, msg.Type == events.TypeMuteUser)

	case events.TypeChangeHost:
		var changeHost events.ChangeHostEvent

		if err := decodePayload(msg, &changeHost); err != nil {
			return err
		}

		h.presenceUsecase.HandleChangeHost(ctx, sessionID, changeHost.NewHostID)

	case events.TypeRemoveUser:
		var command events.HostCommandEvent

		if err := decodePayload(msg, &command); err != nil {
			return err
		}

		h.presenceUsecase.HandleRemove(ctx, sessionID, command.TargetUserID)

	case events.TypeMediaState:
		var state events.MediaStateEvent

		if err := decodePayload(msg, &state); err != nil {
			return err
		}

		h.presenceUsecase.HandleMediaState(ctx, sessionID, state)

	case events.TypeOffer, events.TypeAnswer, events.TypeICECandidate:
		var relayEvent events.RelayEvent

		if err := decodePayload(msg, &relayEvent); err != nil {
			return err
		}

		h.relayUsecase.Relay(ctx, msg.Type, sessionID, relayEvent)

	case events.TypeAnnotation:
		var envelope events.AnnotationEnvelope

		if err := decodePayload(msg, &envelope); err != nil {
			return err
		}

		if err := envelope.Event.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errInvalidPayload, err)
		}

		h.collaborationUsecase.BroadcastAnnotation(ctx, sessionID, envelope.Event)

	case events.TypeChatMessage:
		var chat events.ChatEvent

		if err := decodePayload(msg, &chat); err != nil {
			return err
		}

		h.collaborationUsecase.HandleChat(ctx, sessionID, chat)

	case events.TypeAnalysisStart:
		h.collaborationUsecase.HandleAnalysisStarted(ctx, sessionID)

	case events.TypeAnalysisResult:
		var result events.AnalysisResultEvent

		if err := decodePayload(msg, &result); err != nil {
			return err
		}

		h.collaborationUsecase.HandleAnalysisResult(ctx, sessionID, result)

	case events.TypeAnalysisError:
		var analysisErr events.AnalysisErrorEvent

		if err := decodePayload(msg, &analysisErr); err != nil {
			return err
		}

		h.collaborationUsecase.HandleAnalysisError(ctx, sessionID, analysisErr)

	case events.TypePopupOpened, events.TypePopupClosed:
		h.collaborationUsecase.HandlePopup(ctx, sessionID, msg.Type == events.TypePopupOpened)

	case events.TypeReportShared:
		var report events.ReportEvent

		if err := decodePayload(msg, &report); err != nil {
			return err
		}

		h.collaborationUsecase.HandleReport(ctx, sessionID, report)

	case events.TypePing:
		h.presenceUsecase.HandlePing(ctx, sessionID)

	default:
		return errors.New("unknown message type")
	}

	return nil
}

// errInvalidPayload - клиент прислал data, которую нельзя разобрать; ему отвечают error
var errInvalidPayload = errors.New("invalid payload")

func decodePayload(msg events.Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	return nil
}

func (h *WebSocketHandler) reject(sessionID, reason string) {
	msg, err := events.New(events.TypeError, events.ErrorEvent{Message: reason})
	if err != nil {
		return
	}

	h.wsRepo.Write(sessionID, msg)
}

func (h *WebSocketHandler) handleWebsocketError(sessionID string, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			slog.Info("Client disconnected", slog.String(constant.SessionID, sessionID))
		default:
			slog.Warn(
				"websocket closed",
				slog.Int("code", closeErr.Code),
				slog.String(constant.SessionID, sessionID),
			)
		}

		return
	}

	slog.Warn(
		"websocket read",
		slog.Any(constant.Error, err),
		slog.String(constant.SessionID, sessionID),
	)
}

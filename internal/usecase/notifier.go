package usecase

import (
	"context"
	"log/slog"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
)

// notifier пишет события в сокеты участников комнаты
type notifier struct {
	directory memory.RoomDirectory
	wsRepo    memory.WebsocketConnectionRepository
}

func (n *notifier) send(sessionID string, t events.Type, payload any) bool {
	msg, err := events.New(t, payload)
	if err != nil {
		slog.Error("build message", slog.Any(constant.Error, err), slog.String(constant.MessageType, t.String()))
		return false
	}

	return n.wsRepo.Write(sessionID, msg)
}

func (n *notifier) sendError(sessionID, message string) {
	n.send(sessionID, events.TypeError, events.ErrorEvent{Message: message})
}

// broadcast рассылает событие всем участникам комнаты, кроме exclude.
// Возвращает число адресатов, которым событие поставлено в очередь.
func (n *notifier) broadcast(ctx context.Context, roomID string, t events.Type, payload any, exclude string) int {
	msg, err := events.New(t, payload)
	if err != nil {
		slog.Error("build message", slog.Any(constant.Error, err), slog.String(constant.MessageType, t.String()))
		return 0
	}

	delivered := 0

	for _, memberID := range n.directory.Members(ctx, roomID) {
		if memberID == exclude {
			continue
		}

		if n.wsRepo.Write(memberID, msg) {
			delivered++
		}
	}

	return delivered
}

func (n *notifier) broadcastParticipants(ctx context.Context, roomID string) {
	n.broadcast(
		ctx,
		roomID,
		events.TypeParticipantsUpdated,
		events.ParticipantsUpdatedEvent{Participants: n.directory.Participants(ctx, roomID)},
		"",
	)
}

package usecase

import (
	"context"
	"log/slog"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/application/metric"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
)

// RelayUsecase пересылает offer, answer и ice кандидатов между двумя участниками.
// Payload не разбирается, недоставленные сообщения молча отбрасываются.
type RelayUsecase interface {
	Relay(ctx context.Context, kind events.Type, senderID string, relayEvent events.RelayEvent) bool
}

type relayUsecase struct {
	directory memory.RoomDirectory
	wsRepo    memory.WebsocketConnectionRepository
}

func NewRelayUsecase(directory memory.RoomDirectory, wsRepo memory.WebsocketConnectionRepository) RelayUsecase {
	return &relayUsecase{directory: directory, wsRepo: wsRepo}
}

func (r *relayUsecase) Relay(ctx context.Context, kind events.Type, senderID string, relayEvent events.RelayEvent) bool {
	if !kind.IsNegotiation() {
		return false
	}

	if !r.sameRoom(ctx, senderID, relayEvent.TargetID) {
		r.drop(kind, senderID, relayEvent.TargetID, "target not in sender room")
		return false
	}

	msg, err := events.New(kind, events.RelayedEvent{SenderID: senderID, Payload: relayEvent.Payload})
	if err != nil {
		slog.Error("build relay message", slog.Any(constant.Error, err))
		return false
	}

	if !r.wsRepo.Write(relayEvent.TargetID, msg) {
		r.drop(kind, senderID, relayEvent.TargetID, "target not connected")
		return false
	}

	return true
}

func (r *relayUsecase) sameRoom(ctx context.Context, senderID, targetID string) bool {
	if targetID == "" {
		return false
	}

	senderRoom, ok := r.directory.RoomOf(ctx, senderID)
	if !ok {
		return false
	}

	targetRoom, ok := r.directory.RoomOf(ctx, targetID)

	return ok && targetRoom == senderRoom
}

func (r *relayUsecase) drop(kind events.Type, senderID, targetID, reason string) {
	metric.RecordRelayDropped(kind.String())

	slog.Debug(
		"relay dropped",
		slog.String(constant.MessageType, kind.String()),
		slog.String(constant.SessionID, senderID),
		slog.String(constant.TargetID, targetID),
		slog.String("reason", reason),
	)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/application/metric"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/domain/models"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
)

type PresenceUsecase interface {
	HandleConnect(ctx context.Context, sessionID string)

	HandleJoin(ctx context.Context, sessionID string, joinEvent events.JoinEvent) error
	HandleLeave(ctx context.Context, sessionID string) error

	HandleMute(ctx context.Context, sessionID, targetID string, mute bool)
	HandleChangeHost(ctx context.Context, sessionID, newHostID string)
	HandleRemove(ctx context.Context, sessionID, targetID string)
	HandleMediaState(ctx context.Context, sessionID string, state events.MediaStateEvent)

	HandlePing(ctx context.Context, sessionID string)
}

type presenceUsecase struct {
	notifier

	defaultName string
	journal     JournalUsecase

	// mu сериализует мутации комнат вместе с постановкой их рассылок в очереди,
	// поэтому все участники видят события членства в одном порядке
	mu sync.Mutex
}

func NewPresenceUsecase(
	defaultName string,
	directory memory.RoomDirectory,
	wsRepo memory.WebsocketConnectionRepository,
	journal JournalUsecase,
) PresenceUsecase {
	return &presenceUsecase{
		notifier:    notifier{directory: directory, wsRepo: wsRepo},
		defaultName: defaultName,
		journal:     journal,
	}
}

func (p *presenceUsecase) HandleConnect(ctx context.Context, sessionID string) {
	p.send(sessionID, events.TypeConnected, events.ConnectedEvent{SessionID: sessionID})
}

func (p *presenceUsecase) HandleJoin(ctx context.Context, sessionID string, joinEvent events.JoinEvent) error {
	name := strings.TrimSpace(joinEvent.Name)
	if name == "" {
		name = p.defaultName
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	view, err := p.directory.Join(ctx, joinEvent.RoomID, sessionID, name)
	switch {
	case errors.Is(err, memory.ErrEmptyRoomID):
		p.sendError(sessionID, "roomId is required")
		return nil
	case errors.Is(err, memory.ErrAlreadyJoined):
		p.sendError(sessionID, "already joined a room")
		return nil
	case err != nil:
		return fmt.Errorf("join room: %w", err)
	}

	slog.Info(
		"Client joined room",
		slog.String(constant.SessionID, sessionID),
		slog.String(constant.UserName, name),
		slog.String(constant.RoomID, joinEvent.RoomID),
		slog.Bool("is_host", view.IsHost),
	)

	p.send(sessionID, events.TypeRoomState, view)

	existing := make([]string, 0, len(view.Participants))
	for _, memberID := range p.directory.Members(ctx, joinEvent.RoomID) {
		if memberID != sessionID {
			existing = append(existing, memberID)
		}
	}

	p.send(sessionID, events.TypeExistingParticipants, events.ExistingParticipantsEvent{SessionIDs: existing})

	p.broadcast(
		ctx,
		joinEvent.RoomID,
		events.TypeUserJoined,
		events.UserJoinedEvent{SessionID: sessionID, Name: name, IsHost: view.IsHost},
		sessionID,
	)

	p.broadcastParticipants(ctx, joinEvent.RoomID)

	p.journal.Record(ctx, models.JournalEntry{
		RoomID:    joinEvent.RoomID,
		SessionID: sessionID,
		Name:      name,
		Event:     models.JournalJoined,
		CreatedAt: time.Now(),
	})
	p.recordStats()

	return nil
}

func (p *presenceUsecase) HandleLeave(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomID, ok := p.directory.RoomOf(ctx, sessionID)
	if !ok {
		return nil
	}

	outcome := p.directory.Leave(ctx, roomID, sessionID)
	if !outcome.Removed {
		return fmt.Errorf("leave room %s: %w", roomID, memory.ErrNotJoined)
	}

	slog.Info("Client left room", slog.String(constant.SessionID, sessionID), slog.String(constant.RoomID, roomID))

	p.announceDeparture(ctx, roomID, sessionID, outcome, models.JournalLeft)

	return nil
}

// announceDeparture рассылает последствия ухода участника. Вызывать под p.mu.
func (p *presenceUsecase) announceDeparture(
	ctx context.Context,
	roomID, sessionID string,
	outcome models.LeaveOutcome,
	reason models.JournalEvent,
) {
	now := time.Now()

	p.journal.Record(ctx, models.JournalEntry{
		RoomID:    roomID,
		SessionID: sessionID,
		Name:      outcome.Name,
		Event:     reason,
		CreatedAt: now,
	})

	defer p.recordStats()

	if outcome.RoomDestroyed {
		p.journal.Record(ctx, models.JournalEntry{RoomID: roomID, Event: models.JournalRoomClosed, CreatedAt: now})
		return
	}

	if outcome.HostReassigned() {
		slog.Info("Host reassigned", slog.String(constant.RoomID, roomID), slog.String(constant.SessionID, outcome.NewHostID))

		p.send(outcome.NewHostID, events.TypeYouAreNowHost, nil)
		p.journal.Record(ctx, models.JournalEntry{
			RoomID:    roomID,
			SessionID: outcome.NewHostID,
			Event:     models.JournalHostAssigned,
			CreatedAt: now,
		})
	}

	p.broadcast(ctx, roomID, events.TypeUserLeft, events.UserLeftEvent{SessionID: sessionID}, "")
	p.broadcastParticipants(ctx, roomID)
}

func (p *presenceUsecase) HandleMute(ctx context.Context, sessionID, targetID string, mute bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomID, ok := p.directory.RoomOf(ctx, sessionID)
	if !ok {
		return
	}

	if !p.directory.SetParticipantFlag(ctx, roomID, sessionID, targetID, models.FlagMuted, mute) {
		return
	}

	forced := events.TypeForceUnmute
	if mute {
		forced = events.TypeForceMute
	}

	p.send(targetID, forced, nil)
	p.broadcastParticipants(ctx, roomID)
}

func (p *presenceUsecase) HandleChangeHost(ctx context.Context, sessionID, newHostID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomID, ok := p.directory.RoomOf(ctx, sessionID)
	if !ok {
		return
	}

	if !p.directory.SetHost(ctx, roomID, sessionID, newHostID) {
		return
	}

	p.broadcast(ctx, roomID, events.TypeHostChanged, events.HostChangedEvent{NewHostID: newHostID}, "")
	p.broadcastParticipants(ctx, roomID)

	p.journal.Record(ctx, models.JournalEntry{
		RoomID:    roomID,
		SessionID: newHostID,
		Event:     models.JournalHostAssigned,
		CreatedAt: time.Now(),
	})
}

func (p *presenceUsecase) HandleRemove(ctx context.Context, sessionID, targetID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomID, ok := p.directory.RoomOf(ctx, sessionID)
	if !ok {
		return
	}

	outcome, ok := p.directory.RemoveParticipant(ctx, roomID, sessionID, targetID)
	if !ok {
		return
	}

	slog.Info(
		"Client removed from room",
		slog.String(constant.SessionID, sessionID),
		slog.String(constant.TargetID, targetID),
		slog.String(constant.RoomID, roomID),
	)

	p.send(targetID, events.TypeRemovedFromRoom, nil)
	p.announceDeparture(ctx, roomID, targetID, outcome, models.JournalRemoved)
}

func (p *presenceUsecase) HandleMediaState(ctx context.Context, sessionID string, state events.MediaStateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomID, ok := p.directory.RoomOf(ctx, sessionID)
	if !ok {
		return
	}

	changed := false

	if state.IsMuted != nil {
		changed = p.directory.SetOwnFlag(ctx, roomID, sessionID, models.FlagMuted, *state.IsMuted) || changed
	}

	if state.IsVideoOn != nil {
		changed = p.directory.SetOwnFlag(ctx, roomID, sessionID, models.FlagVideoOn, *state.IsVideoOn) || changed
	}

	if changed {
		p.broadcastParticipants(ctx, roomID)
	}
}

func (p *presenceUsecase) HandlePing(ctx context.Context, sessionID string) {
	p.send(sessionID, events.TypePong, nil)
}

func (p *presenceUsecase) recordStats() {
	metric.SetRoomStats(p.directory.Stats())
}

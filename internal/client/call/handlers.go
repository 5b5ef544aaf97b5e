package call

import (
	"context"
	"log/slog"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/client/annotation"
	"github.com/qrave1/RoomCall/internal/client/signaling"
	"github.com/qrave1/RoomCall/internal/domain/events"
)

func (s *Session) register() {
	on := func(t events.Type, h func(events.Message) error) {
		s.signal.On(t, func(msg events.Message) {
			if err := h(msg); err != nil {
				s.logger.Warn(
					"handle signaling message",
					slog.Any(constant.Error, err),
					slog.String(constant.MessageType, t.String()),
				)
			}
		})
	}

	on(events.TypeRoomState, s.onRoomState)
	on(events.TypeExistingParticipants, s.onExistingParticipants)
	on(events.TypeUserJoined, s.onUserJoined)
	on(events.TypeParticipantsUpdated, s.onParticipantsUpdated)
	on(events.TypeUserLeft, s.onUserLeft)
	on(events.TypeYouAreNowHost, s.onHostChanged)
	on(events.TypeHostChanged, s.onHostChanged)
	on(events.TypeForceMute, s.onForceMute)
	on(events.TypeForceUnmute, s.onForceMute)
	on(events.TypeRemovedFromRoom, s.onRemoved)

	on(events.TypeOffer, s.onNegotiation)
	on(events.TypeAnswer, s.onNegotiation)
	on(events.TypeICECandidate, s.onNegotiation)

	on(events.TypeAnnotation, s.onAnnotation)
	on(events.TypeChatMessage, s.onChat)
	on(events.TypeAnalysisUpdate, s.onAnalysisUpdate)
	on(events.TypeAnalysisStatus, s.onInfo)
	on(events.TypePopupOpened, s.onInfo)
	on(events.TypePopupClosed, s.onInfo)
	on(events.TypeReportUpdate, s.onInfo)
	on(events.TypeError, s.onServerError)
}

func (s *Session) onRoomState(msg events.Message) error {
	state, err := signaling.Decode[events.RoomStateEvent](msg)
	if err != nil {
		return err
	}

	selfID := s.signal.SessionID()
	// Цвет автора закрепляется по первому его событию рисования, а не по списку участников
	canvas := annotation.New(s.cfg.CanvasWidth, s.cfg.CanvasHeight, selfID, s.emitAnnotation)

	s.mu.Lock()
	s.joined = true
	s.isHost = state.IsHost
	s.participants = state.Participants
	s.canvas = canvas
	s.mu.Unlock()

	s.logger.Info("joined room", slog.Bool("is_host", state.IsHost), slog.Int("participants", len(state.Participants)))

	s.notifyParticipants()

	return nil
}

func (s *Session) onExistingParticipants(msg events.Message) error {
	existing, err := signaling.Decode[events.ExistingParticipantsEvent](msg)
	if err != nil {
		return err
	}

	return s.mesh.ConnectTo(context.Background(), existing.SessionIDs)
}

func (s *Session) onUserJoined(msg events.Message) error {
	joined, err := signaling.Decode[events.UserJoinedEvent](msg)
	if err != nil {
		return err
	}

	s.logger.Info("participant joined", slog.String(constant.PeerID, joined.SessionID), slog.String(constant.UserName, joined.Name))

	return s.mesh.Prepare(joined.SessionID)
}

func (s *Session) onParticipantsUpdated(msg events.Message) error {
	updated, err := signaling.Decode[events.ParticipantsUpdatedEvent](msg)
	if err != nil {
		return err
	}

	selfID := s.signal.SessionID()

	s.mu.Lock()
	s.participants = updated.Participants
	if self, ok := updated.Participants[selfID]; ok {
		s.isHost = self.IsHost
	}
	s.mu.Unlock()

	s.notifyParticipants()

	return nil
}

func (s *Session) onUserLeft(msg events.Message) error {
	left, err := signaling.Decode[events.UserLeftEvent](msg)
	if err != nil {
		return err
	}

	s.mesh.Remove(left.SessionID)

	if canvas := s.Canvas(); canvas != nil {
		canvas.ForgetColor(left.SessionID)
	}

	return nil
}

func (s *Session) onHostChanged(msg events.Message) error {
	if msg.Type == events.TypeYouAreNowHost {
		s.mu.Lock()
		s.isHost = true
		s.mu.Unlock()

		s.logger.Info("became host")

		return nil
	}

	changed, err := signaling.Decode[events.HostChangedEvent](msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.isHost = changed.NewHostID == s.signal.SessionID()
	s.mu.Unlock()

	return nil
}

// onForceMute - хост управляет микрофоном, новое состояние сообщается серверу
func (s *Session) onForceMute(msg events.Message) error {
	s.mu.RLock()
	videoOn := s.videoOn
	s.mu.RUnlock()

	return s.SetMedia(msg.Type == events.TypeForceMute, videoOn)
}

func (s *Session) onRemoved(events.Message) error {
	s.logger.Warn("removed from room by host")

	s.resetRoom()

	if s.hooks.OnRemoved != nil {
		s.hooks.OnRemoved()
	}

	return nil
}

func (s *Session) onNegotiation(msg events.Message) error {
	relayed, err := signaling.Decode[events.RelayedEvent](msg)
	if err != nil {
		return err
	}

	switch msg.Type {
	case events.TypeOffer:
		return s.mesh.HandleOffer(relayed.SenderID, relayed.Payload)
	case events.TypeAnswer:
		return s.mesh.HandleAnswer(relayed.SenderID, relayed.Payload)
	default:
		return s.mesh.HandleCandidate(relayed.SenderID, relayed.Payload)
	}
}

func (s *Session) onAnnotation(msg events.Message) error {
	broadcast, err := signaling.Decode[events.AnnotationBroadcast](msg)
	if err != nil {
		return err
	}

	// Холста еще нет: событие пришло раньше room-state, новичок начинает с чистого листа
	if canvas := s.Canvas(); canvas != nil {
		canvas.HandleRemote(broadcast.SenderID, broadcast.Event)
	}

	return nil
}

func (s *Session) onChat(msg events.Message) error {
	chat, err := signaling.Decode[events.ChatBroadcast](msg)
	if err != nil {
		return err
	}

	if s.hooks.OnChat != nil {
		s.hooks.OnChat(chat)
	}

	return nil
}

func (s *Session) onAnalysisUpdate(msg events.Message) error {
	update, err := signaling.Decode[events.AnalysisUpdateEvent](msg)
	if err != nil {
		return err
	}

	s.logger.Info(
		"analysis result",
		slog.String(constant.UserName, update.UserName),
		slog.String("prediction", update.Prediction),
		slog.Float64("confidence", update.Confidence),
	)

	if s.hooks.OnAnalysis != nil {
		s.hooks.OnAnalysis(update)
	}

	return nil
}

func (s *Session) onInfo(msg events.Message) error {
	s.logger.Debug("room event", slog.String(constant.MessageType, msg.Type.String()), slog.String("data", string(msg.Data)))
	return nil
}

func (s *Session) onServerError(msg events.Message) error {
	serverErr, err := signaling.Decode[events.ErrorEvent](msg)
	if err != nil {
		return err
	}

	s.logger.Warn("server rejected message", slog.String(constant.Error, serverErr.Message))

	return nil
}

func (s *Session) notifyParticipants() {
	if s.hooks.OnParticipants != nil {
		s.hooks.OnParticipants(s.Participants())
	}
}

package events

import (
	"encoding/json"
	"fmt"

	"github.com/qrave1/RoomCall/internal/domain/models"
)

// Message - общее событие
type Message struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New упаковывает payload в конверт сообщения
func New(t Type, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}

	return Message{Type: t, Data: data}, nil
}

// Decode распаковывает data в v. Пустой data оставляет v нетронутым.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", m.Type, err)
	}

	return nil
}

// JoinEvent - запрос на вход в комнату
type JoinEvent struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// HostCommandEvent - команда хоста над участником (mute, unmute, remove)
type HostCommandEvent struct {
	TargetUserID string `json:"targetUserId"`
}

// ChangeHostEvent - передача роли хоста
type ChangeHostEvent struct {
	NewHostID string `json:"newHostId"`
}

// MediaStateEvent - участник сообщает о своем микрофоне и камере
type MediaStateEvent struct {
	IsMuted   *bool `json:"isMuted,omitempty"`
	IsVideoOn *bool `json:"isVideoOn,omitempty"`
}

// RelayEvent - offer, answer или ice кандидат для конкретного участника.
// Payload не разбирается сервером.
type RelayEvent struct {
	TargetID string          `json:"targetId"`
	Payload  json.RawMessage `json:"payload"`
}

// RelayedEvent - то, что получает адресат пересылки
type RelayedEvent struct {
	SenderID string          `json:"senderId"`
	Payload  json.RawMessage `json:"payload"`
}

// AnnotationEnvelope - входящее событие рисования
type AnnotationEnvelope struct {
	Event AnnotationEvent `json:"event"`
}

// AnnotationBroadcast - событие рисования, разосланное остальным участникам
type AnnotationBroadcast struct {
	SenderID   string          `json:"senderId"`
	SenderName string          `json:"senderName"`
	Event      AnnotationEvent `json:"event"`
}

type ChatEvent struct {
	Message string `json:"message"`
}

type ChatBroadcast struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Time    int64  `json:"time"`
}

// AnalysisResultEvent - результат классификации изображения
type AnalysisResultEvent struct {
	ImageData  string  `json:"imageData"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

type AnalysisUpdateEvent struct {
	ImageData  string  `json:"imageData"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	UserName   string  `json:"userName"`
}

type AnalysisErrorEvent struct {
	Error string `json:"error"`
}

// Статусы анализа изображения
const (
	AnalysisStatusAnalyzing = "analyzing"
	AnalysisStatusError     = "error"
)

type AnalysisStatusEvent struct {
	UserName string `json:"userName"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type PopupEvent struct {
	UserName string `json:"userName"`
}

type ReportEvent struct {
	Report string `json:"report"`
}

type ReportUpdateEvent struct {
	Report   string `json:"report"`
	UserName string `json:"userName"`
}

// ConnectedEvent - первое сообщение после открытия сокета
type ConnectedEvent struct {
	SessionID string `json:"sessionId"`
}

type RoomStateEvent = models.JoinView

type ExistingParticipantsEvent struct {
	SessionIDs []string `json:"sessionIds"`
}

type UserJoinedEvent struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
}

type ParticipantsUpdatedEvent struct {
	Participants map[string]models.Participant `json:"participants"`
}

type HostChangedEvent struct {
	NewHostID string `json:"newHostId"`
}

type UserLeftEvent struct {
	SessionID string `json:"sessionId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

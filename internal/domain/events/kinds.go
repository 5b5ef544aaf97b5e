package events

// Type - тип сообщения в сигнальном протоколе
type Type string

// Клиент -> сервер
const (
	TypeJoin           Type = "join"
	TypeLeave          Type = "leave"
	TypeMuteUser       Type = "mute-user"
	TypeUnmuteUser     Type = "unmute-user"
	TypeChangeHost     Type = "change-host"
	TypeRemoveUser     Type = "remove-user"
	TypeMediaState     Type = "media-state"
	TypeAnalysisStart  Type = "analysis-started"
	TypeAnalysisResult Type = "analysis-result"
	TypeAnalysisError  Type = "analysis-error"
	TypeReportShared   Type = "report-shared"
	TypePing           Type = "ping"
)

// Оба направления
const (
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
	TypeAnnotation   Type = "annotation"
	TypeChatMessage  Type = "chat-message"
	TypePopupOpened  Type = "popup-opened"
	TypePopupClosed  Type = "popup-closed"
)

// Сервер -> клиент
const (
	TypeConnected            Type = "connected"
	TypeRoomState            Type = "room-state"
	TypeExistingParticipants Type = "existing-participants"
	TypeUserJoined           Type = "user-joined"
	TypeParticipantsUpdated  Type = "participants-updated"
	TypeYouAreNowHost        Type = "you-are-now-host"
	TypeHostChanged          Type = "host-changed"
	TypeForceMute            Type = "force-mute"
	TypeForceUnmute          Type = "force-unmute"
	TypeRemovedFromRoom      Type = "removed-from-room"
	TypeUserLeft             Type = "user-left"
	TypeAnalysisUpdate       Type = "analysis-update"
	TypeAnalysisStatus       Type = "analysis-status"
	TypeReportUpdate         Type = "report-update"
	TypePong                 Type = "pong"
	TypeError                Type = "error"
)

var inbound = map[Type]struct{}{
	TypeJoin:           {},
	TypeLeave:          {},
	TypeMuteUser:       {},
	TypeUnmuteUser:     {},
	TypeChangeHost:     {},
	TypeRemoveUser:     {},
	TypeMediaState:     {},
	TypeOffer:          {},
	TypeAnswer:         {},
	TypeICECandidate:   {},
	TypeAnnotation:     {},
	TypeChatMessage:    {},
	TypeAnalysisStart:  {},
	TypeAnalysisResult: {},
	TypeAnalysisError:  {},
	TypePopupOpened:    {},
	TypePopupClosed:    {},
	TypeReportShared:   {},
	TypePing:           {},
}

// Inbound сообщает, может ли клиент прислать сообщение такого типа
func (t Type) Inbound() bool {
	_, ok := inbound[t]
	return ok
}

// IsNegotiation - offer, answer или ice кандидат
func (t Type) IsNegotiation() bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeICECandidate
}

func (t Type) String() string {
	return string(t)
}

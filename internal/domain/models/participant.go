package models

// Participant - состояние участника комнаты, как его видят клиенты
type Participant struct {
	Name      string `json:"name"`
	IsMuted   bool   `json:"isMuted"`
	IsVideoOn bool   `json:"isVideoOn"`
	IsHost    bool   `json:"isHost"`
}

// Flag - флаг участника, которым может управлять хост
type Flag string

const (
	FlagMuted   Flag = "muted"
	FlagVideoOn Flag = "videoOn"
)

// JoinView - то, что получает участник сразу после входа в комнату
type JoinView struct {
	Participants map[string]Participant `json:"participants"`
	IsHost       bool                   `json:"isHost"`
	HostID       string                 `json:"hostId"`
}

// LeaveOutcome - результат удаления участника из комнаты
type LeaveOutcome struct {
	Removed       bool
	Name          string
	NewHostID     string
	RoomDestroyed bool
}

// HostReassigned сообщает, был ли назначен новый хост
func (o LeaveOutcome) HostReassigned() bool {
	return o.NewHostID != ""
}

// RoomSummary - краткая информация о живой комнате
type RoomSummary struct {
	RoomID       string `json:"roomId"`
	HostID       string `json:"hostId"`
	Participants int    `json:"participants"`
}

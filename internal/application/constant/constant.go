package constant

// Ключи атрибутов для slog
const (
	Error       = "error"
	State       = "state"
	SessionID   = "session_id"
	TargetID    = "target_id"
	RoomID      = "room_id"
	UserName    = "user_name"
	MessageType = "message_type"
	PeerID      = "peer_id"
	Action      = "action"
)

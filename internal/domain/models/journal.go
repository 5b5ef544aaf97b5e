package models

import "time"

// JournalEvent - вид записи в журнале сессий
type JournalEvent string

const (
	JournalJoined       JournalEvent = "joined"
	JournalLeft         JournalEvent = "left"
	JournalRemoved      JournalEvent = "removed"
	JournalHostAssigned JournalEvent = "host_assigned"
	JournalRoomClosed   JournalEvent = "room_closed"
)

// JournalEntry - одна запись аудита комнаты. Состояние комнат из журнала не восстанавливается.
type JournalEntry struct {
	ID        int64        `json:"id" db:"id"`
	RoomID    string       `json:"roomId" db:"room_id"`
	SessionID string       `json:"sessionId" db:"session_id"`
	Name      string       `json:"name" db:"name"`
	Event     JournalEvent `json:"event" db:"event"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
}

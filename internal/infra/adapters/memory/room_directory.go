package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/qrave1/RoomCall/internal/domain/models"
)

var (
	ErrEmptyRoomID   = errors.New("room id is required")
	ErrAlreadyJoined = errors.New("session already joined a room")
	ErrNotJoined     = errors.New("session is not in the room")
)

// RoomDirectory - таблица комнат процесса. Все мутации атомарны:
// в непустой комнате всегда ровно один хост, и он является участником.
type RoomDirectory interface {
	// Join creates the room on first join and makes the session its host
	Join(ctx context.Context, roomID, sessionID, name string) (models.JoinView, error)

	// Leave removes the session, promoting the earliest remaining member if the host left
	Leave(ctx context.Context, roomID, sessionID string) models.LeaveOutcome

	SetHost(ctx context.Context, roomID, requesterID, newHostID string) bool
	SetParticipantFlag(ctx context.Context, roomID, requesterID, targetID string, flag models.Flag, value bool) bool
	SetOwnFlag(ctx context.Context, roomID, sessionID string, flag models.Flag, value bool) bool
	RemoveParticipant(ctx context.Context, roomID, requesterID, targetID string) (models.LeaveOutcome, bool)

	RoomOf(ctx context.Context, sessionID string) (string, bool)
	Participant(ctx context.Context, roomID, sessionID string) (models.Participant, bool)
	Participants(ctx context.Context, roomID string) map[string]models.Participant
	Members(ctx context.Context, roomID string) []string
	Rooms(ctx context.Context) []models.RoomSummary
	Stats() (rooms, participants int)
}

type session struct {
	name    string
	muted   bool
	videoOn bool
}

type room struct {
	host string

	// order хранит порядок входа, по нему выбирается новый хост
	order    []string
	sessions map[string]*session
}

func (r *room) participants() map[string]models.Participant {
	out := make(map[string]models.Participant, len(r.sessions))

	for id, s := range r.sessions {
		out[id] = models.Participant{
			Name:      s.name,
			IsMuted:   s.muted,
			IsVideoOn: s.videoOn,
			IsHost:    id == r.host,
		}
	}

	return out
}

type roomDirectory struct {
	rooms map[string]*room

	// sessionRooms хранит map[session_id]room_id
	sessionRooms map[string]string

	mu sync.RWMutex
}

func NewRoomDirectory() RoomDirectory {
	return &roomDirectory{
		rooms:        make(map[string]*room),
		sessionRooms: make(map[string]string),
	}
}

func (d *roomDirectory) Join(ctx context.Context, roomID, sessionID, name string) (models.JoinView, error) {
	if roomID == "" {
		return models.JoinView{}, ErrEmptyRoomID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessionRooms[sessionID]; ok {
		return models.JoinView{}, ErrAlreadyJoined
	}

	r, ok := d.rooms[roomID]
	if !ok {
		r = &room{
			host:     sessionID,
			sessions: make(map[string]*session),
		}
		d.rooms[roomID] = r
	}

	r.sessions[sessionID] = &session{name: name, videoOn: true}
	r.order = append(r.order, sessionID)
	d.sessionRooms[sessionID] = roomID

	return models.JoinView{
		Participants: r.participants(),
		IsHost:       r.host == sessionID,
		HostID:       r.host,
	}, nil
}

func (d *roomDirectory) Leave(ctx context.Context, roomID, sessionID string) models.LeaveOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.leaveLocked(roomID, sessionID)
}

func (d *roomDirectory) leaveLocked(roomID, sessionID string) models.LeaveOutcome {
	r, ok := d.rooms[roomID]
	if !ok {
		return models.LeaveOutcome{}
	}

	s, ok := r.sessions[sessionID]
	if !ok {
		return models.LeaveOutcome{}
	}

	outcome := models.LeaveOutcome{Removed: true, Name: s.name}

	delete(r.sessions, sessionID)
	delete(d.sessionRooms, sessionID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == sessionID })

	if len(r.order) == 0 {
		delete(d.rooms, roomID)
		outcome.RoomDestroyed = true

		return outcome
	}

	if r.host == sessionID {
		r.host = r.order[0]
		outcome.NewHostID = r.host
	}

	return outcome
}

// hostRoomLocked возвращает комнату, только если requesterID в ней хост
func (d *roomDirectory) hostRoomLocked(roomID, requesterID string) (*room, bool) {
	r, ok := d.rooms[roomID]
	if !ok || r.host != requesterID {
		return nil, false
	}

	return r, true
}

func (d *roomDirectory) SetHost(ctx context.Context, roomID, requesterID, newHostID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.hostRoomLocked(roomID, requesterID)
	if !ok {
		return false
	}

	if _, ok = r.sessions[newHostID]; !ok {
		return false
	}

	r.host = newHostID

	return true
}

func (d *roomDirectory) SetParticipantFlag(
	ctx context.Context,
	roomID, requesterID, targetID string,
	flag models.Flag,
	value bool,
) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.hostRoomLocked(roomID, requesterID)
	if !ok {
		return false
	}

	return setFlag(r.sessions[targetID], flag, value)
}

func (d *roomDirectory) SetOwnFlag(ctx context.Context, roomID, sessionID string, flag models.Flag, value bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return false
	}

	return setFlag(r.sessions[sessionID], flag, value)
}

func setFlag(s *session, flag models.Flag, value bool) bool {
	if s == nil {
		return false
	}

	switch flag {
	case models.FlagMuted:
		s.muted = value
	case models.FlagVideoOn:
		s.videoOn = value
	default:
		return false
	}

	return true
}

func (d *roomDirectory) RemoveParticipant(ctx context.Context, roomID, requesterID, targetID string) (models.LeaveOutcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.hostRoomLocked(roomID, requesterID)
	if !ok {
		return models.LeaveOutcome{}, false
	}

	if _, ok = r.sessions[targetID]; !ok {
		return models.LeaveOutcome{}, false
	}

	return d.leaveLocked(roomID, targetID), true
}

func (d *roomDirectory) RoomOf(ctx context.Context, sessionID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	roomID, ok := d.sessionRooms[sessionID]
	return roomID, ok
}

func (d *roomDirectory) Participant(ctx context.Context, roomID, sessionID string) (models.Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return models.Participant{}, false
	}

	p, ok := r.participants()[sessionID]
	return p, ok
}

func (d *roomDirectory) Participants(ctx context.Context, roomID string) map[string]models.Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return map[string]models.Participant{}
	}

	return r.participants()
}

func (d *roomDirectory) Members(ctx context.Context, roomID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[roomID]
	if !ok {
		return nil
	}

	return slices.Clone(r.order)
}

func (d *roomDirectory) Rooms(ctx context.Context) []models.RoomSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()

	summaries := make([]models.RoomSummary, 0, len(d.rooms))

	for id, r := range d.rooms {
		summaries = append(summaries, models.RoomSummary{
			RoomID:       id,
			HostID:       r.host,
			Participants: len(r.sessions),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RoomID < summaries[j].RoomID
	})

	return summaries
}

func (d *roomDirectory) Stats() (rooms, participants int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms), len(d.sessionRooms)
}

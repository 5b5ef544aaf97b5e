package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomCall/internal/application/config"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/dto"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomCall/internal/usecase"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Debug:       true,
		DefaultName: "Guest",
		StunURL:     "stun:stun.example.org:3478",
		WS: config.WebsocketConfig{
			ReadTimeout:  5 * time.Second,
			PingInterval: time.Second,
			SendQueue:    64,
		},
	}

	directory := memory.NewRoomDirectory()
	wsRepo := memory.NewWSConnectionRepository(cfg.WS.SendQueue, cfg.WS.PingInterval)
	journal := usecase.NewNoopJournal()

	presence := usecase.NewPresenceUsecase(cfg.DefaultName, directory, wsRepo, journal)
	relay := usecase.NewRelayUsecase(directory, wsRepo)
	collaboration := usecase.NewCollaborationUsecase(directory, wsRepo, nil)

	e := New(
		cfg,
		handlers.NewRoomHandler(directory, journal),
		handlers.NewIceHandler(cfg),
		handlers.NewWebSocketHandler(cfg, wsRepo, presence, relay, collaboration),
	)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return srv
}

type testClient struct {
	t         *testing.T
	conn      *websocket.Conn
	sessionID string
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}

	msg := c.expect(events.TypeConnected)

	var connected events.ConnectedEvent
	require.NoError(t, msg.Decode(&connected))
	require.NotEmpty(t, connected.SessionID)
	c.sessionID = connected.SessionID

	return c
}

func (c *testClient) send(t events.Type, payload any) {
	c.t.Helper()

	msg, err := events.New(t, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *testClient) read() events.Message {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg events.Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))

	return msg
}

func (c *testClient) expect(t events.Type) events.Message {
	c.t.Helper()

	msg := c.read()
	require.Equal(c.t, t, msg.Type, "payload: %s", msg.Data)

	return msg
}

func (c *testClient) join(roomID, name string) events.RoomStateEvent {
	c.t.Helper()

	c.send(events.TypeJoin, events.JoinEvent{RoomID: roomID, Name: name})

	var state events.RoomStateEvent
	require.NoError(c.t, c.expect(events.TypeRoomState).Decode(&state))

	c.expect(events.TypeExistingParticipants)
	c.expect(events.TypeParticipantsUpdated)

	return state
}

func TestSignalingJoinLeaveAndHostPromotion(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	x := dial(t, srv)
	state := x.join("101", "Alice")
	assert.True(t, state.IsHost)
	assert.Equal(t, x.sessionID, state.HostID)

	y := dial(t, srv)
	y.send(events.TypeJoin, events.JoinEvent{RoomID: "101", Name: "Bob"})

	var yState events.RoomStateEvent
	require.NoError(t, y.expect(events.TypeRoomState).Decode(&yState))
	assert.False(t, yState.IsHost)
	assert.Equal(t, x.sessionID, yState.HostID)

	var existing events.ExistingParticipantsEvent
	require.NoError(t, y.expect(events.TypeExistingParticipants).Decode(&existing))
	assert.Equal(t, []string{x.sessionID}, existing.SessionIDs)
	y.expect(events.TypeParticipantsUpdated)

	var joined events.UserJoinedEvent
	require.NoError(t, x.expect(events.TypeUserJoined).Decode(&joined))
	assert.Equal(t, events.UserJoinedEvent{SessionID: y.sessionID, Name: "Bob"}, joined)
	x.expect(events.TypeParticipantsUpdated)

	// Закрытие сокета хоста эквивалентно leave
	require.NoError(t, x.conn.Close())

	y.expect(events.TypeYouAreNowHost)

	var left events.UserLeftEvent
	require.NoError(t, y.expect(events.TypeUserLeft).Decode(&left))
	assert.Equal(t, x.sessionID, left.SessionID)

	var updated events.ParticipantsUpdatedEvent
	require.NoError(t, y.expect(events.TypeParticipantsUpdated).Decode(&updated))
	require.Len(t, updated.Participants, 1)
	assert.True(t, updated.Participants[y.sessionID].IsHost)
}

func TestSignalingRelayReachesOnlyTarget(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	x := dial(t, srv)
	x.join("101", "Alice")

	y := dial(t, srv)
	y.join("101", "Bob")
	x.expect(events.TypeUserJoined)
	x.expect(events.TypeParticipantsUpdated)

	z := dial(t, srv)
	z.join("101", "Carol")
	for _, c := range []*testClient{x, y} {
		c.expect(events.TypeUserJoined)
		c.expect(events.TypeParticipantsUpdated)
	}

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	x.send(events.TypeOffer, events.RelayEvent{TargetID: y.sessionID, Payload: payload})

	var relayed events.RelayedEvent
	require.NoError(t, y.expect(events.TypeOffer).Decode(&relayed))
	assert.Equal(t, x.sessionID, relayed.SenderID)
	assert.JSONEq(t, string(payload), string(relayed.Payload))

	// z ничего не получил: следующий ответ для него - pong
	z.send(events.TypePing, nil)
	z.expect(events.TypePong)
}

func TestSignalingNonHostCommandIsIgnored(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	x := dial(t, srv)
	x.join("101", "Alice")

	y := dial(t, srv)
	y.join("101", "Bob")
	x.expect(events.TypeUserJoined)
	x.expect(events.TypeParticipantsUpdated)

	y.send(events.TypeMuteUser, events.HostCommandEvent{TargetUserID: x.sessionID})

	x.send(events.TypePing, nil)
	x.expect(events.TypePong)
	y.send(events.TypePing, nil)
	y.expect(events.TypePong)

	// Хост может заглушить участника
	x.send(events.TypeMuteUser, events.HostCommandEvent{TargetUserID: y.sessionID})
	y.expect(events.TypeForceMute)

	var updated events.ParticipantsUpdatedEvent
	require.NoError(t, y.expect(events.TypeParticipantsUpdated).Decode(&updated))
	assert.True(t, updated.Participants[y.sessionID].IsMuted)
}

func TestSignalingRejectsUnknownAndMalformed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	x := dial(t, srv)

	require.NoError(t, x.conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	x.expect(events.TypeError)

	x.send(events.Type("you-are-now-host"), nil)
	x.expect(events.TypeError)

	// data не того вида
	require.NoError(t, x.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","data":"101"}`)))

	var joinErr events.ErrorEvent
	require.NoError(t, x.expect(events.TypeError).Decode(&joinErr))
	assert.Contains(t, joinErr.Message, "join")

	x.join("101", "Alice")

	// Неизвестное действие рисования не рассылается и возвращает ошибку
	x.send(events.TypeAnnotation, map[string]any{"event": map[string]any{"action": "scribble"}})

	var annotationErr events.ErrorEvent
	require.NoError(t, x.expect(events.TypeError).Decode(&annotationErr))
	assert.Contains(t, annotationErr.Message, "scribble")

	// Соединение живо
	x.send(events.TypePing, nil)
	x.expect(events.TypePong)
}

func TestRoomsAndIceEndpoints(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	x := dial(t, srv)
	x.join("101", "Alice")

	resp, err := http.Get(srv.URL + "/api/v1/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms dto.RoomsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	assert.Equal(t, []dto.RoomResponse{{ID: "101", HostID: x.sessionID, Participants: 1}}, rooms.Rooms)

	missing, err := http.Get(srv.URL + "/api/v1/rooms/404")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	journal, err := http.Get(srv.URL + "/api/v1/rooms/101/journal")
	require.NoError(t, err)
	defer journal.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, journal.StatusCode)

	ice, err := http.Get(srv.URL + "/api/v1/ice")
	require.NoError(t, err)
	defer ice.Body.Close()
	require.Equal(t, http.StatusOK, ice.StatusCode)

	var servers []map[string]any
	require.NoError(t, json.NewDecoder(ice.Body).Decode(&servers))
	require.Len(t, servers, 1)
	assert.Equal(t, []any{"stun:stun.example.org:3478"}, servers[0]["urls"])
}

package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
)

func TestRelayDeliversOnlyToTarget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := memory.NewRoomDirectory()
	ws := newRecordingWS("x", "y", "z")

	for _, id := range []string{"x", "y", "z"} {
		_, err := dir.Join(ctx, "101", id, id)
		require.NoError(t, err)
	}

	relay := NewRelayUsecase(dir, ws)
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)

	require.True(t, relay.Relay(ctx, events.TypeOffer, "x", events.RelayEvent{TargetID: "y", Payload: payload}))

	msgs := ws.take("y")
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TypeOffer, msgs[0].Type)

	got := decode[events.RelayedEvent](t, msgs[0])
	assert.Equal(t, "x", got.SenderID)
	assert.JSONEq(t, string(payload), string(got.Payload))

	assert.Empty(t, ws.take("x"))
	assert.Empty(t, ws.take("z"))
}

func TestRelayDrops(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := memory.NewRoomDirectory()
	ws := newRecordingWS("x", "y", "other")

	_, err := dir.Join(ctx, "101", "x", "Alice")
	require.NoError(t, err)
	_, err = dir.Join(ctx, "101", "gone", "Ghost")
	require.NoError(t, err)
	_, err = dir.Join(ctx, "202", "other", "Eve")
	require.NoError(t, err)

	relay := NewRelayUsecase(dir, ws)
	payload := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}`)

	tests := []struct {
		name   string
		kind   events.Type
		sender string
		target string
	}{
		{"unknown target", events.TypeICECandidate, "x", "nobody"},
		{"empty target", events.TypeAnswer, "x", ""},
		{"other room", events.TypeOffer, "x", "other"},
		{"sender outside room", events.TypeOffer, "y", "x"},
		{"target disconnected", events.TypeOffer, "x", "gone"},
		{"not negotiation", events.TypeChatMessage, "x", "gone"},
	}

	for _, tt := range tests {
		assert.False(t, relay.Relay(ctx, tt.kind, tt.sender, events.RelayEvent{TargetID: tt.target, Payload: payload}), tt.name)
	}

	assert.Empty(t, ws.take("x"))
	assert.Empty(t, ws.take("y"))
	assert.Empty(t, ws.take("other"))
}

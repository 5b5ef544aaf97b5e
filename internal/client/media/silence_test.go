package media

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilentPublisherPackets(t *testing.T) {
	t.Parallel()

	pub, err := NewSilentPublisher("bot")
	require.NoError(t, err)

	assert.Equal(t, "audio-bot", pub.Track().ID())
	assert.Equal(t, "stream-bot", pub.Track().StreamID())
	assert.Equal(t, webrtc.RTPCodecTypeAudio, pub.Track().Kind())

	first := pub.NextPacket()
	second := pub.NextPacket()

	assert.Equal(t, uint8(opusPayloadType), first.PayloadType)
	assert.Equal(t, first.SequenceNumber+1, second.SequenceNumber)
	assert.Equal(t, first.Timestamp+960, second.Timestamp)
	assert.Equal(t, []byte{0xF8, 0xFF, 0xFE}, second.Payload)

	raw, err := second.Marshal()
	require.NoError(t, err)
	assert.Len(t, raw, 12+3)
}

func TestSilentPublisherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	pub, err := NewSilentPublisher("bot")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	// Трек без привязок принимает запись и ничего не отправляет
	require.NoError(t, pub.Run(ctx))
	assert.Greater(t, pub.NextPacket().SequenceNumber, uint16(1))
}

package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

const (
	opusPayloadType = 111
	opusClockRate   = 48000
	frameDuration   = 20 * time.Millisecond

	// samplesPerFrame - 20ms при 48kHz
	samplesPerFrame = opusClockRate / 1000 * 20
)

// opusSilence - стандартный кадр тишины Opus
var opusSilence = []byte{0xF8, 0xFF, 0xFE}

// SilentPublisher публикует аудиотрек Opus, в котором только тишина.
// Нужен безголовому участнику, чтобы у собеседников было что согласовать.
type SilentPublisher struct {
	track *webrtc.TrackLocalStaticRTP

	mu        sync.Mutex
	seq       uint16
	timestamp uint32
}

func NewSilentPublisher(id string) (*SilentPublisher, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   opusClockRate,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		"audio-"+id,
		"stream-"+id,
	)
	if err != nil {
		return nil, fmt.Errorf("create opus track: %w", err)
	}

	return &SilentPublisher{track: track}, nil
}

func (p *SilentPublisher) Track() webrtc.TrackLocal {
	return p.track
}

// NextPacket собирает следующий RTP пакет. SSRC выставляет pion при записи.
func (p *SilentPublisher) NextPacket() *rtp.Packet {
	p.mu.Lock()
	defer p.mu.Unlock()

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: p.seq,
			Timestamp:      p.timestamp,
		},
		Payload: opusSilence,
	}

	p.seq++
	p.timestamp += samplesPerFrame

	return packet
}

// Run пишет кадр каждые 20ms, пока ctx не отменен
func (p *SilentPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.track.WriteRTP(p.NextPacket()); err != nil {
				return fmt.Errorf("write silent frame: %w", err)
			}
		}
	}
}

package mesh

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// PionConfig описывает, как создавать настоящие WebRTC соединения
type PionConfig struct {
	ICEServers []webrtc.ICEServer

	// Tracks добавляются в каждое соединение. Без треков соединение только принимает аудио и видео.
	Tracks []webrtc.TrackLocal

	OnTrack func(peerID string, track *webrtc.TrackRemote)
}

func NewPionFactory(cfg PionConfig) (SessionFactory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))

	return func(peerID string) (Session, error) {
		pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
		if err != nil {
			return nil, fmt.Errorf("create peer connection: %w", err)
		}

		if len(cfg.Tracks) == 0 {
			for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
				_, err = pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
				if err != nil {
					_ = pc.Close()
					return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
				}
			}
		}

		for _, track := range cfg.Tracks {
			sender, err := pc.AddTrack(track)
			if err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("add track %s: %w", track.ID(), err)
			}

			// RTCP нужно вычитывать, иначе interceptors не работают
			go func() {
				buf := make([]byte, 1500)
				for {
					if _, _, err := sender.Read(buf); err != nil {
						return
					}
				}
			}()
		}

		if cfg.OnTrack != nil {
			pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
				cfg.OnTrack(peerID, track)
			})
		}

		return pc, nil
	}, nil
}

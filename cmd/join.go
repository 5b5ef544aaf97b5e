package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/client/analysis"
	"github.com/qrave1/RoomCall/internal/client/call"
	"github.com/qrave1/RoomCall/internal/client/media"
	"github.com/qrave1/RoomCall/internal/client/mesh"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/domain/models"
)

var joinFlags struct {
	server      string
	room        string
	name        string
	stun        string
	analysisURL string
	timeout     time.Duration
	debug       bool
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room as a headless participant publishing a silent audio track",
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if joinFlags.debug {
			level = slog.LevelDebug
		}

		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runJoin(ctx, logger)
	},
}

func init() {
	flags := joinCmd.Flags()

	flags.StringVar(&joinFlags.server, "server", "ws://localhost:10000/ws", "signaling websocket url")
	flags.StringVar(&joinFlags.room, "room", "", "room id")
	flags.StringVar(&joinFlags.name, "name", "", "display name")
	flags.StringVar(&joinFlags.stun, "stun", "stun:stun.l.google.com:19302", "stun server url")
	flags.StringVar(&joinFlags.analysisURL, "analysis-url", "", "image analysis service base url")
	flags.DurationVar(&joinFlags.timeout, "negotiation-timeout", 30*time.Second, "per-peer negotiation timeout")
	flags.BoolVar(&joinFlags.debug, "debug", false, "debug logging")

	_ = joinCmd.MarkFlagRequired("room")

	rootCmd.AddCommand(joinCmd)
}

func runJoin(ctx context.Context, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	publisher, err := media.NewSilentPublisher(uuid.NewString())
	if err != nil {
		return err
	}

	factory, err := mesh.NewPionFactory(mesh.PionConfig{
		ICEServers: []webrtc.ICEServer{{URLs: []string{joinFlags.stun}}},
		Tracks:     []webrtc.TrackLocal{publisher.Track()},
		OnTrack: func(peerID string, track *webrtc.TrackRemote) {
			logger.Info(
				"remote track",
				slog.String(constant.PeerID, peerID),
				slog.String("kind", track.Kind().String()),
				slog.String("codec", track.Codec().MimeType),
			)
		},
	})
	if err != nil {
		return err
	}

	var analyzer call.Analyzer
	if joinFlags.analysisURL != "" {
		analyzer = analysis.NewClient(joinFlags.analysisURL, &http.Client{Timeout: 30 * time.Second})
	}

	hooks := call.Hooks{
		OnChat: func(msg events.ChatBroadcast) {
			logger.Info("chat", slog.String(constant.UserName, msg.Name), slog.String("message", msg.Message))
		},
		OnParticipants: func(participants map[string]models.Participant) {
			logger.Info("participants updated", slog.Int("count", len(participants)))
		},
		OnRemoved: func() {
			logger.Warn("removed from room, exiting")
			cancel()
		},
	}

	session, err := call.Dial(ctx, call.Config{
		ServerURL: joinFlags.server,
		RoomID:    joinFlags.room,
		Name:      joinFlags.name,
		Mesh: mesh.Options{
			NegotiationTimeout: joinFlags.timeout,
			OnStateChange: func(peerID string, state mesh.State) {
				logger.Info("peer state", slog.String(constant.PeerID, peerID), slog.String(constant.State, state.String()))
			},
		},
	}, factory, analyzer, hooks, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	go func() {
		if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("silent publisher stopped", slog.Any(constant.Error, err))
		}
	}()

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

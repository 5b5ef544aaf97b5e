package call

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/client/analysis"
	"github.com/qrave1/RoomCall/internal/client/annotation"
	"github.com/qrave1/RoomCall/internal/client/mesh"
	"github.com/qrave1/RoomCall/internal/client/signaling"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/domain/models"
)

var ErrNoAnalyzer = errors.New("analysis service is not configured")

// Analyzer - внешний классификатор изображений
type Analyzer interface {
	Analyze(ctx context.Context, filename string, image io.Reader) (analysis.Result, error)
}

type Config struct {
	ServerURL string
	RoomID    string
	Name      string

	CanvasWidth  int
	CanvasHeight int

	Mesh mesh.Options
}

// Hooks - необязательные обработчики событий комнаты для интерфейса
type Hooks struct {
	OnChat         func(msg events.ChatBroadcast)
	OnParticipants func(participants map[string]models.Participant)
	OnAnalysis     func(update events.AnalysisUpdateEvent)
	OnRemoved      func()
}

// Session связывает сигнальный сокет, сетку соединений, холст и анализ
// изображений в одного участника звонка
type Session struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger

	signal   *signaling.Client
	mesh     *mesh.Manager
	canvas   *annotation.Engine
	analyzer Analyzer

	mu           sync.RWMutex
	participants map[string]models.Participant
	isHost       bool
	muted        bool
	videoOn      bool
	joined       bool
}

func Dial(
	ctx context.Context,
	cfg Config,
	factory mesh.SessionFactory,
	analyzer Analyzer,
	hooks Hooks,
	logger *slog.Logger,
) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.CanvasWidth <= 0 || cfg.CanvasHeight <= 0 {
		cfg.CanvasWidth, cfg.CanvasHeight = 1280, 720
	}

	client, err := signaling.Dial(ctx, cfg.ServerURL, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:          cfg,
		hooks:        hooks,
		logger:       logger.With(slog.String(constant.RoomID, cfg.RoomID)),
		signal:       client,
		analyzer:     analyzer,
		participants: make(map[string]models.Participant),
		videoOn:      true,
	}

	if cfg.Mesh.Logger == nil {
		cfg.Mesh.Logger = s.logger
	}
	s.mesh = mesh.NewManager(factory, client, cfg.Mesh)

	s.register()

	return s, nil
}

// Run отправляет join и обслуживает сокет до его закрытия или отмены ctx
func (s *Session) Run(ctx context.Context) error {
	defer s.mesh.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- s.signal.Run(ctx) }()

	if err := s.signal.Send(events.TypeJoin, events.JoinEvent{RoomID: s.cfg.RoomID, Name: s.cfg.Name}); err != nil {
		_ = s.signal.Close()
		<-errCh

		return fmt.Errorf("send join: %w", err)
	}

	return <-errCh
}

func (s *Session) Close() error {
	return s.signal.Close()
}

func (s *Session) SessionID() string {
	return s.signal.SessionID()
}

// Canvas - локальный холст. Жесты на нем автоматически рассылаются в комнату.
func (s *Session) Canvas() *annotation.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.canvas
}

func (s *Session) Mesh() *mesh.Manager {
	return s.mesh
}

func (s *Session) IsHost() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isHost
}

func (s *Session) Joined() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.joined
}

func (s *Session) Participants() map[string]models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Participant, len(s.participants))
	for id, p := range s.participants {
		out[id] = p
	}

	return out
}

func (s *Session) SendChat(text string) error {
	return s.signal.Send(events.TypeChatMessage, events.ChatEvent{Message: text})
}

func (s *Session) SetMedia(muted, videoOn bool) error {
	s.mu.Lock()
	s.muted, s.videoOn = muted, videoOn
	s.mu.Unlock()

	return s.signal.Send(events.TypeMediaState, events.MediaStateEvent{IsMuted: &muted, IsVideoOn: &videoOn})
}

func (s *Session) Mute(targetID string, mute bool) error {
	t := events.TypeUnmuteUser
	if mute {
		t = events.TypeMuteUser
	}

	return s.signal.Send(t, events.HostCommandEvent{TargetUserID: targetID})
}

func (s *Session) ChangeHost(newHostID string) error {
	return s.signal.Send(events.TypeChangeHost, events.ChangeHostEvent{NewHostID: newHostID})
}

func (s *Session) Remove(targetID string) error {
	return s.signal.Send(events.TypeRemoveUser, events.HostCommandEvent{TargetUserID: targetID})
}

func (s *Session) Leave() error {
	s.resetRoom()
	return s.signal.Send(events.TypeLeave, nil)
}

// Analyze отправляет снимок во внешний сервис. Комната получает analysis-started,
// затем результат при успехе или только статус ошибки.
func (s *Session) Analyze(ctx context.Context, filename string, image []byte) (analysis.Result, error) {
	if s.analyzer == nil {
		return analysis.Result{}, ErrNoAnalyzer
	}

	if err := s.signal.Send(events.TypeAnalysisStart, nil); err != nil {
		return analysis.Result{}, err
	}

	result, err := s.analyzer.Analyze(ctx, filename, bytes.NewReader(image))
	if err != nil {
		if sendErr := s.signal.Send(events.TypeAnalysisError, events.AnalysisErrorEvent{Error: err.Error()}); sendErr != nil {
			s.logger.Warn("send analysis error", slog.Any(constant.Error, sendErr))
		}

		return analysis.Result{}, fmt.Errorf("analyze image: %w", err)
	}

	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	err = s.signal.Send(events.TypeAnalysisResult, events.AnalysisResultEvent{
		ImageData:  dataURL,
		Prediction: result.Prediction,
		Confidence: result.Confidence,
	})
	if err != nil {
		return result, err
	}

	return result, nil
}

func (s *Session) ShareReport(report string) error {
	return s.signal.Send(events.TypeReportShared, events.ReportEvent{Report: report})
}

func (s *Session) SetPopup(opened bool) error {
	t := events.TypePopupClosed
	if opened {
		t = events.TypePopupOpened
	}

	return s.signal.Send(t, nil)
}

func (s *Session) emitAnnotation(ev events.AnnotationEvent) {
	if err := s.signal.Send(events.TypeAnnotation, events.AnnotationEnvelope{Event: ev}); err != nil {
		s.logger.Warn("send annotation", slog.Any(constant.Error, err))
	}
}

func (s *Session) resetRoom() {
	s.mesh.Reset()

	s.mu.Lock()
	s.joined = false
	s.isHost = false
	s.participants = make(map[string]models.Participant)
	s.mu.Unlock()
}

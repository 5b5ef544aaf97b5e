package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/domain/events"
	"github.com/qrave1/RoomCall/internal/infra/adapters/memory"
)

// CollaborationUsecase - чистая пересылка событий комнаты: рисование, чат,
// результаты анализа изображений. Таблицу комнат не меняет и историю не хранит.
type CollaborationUsecase interface {
	BroadcastAnnotation(ctx context.Context, senderID string, event events.AnnotationEvent) int
	HandleChat(ctx context.Context, senderID string, chat events.ChatEvent)

	HandleAnalysisStarted(ctx context.Context, senderID string)
	HandleAnalysisResult(ctx context.Context, senderID string, result events.AnalysisResultEvent)
	HandleAnalysisError(ctx context.Context, senderID string, analysisErr events.AnalysisErrorEvent)

	HandlePopup(ctx context.Context, senderID string, opened bool)
	HandleReport(ctx context.Context, senderID string, report events.ReportEvent)
}

type collaborationUsecase struct {
	notifier

	now func() time.Time
}

func NewCollaborationUsecase(
	directory memory.RoomDirectory,
	wsRepo memory.WebsocketConnectionRepository,
	now func() time.Time,
) CollaborationUsecase {
	if now == nil {
		now = time.Now
	}

	return &collaborationUsecase{
		notifier: notifier{directory: directory, wsRepo: wsRepo},
		now:      now,
	}
}

// sender возвращает комнату и имя отправителя. ok=false, если он ни в одной комнате.
func (c *collaborationUsecase) sender(ctx context.Context, senderID string) (roomID, name string, ok bool) {
	roomID, ok = c.directory.RoomOf(ctx, senderID)
	if !ok {
		return "", "", false
	}

	p, ok := c.directory.Participant(ctx, roomID, senderID)
	if !ok {
		return "", "", false
	}

	return roomID, p.Name, true
}

func (c *collaborationUsecase) BroadcastAnnotation(ctx context.Context, senderID string, event events.AnnotationEvent) int {
	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return 0
	}

	return c.broadcast(
		ctx,
		roomID,
		events.TypeAnnotation,
		events.AnnotationBroadcast{SenderID: senderID, SenderName: name, Event: event},
		senderID,
	)
}

func (c *collaborationUsecase) HandleChat(ctx context.Context, senderID string, chat events.ChatEvent) {
	text := strings.TrimSpace(chat.Message)
	if text == "" {
		return
	}

	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return
	}

	c.broadcast(ctx, roomID, events.TypeChatMessage, events.ChatBroadcast{
		Message: text,
		Name:    name,
		Time:    c.now().UnixMilli(),
	}, "")
}

func (c *collaborationUsecase) HandleAnalysisStarted(ctx context.Context, senderID string) {
	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return
	}

	c.broadcast(ctx, roomID, events.TypeAnalysisStatus, events.AnalysisStatusEvent{
		UserName: name,
		Status:   events.AnalysisStatusAnalyzing,
		Message:  fmt.Sprintf("%s is analyzing an image...", name),
	}, senderID)
}

func (c *collaborationUsecase) HandleAnalysisResult(ctx context.Context, senderID string, result events.AnalysisResultEvent) {
	if result.Prediction == "" || result.Confidence < 0 || result.Confidence > 1 {
		slog.Warn("drop malformed analysis result", slog.String(constant.SessionID, senderID))
		return
	}

	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return
	}

	c.broadcast(ctx, roomID, events.TypeAnalysisUpdate, events.AnalysisUpdateEvent{
		ImageData:  result.ImageData,
		Prediction: result.Prediction,
		Confidence: result.Confidence,
		UserName:   name,
	}, "")
}

func (c *collaborationUsecase) HandleAnalysisError(ctx context.Context, senderID string, analysisErr events.AnalysisErrorEvent) {
	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return
	}

	c.broadcast(ctx, roomID, events.TypeAnalysisStatus, events.AnalysisStatusEvent{
		UserName: name,
		Status:   events.AnalysisStatusError,
		Message:  fmt.Sprintf("Analysis failed: %s", analysisErr.Error),
	}, senderID)
}

func (c *collaborationUsecase) HandlePopup(ctx context.Context, senderID string, opened bool) {
	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return
	}

	t := events.TypePopupClosed
	if opened {
		t = events.TypePopupOpened
	}

	c.broadcast(ctx, roomID, t, events.PopupEvent{UserName: name}, senderID)
}

func (c *collaborationUsecase) HandleReport(ctx context.Context, senderID string, report events.ReportEvent) {
	if strings.TrimSpace(report.Report) == "" {
		return
	}

	roomID, name, ok := c.sender(ctx, senderID)
	if !ok {
		return
	}

	c.broadcast(ctx, roomID, events.TypeReportUpdate, events.ReportUpdateEvent{Report: report.Report, UserName: name}, senderID)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/qrave1/RoomCall/internal/application/constant"
	"github.com/qrave1/RoomCall/internal/domain/models"
	"github.com/qrave1/RoomCall/internal/infra/adapters/postgres/repository"
)

var ErrJournalDisabled = errors.New("session journal disabled")

// JournalUsecase - аудит событий комнат. Record не блокирует: запись уходит
// в буфер и сохраняется фоновым Run. При переполнении буфера запись теряется.
type JournalUsecase interface {
	Record(ctx context.Context, entry models.JournalEntry)
	History(ctx context.Context, roomID string, limit int) ([]models.JournalEntry, error)
	Run(ctx context.Context)
}

type journalUsecase struct {
	repo    repository.JournalRepository
	entries chan models.JournalEntry
	dropped atomic.Int64
}

func NewJournalUsecase(repo repository.JournalRepository, buffer int) JournalUsecase {
	if buffer <= 0 {
		buffer = 1
	}

	return &journalUsecase{
		repo:    repo,
		entries: make(chan models.JournalEntry, buffer),
	}
}

func (j *journalUsecase) Record(ctx context.Context, entry models.JournalEntry) {
	select {
	case j.entries <- entry:
	default:
		n := j.dropped.Add(1)
		slog.Warn("journal buffer full, entry dropped", slog.String(constant.RoomID, entry.RoomID), slog.Int64("dropped", n))
	}
}

func (j *journalUsecase) History(ctx context.Context, roomID string, limit int) ([]models.JournalEntry, error) {
	entries, err := j.repo.ListByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("room history: %w", err)
	}

	return entries, nil
}

// Run сохраняет записи, пока ctx не отменен, затем дописывает то, что уже в буфере
func (j *journalUsecase) Run(ctx context.Context) {
	for {
		select {
		case entry := <-j.entries:
			j.persist(ctx, entry)
		case <-ctx.Done():
			j.drain()
			return
		}
	}
}

func (j *journalUsecase) drain() {
	for {
		select {
		case entry := <-j.entries:
			j.persist(context.Background(), entry)
		default:
			return
		}
	}
}

func (j *journalUsecase) persist(ctx context.Context, entry models.JournalEntry) {
	if err := j.repo.Insert(ctx, entry); err != nil {
		slog.Error(
			"persist journal entry",
			slog.Any(constant.Error, err),
			slog.String(constant.RoomID, entry.RoomID),
			slog.String("event", string(entry.Event)),
		)
	}
}

type noopJournal struct{}

// NewNoopJournal используется, когда Postgres не настроен
func NewNoopJournal() JournalUsecase {
	return noopJournal{}
}

func (noopJournal) Record(context.Context, models.JournalEntry) {}

func (noopJournal) History(context.Context, string, int) ([]models.JournalEntry, error) {
	return nil, ErrJournalDisabled
}

func (noopJournal) Run(ctx context.Context) {
	<-ctx.Done()
}

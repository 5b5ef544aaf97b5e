package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qrave1/RoomCall/internal/domain/models"
)

type JournalRepository interface {
	Insert(ctx context.Context, entry models.JournalEntry) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.JournalEntry, error)
}

type journalRepo struct {
	db *sqlx.DB
}

func NewJournalRepo(db *sqlx.DB) JournalRepository {
	return &journalRepo{db: db}
}

func (r *journalRepo) Insert(ctx context.Context, entry models.JournalEntry) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO session_journal (room_id, session_id, name, event, created_at)
		 VALUES (:room_id, :session_id, :name, :event, :created_at)`,
		entry,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	return nil
}

func (r *journalRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.JournalEntry, error) {
	entries := make([]models.JournalEntry, 0, limit)

	err := r.db.SelectContext(
		ctx,
		&entries,
		`SELECT id, room_id, session_id, name, event, created_at
		 FROM session_journal
		 WHERE room_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		roomID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select journal entries: %w", err)
	}

	return entries, nil
}

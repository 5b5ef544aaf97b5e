package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomCall/internal/domain/models"
)

func newMockRepo(t *testing.T) (JournalRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewJournalRepo(sqlx.NewDb(db, "pgx")), mock
}

func TestJournalRepoInsert(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO session_journal`).
		WithArgs("101", "x", "Alice", "joined", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), models.JournalEntry{
		RoomID:    "101",
		SessionID: "x",
		Name:      "Alice",
		Event:     models.JournalJoined,
		CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepoInsertWrapsError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO session_journal`).WillReturnError(boom)

	err := repo.Insert(context.Background(), models.JournalEntry{RoomID: "101", Event: models.JournalRoomClosed})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "insert journal entry")
}

func TestJournalRepoListByRoom(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "room_id", "session_id", "name", "event", "created_at"}).
		AddRow(2, "101", "x", "Alice", "left", now.Add(time.Minute)).
		AddRow(1, "101", "x", "Alice", "joined", now)

	mock.ExpectQuery(`SELECT id, room_id, session_id, name, event, created_at\s+FROM session_journal`).
		WithArgs("101", 10).
		WillReturnRows(rows)

	entries, err := repo.ListByRoom(context.Background(), "101", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(2), entries[0].ID)
	assert.Equal(t, models.JournalLeft, entries[0].Event)
	assert.Equal(t, now, entries[1].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

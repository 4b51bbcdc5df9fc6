package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestModerationDecideTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewModerationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE moderation_requests SET")).
		WithArgs("mr-1", models.ModerationStatusApproved, "mod-1", sqlmock.AnyArg(), nil, nil, models.ModerationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.DecideTx(context.Background(), tx, DecideModerationParams{
		ID:         "mr-1",
		Status:     models.ModerationStatusApproved,
		ReviewedBy: "mod-1",
		DecidedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationDecideTxAlreadyDecided(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewModerationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE moderation_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.DecideTx(context.Background(), tx, DecideModerationParams{
		ID:         "mr-1",
		Status:     models.ModerationStatusRejected,
		ReviewedBy: "mod-1",
		DecidedAt:  time.Now().UTC(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

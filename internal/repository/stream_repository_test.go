package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeleteBlockedWhileReferenced(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStreamRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM streams WHERE id = $1 FOR UPDATE")).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("st-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE stream_id = $1")).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "st-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStreamInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamDeleteUnreferencedCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStreamRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM streams WHERE id = $1 FOR UPDATE")).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("st-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE stream_id = $1")).
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM streams WHERE id = $1")).
		WithArgs("st-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "st-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamDeleteMissingRowRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStreamRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM streams WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

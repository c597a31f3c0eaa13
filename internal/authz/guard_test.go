package authz

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

const lockReportQuery = `SELECT r.id, c.stream_id, r.lecturer_id, r.status FROM reports r JOIN courses c ON c.id = r.course_id WHERE r.id = $1 FOR UPDATE OF r`

func reportLoader() OwnershipLoader {
	return func(ctx context.Context, tx *sqlx.Tx, resourceID string) (Resource, error) {
		var row struct {
			ID         string              `db:"id"`
			StreamID   string              `db:"stream_id"`
			LecturerID string              `db:"lecturer_id"`
			Status     models.ReportStatus `db:"status"`
		}
		if err := tx.GetContext(ctx, &row, lockReportQuery, resourceID); err != nil {
			return Resource{}, err
		}
		return ReportResource(row.ID, row.StreamID, row.LecturerID, row.Status), nil
	}
}

func TestGuardCommitsWhenOwnershipHolds(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReportQuery)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stream_id", "lecturer_id", "status"}).
			AddRow("r1", "stream-5", "lect-1", string(models.ReportStatusPending)))
	mock.ExpectExec("UPDATE reports SET topic").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	guard := NewGuard(db)
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))

	performed := false
	err := guard.Do(context.Background(), id, ActionUpdate, "r1", reportLoader(), func(ctx context.Context, tx *sqlx.Tx, res Resource) error {
		performed = true
		assert.Equal(t, "r1", res.ID)
		_, err := tx.ExecContext(ctx, "UPDATE reports SET topic = $1 WHERE id = $2", "new topic", "r1")
		return err
	})

	require.NoError(t, err)
	assert.True(t, performed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardRollsBackOnDeny(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	// Ownership moved to another lecturer between the initial read and the
	// guarded write; the fresh tuple must win.
	mock.ExpectQuery(regexp.QuoteMeta(lockReportQuery)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stream_id", "lecturer_id", "status"}).
			AddRow("r1", "stream-5", "lect-2", string(models.ReportStatusPending)))
	mock.ExpectRollback()

	guard := NewGuard(db)
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))

	err := guard.Do(context.Background(), id, ActionUpdate, "r1", reportLoader(), func(ctx context.Context, tx *sqlx.Tx, res Resource) error {
		t.Fatal("perform must not run after a deny")
		return nil
	})

	denied, ok := AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNotOwner, denied.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardRollsBackOnStatusChange(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReportQuery)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stream_id", "lecturer_id", "status"}).
			AddRow("r1", "stream-5", "lect-1", string(models.ReportStatusReviewed)))
	mock.ExpectRollback()

	guard := NewGuard(db)
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))

	err := guard.Do(context.Background(), id, ActionUpdate, "r1", reportLoader(), func(ctx context.Context, tx *sqlx.Tx, res Resource) error {
		return nil
	})

	denied, ok := AsDenied(err)
	require.True(t, ok)
	assert.Equal(t, ReasonInvalidStatus, denied.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardMapsMissingRowToNotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReportQuery)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	guard := NewGuard(db)
	id := identity(models.RoleProgramLeader, "pl-1", nil)

	err := guard.Do(context.Background(), id, ActionDelete, "missing", reportLoader(), func(ctx context.Context, tx *sqlx.Tx, res Resource) error {
		return nil
	})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardRollsBackOnPerformError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockReportQuery)).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "stream_id", "lecturer_id", "status"}).
			AddRow("r1", "stream-5", "lect-1", string(models.ReportStatusPending)))
	mock.ExpectRollback()

	guard := NewGuard(db)
	id := identity(models.RoleLecturer, "lect-1", strPtr("stream-5"))

	boom := errors.New("write failed")
	err := guard.Do(context.Background(), id, ActionUpdate, "r1", reportLoader(), func(ctx context.Context, tx *sqlx.Tx, res Resource) error {
		return boom
	})

	assert.True(t, errors.Is(err, boom))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func strPtr(s string) *string { return &s }

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "stream_id", "active", "last_login", "created_at", "updated_at"})
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("1", "lecturer@example.com", "hash", "Lecturer", string(models.RoleLecturer), "st-1", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, stream_id, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("lecturer@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "lecturer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "lecturer@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersUnscopedForProgramLeader(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := userRows().
		AddRow("1", "a@example.com", "hash", "A", string(models.RoleStudent), "st-1", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, stream_id, active, last_login, created_at, updated_at FROM users ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).WillReturnRows(countRows)

	pl := authz.Identity{UserID: "pl-1", Role: models.RoleProgramLeader}
	users, total, err := repo.List(context.Background(), pl, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersScopedToStream(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := userRows().
		AddRow("1", "b@example.com", "hash", "B", string(models.RoleLecturer), "st-1", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, stream_id, active, last_login, created_at, updated_at FROM users WHERE stream_id = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("st-1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE stream_id = $1")).
		WithArgs("st-1").
		WillReturnRows(countRows)

	prl := authz.Identity{UserID: "prl-1", Role: models.RolePrincipalLecturer, StreamID: strPtr("st-1")}
	users, total, err := repo.List(context.Background(), prl, models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersCombinesFiltersWithScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleStudent
	listRows := userRows().
		AddRow("1", "c@example.com", "hash", "C", string(role), "st-1", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, stream_id, active, last_login, created_at, updated_at FROM users WHERE role = $1 AND stream_id = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(role, "st-1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE role = $1 AND stream_id = $2")).
		WithArgs(role, "st-1").
		WillReturnRows(countRows)

	prl := authz.Identity{UserID: "prl-1", Role: models.RolePrincipalLecturer, StreamID: strPtr("st-1")}
	users, total, err := repo.List(context.Background(), prl, models.UserFilter{Role: &role})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

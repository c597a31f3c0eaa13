package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

func reportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "lecturer_id", "course_id", "class_id", "week_of_reporting", "date_of_lecture", "topic", "learning_outcomes", "recommendations", "actual_students", "status", "created_at", "updated_at", "stream_id"})
}

func TestListReportsScopedToLecturer(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	listRows := reportRows().
		AddRow("rep-1", "lec-1", "co-1", "cl-1", 6, now, "Recursion", "Base cases", "More examples", 28, string(models.ReportStatusPending), now, now, "st-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports r JOIN courses c ON c.id = r.course_id WHERE c.stream_id = $1 AND r.lecturer_id = $2 ORDER BY r.date_of_lecture DESC, r.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("st-1", "lec-1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports r JOIN courses c ON c.id = r.course_id WHERE c.stream_id = $1 AND r.lecturer_id = $2")).
		WithArgs("st-1", "lec-1").
		WillReturnRows(countRows)

	lecturer := authz.Identity{UserID: "lec-1", Role: models.RoleLecturer, StreamID: strPtr("st-1")}
	reports, total, err := repo.List(context.Background(), lecturer, models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "rep-1", reports[0].ID)
	assert.Equal(t, "st-1", reports[0].StreamID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReportsNullStreamMatchesNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reports r JOIN courses c ON c.id = r.course_id WHERE 1 = 0 ORDER BY r.date_of_lecture DESC, r.created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(reportRows())

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports r JOIN courses c ON c.id = r.course_id WHERE 1 = 0")).
		WillReturnRows(countRows)

	prl := authz.Identity{UserID: "prl-1", Role: models.RolePrincipalLecturer}
	reports, total, err := repo.List(context.Background(), prl, models.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReportsCallerFiltersBeforeScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	status := models.ReportStatusPending
	listRows := reportRows().
		AddRow("rep-1", "lec-1", "co-1", "cl-1", 6, now, "Recursion", "Base cases", "More examples", 28, string(status), now, now, "st-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports r JOIN courses c ON c.id = r.course_id WHERE r.status = $1 AND c.stream_id = $2 ORDER BY r.date_of_lecture DESC, r.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(status, "st-1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports r JOIN courses c ON c.id = r.course_id WHERE r.status = $1 AND c.stream_id = $2")).
		WithArgs(status, "st-1").
		WillReturnRows(countRows)

	prl := authz.Identity{UserID: "prl-1", Role: models.RolePrincipalLecturer, StreamID: strPtr("st-1")}
	reports, total, err := repo.List(context.Background(), prl, models.ReportFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindReportByIDJoinsStream(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	rows := reportRows().
		AddRow("rep-1", "lec-1", "co-1", "cl-1", 6, now, "Recursion", "Base cases", "More examples", 28, string(models.ReportStatusPending), now, now, "st-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports r JOIN courses c ON c.id = r.course_id WHERE r.id = $1 LIMIT 1")).
		WithArgs("rep-1").
		WillReturnRows(rows)

	report, err := repo.FindByID(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, "st-1", report.StreamID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow(string(models.ReportStatusPending), 3).
		AddRow(string(models.ReportStatusApproved), 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.status, COUNT(*) AS count FROM reports r JOIN courses c ON c.id = r.course_id WHERE c.stream_id = $1 GROUP BY r.status")).
		WithArgs("st-1").
		WillReturnRows(rows)

	prl := authz.Identity{UserID: "prl-1", Role: models.RolePrincipalLecturer, StreamID: strPtr("st-1")}
	counts, err := repo.CountByStatus(context.Background(), prl)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.ReportStatusPending])
	assert.Equal(t, 1, counts[models.ReportStatusApproved])
	assert.Equal(t, 0, counts[models.ReportStatusReviewed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddFeedbackAndStatusShareTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO report_feedback").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE reports SET status").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	fb := &models.ReportFeedback{ReportID: "rep-1", PRLID: "prl-1", Comment: "Cover edge cases"}
	require.NoError(t, repo.AddFeedbackTx(context.Background(), tx, fb))
	assert.NotEmpty(t, fb.ID)
	require.NoError(t, repo.UpdateStatusTx(context.Background(), tx, "rep-1", models.ReportStatusReviewed))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

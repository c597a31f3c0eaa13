package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

const reportColumns = `r.id, r.lecturer_id, r.course_id, r.class_id, r.week_of_reporting, r.date_of_lecture, r.topic, r.learning_outcomes, r.recommendations, r.actual_students, r.status, r.created_at, r.updated_at, c.stream_id`

// ReportRepository persists lecture reports and their review feedback.
// Every query derives the report's stream transitively through its course.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report row in PENDING status.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusPending
	}
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now
	const query = `INSERT INTO reports (id, lecturer_id, course_id, class_id, week_of_reporting, date_of_lecture, topic, learning_outcomes, recommendations, actual_students, status, created_at, updated_at)
VALUES (:id, :lecturer_id, :course_id, :class_id, :week_of_reporting, :date_of_lecture, :topic, :learning_outcomes, :recommendations, :actual_students, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID returns a report with its transitive stream populated.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports r JOIN courses c ON c.id = r.course_id WHERE r.id = $1 LIMIT 1`, reportColumns)
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return &report, nil
}

// List returns reports visible to the identity with total count. Caller
// filters and scoper predicates land in one filter set so placeholder
// numbering is computed exactly once.
func (r *ReportRepository) List(ctx context.Context, id authz.Identity, filter models.ReportFilter) ([]models.Report, int, error) {
	filters := buildReportFilters(id, filter)

	clause, args := filters.Render(1)
	baseQuery := "FROM reports r JOIN courses c ON c.id = r.course_id"
	if clause != "" {
		baseQuery += " WHERE " + clause
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY r.date_of_lecture DESC, r.created_at DESC LIMIT %d OFFSET %d", reportColumns, baseQuery, pageSize, offset)

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	return reports, total, nil
}

// ListAllScoped streams every visible report for export rendering.
func (r *ReportRepository) ListAllScoped(ctx context.Context, id authz.Identity) ([]models.Report, error) {
	filters := authz.Scope(id, authz.ResourceReport, nil)

	clause, args := filters.Render(1)
	query := fmt.Sprintf("SELECT %s FROM reports r JOIN courses c ON c.id = r.course_id", reportColumns)
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " ORDER BY r.date_of_lecture DESC"

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("list reports for export: %w", err)
	}
	return reports, nil
}

// CountByStatus returns scoped report counts keyed by status.
func (r *ReportRepository) CountByStatus(ctx context.Context, id authz.Identity) (map[models.ReportStatus]int, error) {
	filters := authz.Scope(id, authz.ResourceReport, nil)

	clause, args := filters.Render(1)
	query := "SELECT r.status, COUNT(*) AS count FROM reports r JOIN courses c ON c.id = r.course_id"
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " GROUP BY r.status"

	rows := []struct {
		Status models.ReportStatus `db:"status"`
		Count  int                 `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}

	counts := make(map[models.ReportStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateTx mutates an owned pending report inside a guarded transaction.
func (r *ReportRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, req models.UpdateReportRequest) error {
	const query = `UPDATE reports SET week_of_reporting = $2, date_of_lecture = $3, topic = $4, learning_outcomes = $5, recommendations = $6, actual_students = $7, updated_at = $8 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, req.WeekOfReporting, req.DateOfLecture, req.Topic, req.LearningOutcomes, req.Recommendations, req.ActualStudents, time.Now().UTC()); err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

// DeleteTx removes a report row inside a guarded transaction. Feedback
// rows cascade at the schema level.
func (r *ReportRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `DELETE FROM reports WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// UpdateStatusTx moves the report lifecycle forward inside a guarded
// transaction. Transition legality is checked by the caller against the
// freshly locked row.
func (r *ReportRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ReportStatus) error {
	const query = `UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

// AddFeedbackTx appends a feedback row inside a guarded transaction.
func (r *ReportRepository) AddFeedbackTx(ctx context.Context, tx *sqlx.Tx, fb *models.ReportFeedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_feedback (id, report_id, prl_id, comment, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, fb.ID, fb.ReportID, fb.PRLID, fb.Comment, fb.CreatedAt); err != nil {
		return fmt.Errorf("add report feedback: %w", err)
	}
	return nil
}

// ListFeedback returns a report's feedback entries oldest first.
func (r *ReportRepository) ListFeedback(ctx context.Context, reportID string) ([]models.ReportFeedback, error) {
	const query = `SELECT id, report_id, prl_id, comment, created_at FROM report_feedback WHERE report_id = $1 ORDER BY created_at ASC`
	var feedback []models.ReportFeedback
	if err := r.db.SelectContext(ctx, &feedback, query, reportID); err != nil {
		return nil, fmt.Errorf("list report feedback: %w", err)
	}
	return feedback, nil
}

// LockOwnership loads and row-locks the report ownership tuple for the
// mutation guard. Only the report row is locked; the course join supplies
// the transitive stream under the same snapshot.
func (r *ReportRepository) LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error) {
	const query = `SELECT r.id, c.stream_id, r.lecturer_id, r.status FROM reports r JOIN courses c ON c.id = r.course_id WHERE r.id = $1 FOR UPDATE OF r`
	var row struct {
		ID         string              `db:"id"`
		StreamID   string              `db:"stream_id"`
		LecturerID string              `db:"lecturer_id"`
		Status     models.ReportStatus `db:"status"`
	}
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		return authz.Resource{}, err
	}
	return authz.ReportResource(row.ID, row.StreamID, row.LecturerID, row.Status), nil
}

func buildReportFilters(id authz.Identity, filter models.ReportFilter) *authz.FilterSet {
	filters := authz.NewFilterSet()
	if filter.CourseID != nil {
		filters.Add("r.course_id = ?", *filter.CourseID)
	}
	if filter.ClassID != nil {
		filters.Add("r.class_id = ?", *filter.ClassID)
	}
	if filter.Status != nil {
		filters.Add("r.status = ?", *filter.Status)
	}
	if filter.Week != nil {
		filters.Add("r.week_of_reporting = ?", *filter.Week)
	}
	if filter.Search != "" {
		filters.Add("(LOWER(r.topic) LIKE ? OR LOWER(r.recommendations) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	return authz.Scope(id, authz.ResourceReport, filters)
}

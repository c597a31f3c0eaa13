package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

const complaintColumns = `id, author_id, stream_id, course_id, subject, body, status, resolved_by, resolved_at, resolution, created_at`

// ComplaintRepository persists complaints filed by students and lecturers.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a new complaint in OPEN status.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	if complaint.Status == "" {
		complaint.Status = models.ComplaintStatusOpen
	}
	complaint.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO complaints (id, author_id, stream_id, course_id, subject, body, status, resolution, created_at)
VALUES (:id, :author_id, :stream_id, :course_id, :subject, :body, :status, :resolution, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// FindByID returns a complaint by identifier.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE id = $1 LIMIT 1`, complaintColumns)
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find complaint by id: %w", err)
	}
	return &complaint, nil
}

// List returns complaints visible to the identity with total count.
// Students and lecturers only ever see their own; reviewers see the
// whole stream.
func (r *ComplaintRepository) List(ctx context.Context, id authz.Identity, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	filters := authz.NewFilterSet()
	if filter.Status != nil {
		filters.Add("status = ?", *filter.Status)
	}
	if filter.CourseID != nil {
		filters.Add("course_id = ?", *filter.CourseID)
	}
	authz.Scope(id, authz.ResourceComplaint, filters)

	clause, args := filters.Render(1)
	baseQuery := "FROM complaints"
	if clause != "" {
		baseQuery += " WHERE " + clause
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", complaintColumns, baseQuery, pageSize, offset)

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	return complaints, total, nil
}

// CountOpen returns the scoped number of unresolved complaints.
func (r *ComplaintRepository) CountOpen(ctx context.Context, id authz.Identity) (int, error) {
	filters := authz.NewFilterSet()
	filters.Add("status = ?", models.ComplaintStatusOpen)
	authz.Scope(id, authz.ResourceComplaint, filters)

	clause, args := filters.Render(1)
	query := "SELECT COUNT(*) FROM complaints WHERE " + clause

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count open complaints: %w", err)
	}
	return count, nil
}

// ResolveTx closes a complaint inside a guarded transaction.
func (r *ComplaintRepository) ResolveTx(ctx context.Context, tx *sqlx.Tx, id, resolverID, resolution string) error {
	const query = `UPDATE complaints SET status = $2, resolved_by = $3, resolved_at = $4, resolution = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, models.ComplaintStatusResolved, resolverID, time.Now().UTC(), resolution); err != nil {
		return fmt.Errorf("resolve complaint: %w", err)
	}
	return nil
}

// LockOwnership loads and row-locks the complaint ownership tuple for the
// mutation guard.
func (r *ComplaintRepository) LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error) {
	const query = `SELECT id, stream_id, author_id FROM complaints WHERE id = $1 FOR UPDATE`
	var row struct {
		ID       string `db:"id"`
		StreamID string `db:"stream_id"`
		AuthorID string `db:"author_id"`
	}
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		return authz.Resource{}, err
	}
	return authz.ComplaintResource(row.ID, row.StreamID, row.AuthorID), nil
}

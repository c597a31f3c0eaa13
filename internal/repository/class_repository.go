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

const classColumns = `id, stream_id, name, venue, total_students, created_at, updated_at`

// ClassRepository persists classes and their course links.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// List returns classes visible to the identity with total count. When a
// course filter is present the query goes through the join table.
func (r *ClassRepository) List(ctx context.Context, id authz.Identity, filter models.ClassFilter) ([]models.Class, int, error) {
	filters := authz.NewFilterSet()
	if filter.StreamID != nil {
		filters.Add("stream_id = ?", *filter.StreamID)
	}
	if filter.CourseID != nil {
		filters.Add("id IN (SELECT class_id FROM class_courses WHERE course_id = ?)", *filter.CourseID)
	}
	if filter.Search != "" {
		filters.Add("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	authz.Scope(id, authz.ResourceClass, filters)

	clause, args := filters.Render(1)
	baseQuery := "FROM classes"
	if clause != "" {
		baseQuery += " WHERE " + clause
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", classColumns, baseQuery, pageSize, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, stream_id, name, venue, total_students, created_at, updated_at) VALUES (:id, :stream_id, :name, :venue, :total_students, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// UpdateTx mutates class attributes inside a guarded transaction.
func (r *ClassRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, req models.UpdateClassRequest) error {
	const query = `UPDATE classes SET name = $2, venue = $3, total_students = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, req.Name, req.Venue, req.TotalStudents, time.Now().UTC()); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// DeleteTx removes a class row inside a guarded transaction.
func (r *ClassRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// LinkCourse attaches a course to the class, ignoring duplicates.
func (r *ClassRepository) LinkCourse(ctx context.Context, classID, courseID string) error {
	const query = `INSERT INTO class_courses (class_id, course_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (class_id, course_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, classID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link class course: %w", err)
	}
	return nil
}

// UnlinkCourse detaches a course from the class.
func (r *ClassRepository) UnlinkCourse(ctx context.Context, classID, courseID string) error {
	const query = `DELETE FROM class_courses WHERE class_id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, query, classID, courseID); err != nil {
		return fmt.Errorf("unlink class course: %w", err)
	}
	return nil
}

// LockOwnership loads and row-locks the class ownership tuple for the
// mutation guard.
func (r *ClassRepository) LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error) {
	const query = `SELECT id, stream_id FROM classes WHERE id = $1 FOR UPDATE`
	var row struct {
		ID       string `db:"id"`
		StreamID string `db:"stream_id"`
	}
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		return authz.Resource{}, err
	}
	return authz.ClassResource(row.ID, row.StreamID), nil
}

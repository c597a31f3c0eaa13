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

const courseColumns = `id, stream_id, lecturer_id, code, name, created_at, updated_at`

// CourseRepository persists courses and their lecturer assignments.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1 LIMIT 1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// List returns courses visible to the identity with total count.
func (r *CourseRepository) List(ctx context.Context, id authz.Identity, filter models.CourseFilter) ([]models.Course, int, error) {
	filters := authz.NewFilterSet()
	if filter.StreamID != nil {
		filters.Add("stream_id = ?", *filter.StreamID)
	}
	if filter.LecturerID != nil {
		filters.Add("lecturer_id = ?", *filter.LecturerID)
	}
	if filter.Search != "" {
		filters.Add("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	authz.Scope(id, authz.ResourceCourse, filters)

	clause, args := filters.Render(1)
	baseQuery := "FROM courses"
	if clause != "" {
		baseQuery += " WHERE " + clause
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY code ASC LIMIT %d OFFSET %d", courseColumns, baseQuery, pageSize, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	return courses, total, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, stream_id, lecturer_id, code, name, created_at, updated_at) VALUES (:id, :stream_id, :lecturer_id, :code, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateTx mutates course attributes inside a guarded transaction.
func (r *CourseRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, req models.UpdateCourseRequest) error {
	const query = `UPDATE courses SET code = $2, name = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, req.Code, req.Name, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// AssignLecturerTx sets or clears the assigned lecturer inside a guarded
// transaction.
func (r *CourseRepository) AssignLecturerTx(ctx context.Context, tx *sqlx.Tx, id string, lecturerID *string) error {
	const query = `UPDATE courses SET lecturer_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, lecturerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign course lecturer: %w", err)
	}
	return nil
}

// DeleteTx removes a course row inside a guarded transaction.
func (r *CourseRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// LockOwnership loads and row-locks the course ownership tuple for the
// mutation guard.
func (r *CourseRepository) LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error) {
	const query = `SELECT id, stream_id, lecturer_id FROM courses WHERE id = $1 FOR UPDATE`
	var row struct {
		ID         string  `db:"id"`
		StreamID   string  `db:"stream_id"`
		LecturerID *string `db:"lecturer_id"`
	}
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		return authz.Resource{}, err
	}
	return authz.CourseResource(row.ID, row.StreamID, row.LecturerID), nil
}

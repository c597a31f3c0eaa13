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

const ratingColumns = `rt.id, rt.student_id, rt.course_id, rt.score, rt.comment, rt.created_at, rt.updated_at`

// RatingRepository persists student course ratings. One row per
// student/course pair; resubmission overwrites in place.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository constructs the repository.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert inserts or replaces the student's rating for a course.
func (r *RatingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rating.CreatedAt = now
	rating.UpdatedAt = now
	const query = `INSERT INTO ratings (id, student_id, course_id, score, comment, created_at, updated_at)
VALUES (:id, :student_id, :course_id, :score, :comment, :created_at, :updated_at)
ON CONFLICT (student_id, course_id) DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// FindByStudentAndCourse returns the student's rating for a course.
func (r *RatingRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings rt WHERE rt.student_id = $1 AND rt.course_id = $2 LIMIT 1`, ratingColumns)
	var rating models.Rating
	if err := r.db.GetContext(ctx, &rating, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find rating: %w", err)
	}
	return &rating, nil
}

// List returns ratings visible to the identity with total count. Stream
// affiliation rides the course join.
func (r *RatingRepository) List(ctx context.Context, id authz.Identity, filter models.RatingFilter) ([]models.Rating, int, error) {
	filters := authz.NewFilterSet()
	if filter.CourseID != nil {
		filters.Add("rt.course_id = ?", *filter.CourseID)
	}
	authz.Scope(id, authz.ResourceRating, filters)

	clause, args := filters.Render(1)
	baseQuery := "FROM ratings rt JOIN courses c ON c.id = rt.course_id"
	if clause != "" {
		baseQuery += " WHERE " + clause
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY rt.updated_at DESC LIMIT %d OFFSET %d", ratingColumns, baseQuery, pageSize, offset)

	var ratings []models.Rating
	if err := r.db.SelectContext(ctx, &ratings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list ratings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count ratings: %w", err)
	}

	return ratings, total, nil
}

// SummarizeByCourse aggregates scoped average scores per course for
// dashboards.
func (r *RatingRepository) SummarizeByCourse(ctx context.Context, id authz.Identity) ([]models.CourseRatingSummary, error) {
	filters := authz.Scope(id, authz.ResourceRating, nil)

	clause, args := filters.Render(1)
	query := "SELECT rt.course_id, AVG(rt.score) AS average_score, COUNT(*) AS rating_count FROM ratings rt JOIN courses c ON c.id = rt.course_id"
	if clause != "" {
		query += " WHERE " + clause
	}
	query += " GROUP BY rt.course_id ORDER BY rt.course_id"

	var summaries []models.CourseRatingSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("summarize ratings: %w", err)
	}
	return summaries, nil
}

// LockOwnership loads and row-locks the rating ownership tuple for the
// mutation guard.
func (r *RatingRepository) LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error) {
	const query = `SELECT rt.id, c.stream_id, rt.student_id FROM ratings rt JOIN courses c ON c.id = rt.course_id WHERE rt.id = $1 FOR UPDATE OF rt`
	var row struct {
		ID        string `db:"id"`
		StreamID  string `db:"stream_id"`
		StudentID string `db:"student_id"`
	}
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		return authz.Resource{}, err
	}
	return authz.RatingResource(row.ID, row.StreamID, row.StudentID), nil
}

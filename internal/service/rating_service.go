package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
)

type ratingRepository interface {
	List(ctx context.Context, id authz.Identity, filter models.RatingFilter) ([]models.Rating, int, error)
	Upsert(ctx context.Context, rating *models.Rating) error
	SummarizeByCourse(ctx context.Context, id authz.Identity) ([]models.CourseRatingSummary, error)
}

// RatingService handles student course ratings. A student rates courses in
// their own stream only, and resubmitting replaces the previous score.
type RatingService struct {
	repo      ratingRepository
	courses   courseFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRatingService constructs the rating service.
func NewRatingService(repo ratingRepository, courses courseFinder, validate *validator.Validate, logger *zap.Logger) *RatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns ratings visible to the caller plus pagination metadata.
func (s *RatingService) List(ctx context.Context, id authz.Identity, filter models.RatingFilter) ([]models.Rating, *models.Pagination, error) {
	ratings, total, err := s.repo.List(ctx, id, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ratings")
	}
	return ratings, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Submit creates or replaces the caller's rating for a course.
func (s *RatingService) Submit(ctx context.Context, id authz.Identity, req models.SubmitRatingRequest) (*models.Rating, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	res := authz.Resource{
		Type:          authz.ResourceRating,
		OwnerStreamID: &course.StreamID,
		OwnerUserID:   &id.UserID,
	}
	if d := authz.Decide(id, authz.ActionCreate, res); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "course not found")
	}

	rating := &models.Rating{
		StudentID: id.UserID,
		CourseID:  req.CourseID,
		Score:     req.Score,
		Comment:   req.Comment,
	}
	if err := s.repo.Upsert(ctx, rating); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}
	return rating, nil
}

// Summaries aggregates scoped per-course averages.
func (s *RatingService) Summaries(ctx context.Context, id authz.Identity) ([]models.CourseRatingSummary, error) {
	summaries, err := s.repo.SummarizeByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize ratings")
	}
	return summaries, nil
}

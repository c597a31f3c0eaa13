package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, id authz.Identity, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, req models.UpdateCourseRequest) error
	AssignLecturerTx(ctx context.Context, tx *sqlx.Tx, id string, lecturerID *string) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error
	LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error)
}

type streamFinder interface {
	FindByID(ctx context.Context, id string) (*models.Stream, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseService handles course administration. Mutations run through the
// mutation guard so ownership is re-read under lock in the same transaction
// as the write.
type CourseService struct {
	repo      courseRepository
	streams   streamFinder
	users     userFinder
	guard     *authz.Guard
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseRepository, streams streamFinder, users userFinder, guard *authz.Guard, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, streams: streams, users: users, guard: guard, validator: validate, logger: logger}
}

// List returns courses visible to the caller plus pagination metadata.
func (s *CourseService) List(ctx context.Context, id authz.Identity, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, id, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single course if the caller's policy permits it.
func (s *CourseService) Get(ctx context.Context, id authz.Identity, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	res := authz.CourseResource(course.ID, course.StreamID, course.LecturerID)
	if d := authz.Decide(id, authz.ActionReadOne, res); !d.Allowed {
		return nil, denyToErr(authz.ActionReadOne, d, "course not found")
	}
	return course, nil
}

// Create registers a new course in a stream.
func (s *CourseService) Create(ctx context.Context, id authz.Identity, req models.CreateCourseRequest) (*models.Course, error) {
	if d := authz.Decide(id, authz.ActionCreate, authz.ListResource(authz.ResourceCourse)); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "course not found")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.streams.FindByID(ctx, req.StreamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "stream does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate stream")
	}
	if req.LecturerID != nil {
		if err := s.validateLecturer(ctx, *req.LecturerID, req.StreamID); err != nil {
			return nil, err
		}
	}

	course := &models.Course{
		StreamID:   req.StreamID,
		LecturerID: req.LecturerID,
		Code:       req.Code,
		Name:       req.Name,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update mutates course attributes under the mutation guard.
func (s *CourseService) Update(ctx context.Context, id authz.Identity, courseID string, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	err := s.guard.Do(ctx, id, authz.ActionUpdate, courseID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.UpdateTx(ctx, tx, courseID, req)
	})
	if err != nil {
		return nil, fromAuthzErr(err, "course not found")
	}
	return s.repo.FindByID(ctx, courseID)
}

// AssignLecturer sets or clears the course's assigned lecturer. The target
// must be a lecturer affiliated with the course's stream.
func (s *CourseService) AssignLecturer(ctx context.Context, id authz.Identity, courseID string, req models.AssignLecturerRequest) (*models.Course, error) {
	err := s.guard.Do(ctx, id, authz.ActionUpdate, courseID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, res authz.Resource) error {
		if req.LecturerID != nil {
			streamID := ""
			if res.OwnerStreamID != nil {
				streamID = *res.OwnerStreamID
			}
			if err := s.validateLecturer(ctx, *req.LecturerID, streamID); err != nil {
				return err
			}
		}
		return s.repo.AssignLecturerTx(ctx, tx, courseID, req.LecturerID)
	})
	if err != nil {
		return nil, fromAuthzErr(err, "course not found")
	}
	return s.repo.FindByID(ctx, courseID)
}

// Delete removes a course under the mutation guard.
func (s *CourseService) Delete(ctx context.Context, id authz.Identity, courseID string) error {
	err := s.guard.Do(ctx, id, authz.ActionDelete, courseID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.DeleteTx(ctx, tx, courseID)
	})
	return fromAuthzErr(err, "course not found")
}

func (s *CourseService) validateLecturer(ctx context.Context, lecturerID, streamID string) error {
	user, err := s.users.FindByID(ctx, lecturerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "lecturer does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate lecturer")
	}
	if user.Role != models.RoleLecturer {
		return appErrors.Clone(appErrors.ErrValidation, "assignee is not a lecturer")
	}
	if user.StreamID == nil || *user.StreamID != streamID {
		return appErrors.Clone(appErrors.ErrValidation, "lecturer belongs to a different stream")
	}
	return nil
}

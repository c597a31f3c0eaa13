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

type classRepository interface {
	List(ctx context.Context, id authz.Identity, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, req models.UpdateClassRequest) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error
	LinkCourse(ctx context.Context, classID, courseID string) error
	UnlinkCourse(ctx context.Context, classID, courseID string) error
	LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// ClassService handles class administration and class-course links.
type ClassService struct {
	repo      classRepository
	streams   streamFinder
	courses   courseFinder
	guard     *authz.Guard
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, streams streamFinder, courses courseFinder, guard *authz.Guard, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, streams: streams, courses: courses, guard: guard, validator: validate, logger: logger}
}

// List returns classes visible to the caller plus pagination metadata.
func (s *ClassService) List(ctx context.Context, id authz.Identity, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, id, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single class if the caller's policy permits it.
func (s *ClassService) Get(ctx context.Context, id authz.Identity, classID string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	res := authz.ClassResource(class.ID, class.StreamID)
	if d := authz.Decide(id, authz.ActionReadOne, res); !d.Allowed {
		return nil, denyToErr(authz.ActionReadOne, d, "class not found")
	}
	return class, nil
}

// Create registers a new class in a stream.
func (s *ClassService) Create(ctx context.Context, id authz.Identity, req models.CreateClassRequest) (*models.Class, error) {
	if d := authz.Decide(id, authz.ActionCreate, authz.ListResource(authz.ResourceClass)); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "class not found")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if _, err := s.streams.FindByID(ctx, req.StreamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "stream does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate stream")
	}

	class := &models.Class{
		StreamID:      req.StreamID,
		Name:          req.Name,
		Venue:         req.Venue,
		TotalStudents: req.TotalStudents,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update mutates class attributes under the mutation guard.
func (s *ClassService) Update(ctx context.Context, id authz.Identity, classID string, req models.UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	err := s.guard.Do(ctx, id, authz.ActionUpdate, classID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.UpdateTx(ctx, tx, classID, req)
	})
	if err != nil {
		return nil, fromAuthzErr(err, "class not found")
	}
	return s.repo.FindByID(ctx, classID)
}

// Delete removes a class under the mutation guard.
func (s *ClassService) Delete(ctx context.Context, id authz.Identity, classID string) error {
	err := s.guard.Do(ctx, id, authz.ActionDelete, classID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.DeleteTx(ctx, tx, classID)
	})
	return fromAuthzErr(err, "class not found")
}

// LinkCourse attaches a course to a class. Both rows must live in the same
// stream; a cross-stream link would make report visibility ambiguous.
func (s *ClassService) LinkCourse(ctx context.Context, id authz.Identity, classID, courseID string) error {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if d := authz.Decide(id, authz.ActionUpdate, authz.ClassResource(class.ID, class.StreamID)); !d.Allowed {
		return denyToErr(authz.ActionUpdate, d, "class not found")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "course does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.StreamID != class.StreamID {
		return appErrors.Clone(appErrors.ErrValidation, "class and course belong to different streams")
	}
	if err := s.repo.LinkCourse(ctx, classID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link course")
	}
	return nil
}

// UnlinkCourse detaches a course from a class.
func (s *ClassService) UnlinkCourse(ctx context.Context, id authz.Identity, classID, courseID string) error {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if d := authz.Decide(id, authz.ActionUpdate, authz.ClassResource(class.ID, class.StreamID)); !d.Allowed {
		return denyToErr(authz.ActionUpdate, d, "class not found")
	}
	if err := s.repo.UnlinkCourse(ctx, classID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink course")
	}
	return nil
}

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

type complaintRepository interface {
	List(ctx context.Context, id authz.Identity, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	Create(ctx context.Context, complaint *models.Complaint) error
	ResolveTx(ctx context.Context, tx *sqlx.Tx, id, resolverID, resolution string) error
	LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error)
}

// ComplaintService handles complaints filed by students and lecturers.
// Authors see their own complaints; the stream's principal lecturer and
// program leaders see and resolve everything in scope.
type ComplaintService struct {
	repo      complaintRepository
	courses   courseFinder
	guard     *authz.Guard
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewComplaintService constructs the complaint service.
func NewComplaintService(repo complaintRepository, courses courseFinder, guard *authz.Guard, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{repo: repo, courses: courses, guard: guard, audit: audit, validator: validate, logger: logger}
}

// List returns complaints visible to the caller plus pagination metadata.
func (s *ComplaintService) List(ctx context.Context, id authz.Identity, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error) {
	complaints, total, err := s.repo.List(ctx, id, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	return complaints, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single complaint. Authors read their own; reviewers read
// anything inside their stream.
func (s *ComplaintService) Get(ctx context.Context, id authz.Identity, complaintID string) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	res := authz.ComplaintResource(complaint.ID, complaint.StreamID, complaint.AuthorID)
	if d := authz.Decide(id, authz.ActionReadOne, res); !d.Allowed {
		return nil, denyToErr(authz.ActionReadOne, d, "complaint not found")
	}
	return complaint, nil
}

// Create files a complaint in the caller's stream.
func (s *ComplaintService) Create(ctx context.Context, id authz.Identity, req models.CreateComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	if id.StreamID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "operation not permitted")
	}

	if req.CourseID != nil {
		course, err := s.courses.FindByID(ctx, *req.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "course does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.StreamID != *id.StreamID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course belongs to a different stream")
		}
	}

	res := authz.Resource{
		Type:          authz.ResourceComplaint,
		OwnerStreamID: id.StreamID,
		OwnerUserID:   &id.UserID,
	}
	if d := authz.Decide(id, authz.ActionCreate, res); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "complaint not found")
	}

	complaint := &models.Complaint{
		AuthorID: id.UserID,
		StreamID: *id.StreamID,
		CourseID: req.CourseID,
		Subject:  req.Subject,
		Body:     req.Body,
		Status:   models.ComplaintStatusOpen,
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}
	return complaint, nil
}

// Resolve closes an open complaint under the mutation guard.
func (s *ComplaintService) Resolve(ctx context.Context, id authz.Identity, complaintID string, req models.ResolveComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}
	err := s.guard.Do(ctx, id, authz.ActionReview, complaintID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.ResolveTx(ctx, tx, complaintID, id.UserID, req.Resolution)
	})
	if err != nil {
		return nil, fromAuthzErr(err, "complaint not found")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &id.UserID,
			Action:     models.AuditActionComplaintResolve,
			Resource:   "complaint",
			ResourceID: &complaintID,
		}); err != nil {
			s.logger.Warn("failed to record complaint audit log", zap.Error(err))
		}
	}
	return s.repo.FindByID(ctx, complaintID)
}

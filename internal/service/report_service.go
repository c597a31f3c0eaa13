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

type reportRepository interface {
	List(ctx context.Context, id authz.Identity, filter models.ReportFilter) ([]models.Report, int, error)
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Create(ctx context.Context, report *models.Report) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, req models.UpdateReportRequest) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ReportStatus) error
	AddFeedbackTx(ctx context.Context, tx *sqlx.Tx, fb *models.ReportFeedback) error
	ListFeedback(ctx context.Context, reportID string) ([]models.ReportFeedback, error)
	LockOwnership(ctx context.Context, tx *sqlx.Tx, id string) (authz.Resource, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type dashboardInvalidator interface {
	InvalidateDashboards(ctx context.Context) error
}

// ReportService handles the lecture report lifecycle. Reads run through the
// policy evaluator and the query scoper; every mutation runs through the
// mutation guard so the ownership tuple the decision saw is the one the
// write commits against.
type ReportService struct {
	repo      reportRepository
	courses   courseFinder
	classes   classFinder
	guard     *authz.Guard
	audit     auditRecorder
	cache     dashboardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, courses courseFinder, classes classFinder, guard *authz.Guard, audit auditRecorder, cache dashboardInvalidator, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, courses: courses, classes: classes, guard: guard, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns reports visible to the caller plus pagination metadata.
func (s *ReportService) List(ctx context.Context, id authz.Identity, filter models.ReportFilter) ([]models.Report, *models.Pagination, error) {
	reports, total, err := s.repo.List(ctx, id, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single report if the caller's policy permits it. A report
// in another stream is indistinguishable from a missing one.
func (s *ReportService) Get(ctx context.Context, id authz.Identity, reportID string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	res := authz.ReportResource(report.ID, report.StreamID, report.LecturerID, report.Status)
	if d := authz.Decide(id, authz.ActionReadOne, res); !d.Allowed {
		return nil, denyToErr(authz.ActionReadOne, d, "report not found")
	}
	return report, nil
}

// ListFeedback returns a report's review feedback, gated on read access to
// the report itself.
func (s *ReportService) ListFeedback(ctx context.Context, id authz.Identity, reportID string) ([]models.ReportFeedback, error) {
	if _, err := s.Get(ctx, id, reportID); err != nil {
		return nil, err
	}
	feedback, err := s.repo.ListFeedback(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return feedback, nil
}

// Create submits a new lecture report. Only the lecturer assigned to the
// target course may author one, and the class must sit in the same stream.
func (s *ReportService) Create(ctx context.Context, id authz.Identity, req models.CreateReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	// The creation target is described by the course: its stream scopes the
	// report and its assigned lecturer is the only permitted author.
	res := authz.Resource{
		Type:          authz.ResourceReport,
		OwnerStreamID: &course.StreamID,
		OwnerUserID:   course.LecturerID,
	}
	if d := authz.Decide(id, authz.ActionCreate, res); !d.Allowed {
		return nil, denyToErr(authz.ActionCreate, d, "course not found")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.StreamID != course.StreamID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class and course belong to different streams")
	}
	if req.ActualStudents > class.TotalStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, "actual students exceeds class size")
	}

	report := &models.Report{
		LecturerID:       id.UserID,
		CourseID:         req.CourseID,
		ClassID:          req.ClassID,
		WeekOfReporting:  req.WeekOfReporting,
		DateOfLecture:    req.DateOfLecture,
		Topic:            req.Topic,
		LearningOutcomes: req.LearningOutcomes,
		Recommendations:  req.Recommendations,
		ActualStudents:   req.ActualStudents,
		Status:           models.ReportStatusPending,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	report.StreamID = course.StreamID

	s.recordAudit(ctx, id, models.AuditActionReportCreate, report.ID, nil)
	s.invalidateDashboards(ctx)
	return report, nil
}

// Update edits a pending report under the mutation guard. Ownership and the
// PENDING status are re-checked against the locked row, so a concurrent
// review cannot be raced.
func (s *ReportService) Update(ctx context.Context, id authz.Identity, reportID string, req models.UpdateReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	err := s.guard.Do(ctx, id, authz.ActionUpdate, reportID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.UpdateTx(ctx, tx, reportID, req)
	})
	if err != nil {
		return nil, fromAuthzErr(err, "report not found")
	}
	s.recordAudit(ctx, id, models.AuditActionReportUpdate, reportID, nil)
	return s.repo.FindByID(ctx, reportID)
}

// Delete removes a pending report under the mutation guard.
func (s *ReportService) Delete(ctx context.Context, id authz.Identity, reportID string) error {
	err := s.guard.Do(ctx, id, authz.ActionDelete, reportID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, _ authz.Resource) error {
		return s.repo.DeleteTx(ctx, tx, reportID)
	})
	if err != nil {
		return fromAuthzErr(err, "report not found")
	}
	s.recordAudit(ctx, id, models.AuditActionReportDelete, reportID, nil)
	s.invalidateDashboards(ctx)
	return nil
}

// Review appends feedback and/or advances the report status. Submitting
// feedback on a PENDING report is the review act itself: the report moves
// to REVIEWED even when no explicit status accompanies the comment. Both
// writes share the guarding transaction, and the transition is validated
// against the status of the locked row, never a previously read copy.
func (s *ReportService) Review(ctx context.Context, id authz.Identity, reportID string, req models.ReviewReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if req.Comment == "" && req.Status == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "review requires a comment or a status change")
	}
	if req.Status != nil {
		switch *req.Status {
		case models.ReportStatusReviewed, models.ReportStatusApproved:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target status")
		}
	}

	err := s.guard.Do(ctx, id, authz.ActionReview, reportID, s.repo.LockOwnership, func(ctx context.Context, tx *sqlx.Tx, res authz.Resource) error {
		current := models.ReportStatusPending
		if res.ReportStatus != nil {
			current = *res.ReportStatus
		}
		if req.Comment != "" {
			fb := &models.ReportFeedback{ReportID: reportID, PRLID: id.UserID, Comment: req.Comment}
			if err := s.repo.AddFeedbackTx(ctx, tx, fb); err != nil {
				return err
			}
		}
		target := req.Status
		if target == nil {
			// A comment alone closes the pending phase; feedback on an
			// already reviewed or approved report leaves the status alone.
			if req.Comment == "" || current != models.ReportStatusPending {
				return nil
			}
			reviewed := models.ReportStatusReviewed
			target = &reviewed
		}
		if !current.CanTransitionTo(*target) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "")
		}
		return s.repo.UpdateStatusTx(ctx, tx, reportID, *target)
	})
	if err != nil {
		return nil, fromAuthzErr(err, "report not found")
	}

	s.recordAudit(ctx, id, models.AuditActionReportReview, reportID, nil)
	s.invalidateDashboards(ctx)
	return s.repo.FindByID(ctx, reportID)
}

func (s *ReportService) recordAudit(ctx context.Context, id authz.Identity, action, resourceID string, newValues []byte) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &id.UserID,
		Action:     action,
		Resource:   "report",
		ResourceID: &resourceID,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record report audit log", zap.Error(err))
	}
}

func (s *ReportService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDashboards(ctx); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

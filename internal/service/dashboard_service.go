package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
)

type reportStatusCounter interface {
	CountByStatus(ctx context.Context, id authz.Identity) (map[models.ReportStatus]int, error)
}

type courseLister interface {
	List(ctx context.Context, id authz.Identity, filter models.CourseFilter) ([]models.Course, int, error)
}

type classLister interface {
	List(ctx context.Context, id authz.Identity, filter models.ClassFilter) ([]models.Class, int, error)
}

type complaintCounter interface {
	CountOpen(ctx context.Context, id authz.Identity) (int, error)
}

type ratingSummarizer interface {
	SummarizeByCourse(ctx context.Context, id authz.Identity) ([]models.CourseRatingSummary, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the role-scoped landing summary. All counts go
// through the same scoped filters as the list endpoints; the cache key is
// per user so a cached payload can never cross a visibility boundary.
type DashboardService struct {
	reports    reportStatusCounter
	courses    courseLister
	classes    classLister
	complaints complaintCounter
	ratings    ratingSummarizer
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Reports    reportStatusCounter
	Courses    courseLister
	Classes    classLister
	Complaints complaintCounter
	Ratings    ratingSummarizer
	Cache      *CacheService
	Logger     *zap.Logger
	Config     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		reports:    params.Reports,
		courses:    params.Courses,
		classes:    params.Classes,
		complaints: params.Complaints,
		ratings:    params.Ratings,
		cache:      params.Cache,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Summary returns the caller's dashboard and indicates cache utilisation.
func (s *DashboardService) Summary(ctx context.Context, id authz.Identity) (*models.DashboardSummary, bool, error) {
	cacheKey := repository.DashboardKey(id.UserID)
	if s.cache != nil {
		var cached models.DashboardSummary
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, id authz.Identity) (*models.DashboardSummary, error) {
	statusCounts, err := s.reports.CountByStatus(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reports")
	}

	_, totalCourses, err := s.courses.List(ctx, id, models.CourseFilter{Page: 1, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}

	_, totalClasses, err := s.classes.List(ctx, id, models.ClassFilter{Page: 1, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}

	openComplaints, err := s.complaints.CountOpen(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}

	summary := &models.DashboardSummary{
		Role:            id.Role,
		StreamID:        id.StreamID,
		TotalCourses:    totalCourses,
		TotalClasses:    totalClasses,
		OpenComplaints:  openComplaints,
		PendingReports:  statusCounts[models.ReportStatusPending],
		ReviewedReports: statusCounts[models.ReportStatusReviewed],
		ApprovedReports: statusCounts[models.ReportStatusApproved],
		GeneratedAt:     s.now().UTC(),
	}
	summary.TotalReports = summary.PendingReports + summary.ReviewedReports + summary.ApprovedReports

	// Students see no rating breakdown beyond their own rows, which is
	// not worth a dashboard section.
	if id.Role != models.RoleStudent && s.ratings != nil {
		summaries, err := s.ratings.SummarizeByCourse(ctx, id)
		if err != nil {
			s.logger.Warn("rating summary fetch failed", zap.Error(err))
		} else {
			summary.RatingSummaries = summaries
		}
	}
	return summary, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/export"
	"github.com/noah-isme/faculty-reporting-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListByRequester(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type scopedReportLister interface {
	ListAllScoped(ctx context.Context, id authz.Identity) ([]models.Report, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type jobEnqueuer interface {
	EnqueueExport(payload ExportJobPayload) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportJobPayload travels through the in-memory queue. The requester's
// identity is captured at enqueue time so the worker renders exactly the
// rows the requester was allowed to list, not the rows visible at run time
// to whoever triggers the worker.
type ExportJobPayload struct {
	JobID    string
	Identity authz.Identity
}

// ExportService renders scoped report exports asynchronously.
type ExportService struct {
	jobs      exportJobRepository
	reports   scopedReportLister
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	queue     jobEnqueuer
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Jobs      exportJobRepository
	Reports   scopedReportLister
	Storage   fileStorage
	CSV       csvRenderer
	PDF       pdfRenderer
	Signer    *storage.SignedURLSigner
	Queue     jobEnqueuer
	Audit     auditRecorder
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	csv := params.CSV
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		jobs:      params.Jobs,
		reports:   params.Reports,
		storage:   params.Storage,
		csv:       csv,
		pdf:       pdf,
		signer:    params.Signer,
		queue:     params.Queue,
		audit:     params.Audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Request enqueues an asynchronous export of every report the caller can
// list.
func (s *ExportService) Request(ctx context.Context, id authz.Identity, req models.CreateExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	job := &models.ExportJob{
		Format:      req.Format,
		Status:      models.ExportStatusQueued,
		RequestedBy: id.UserID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.EnqueueExport(ExportJobPayload{JobID: job.ID, Identity: id}); err != nil {
		failMsg := "queue unavailable"
		status := models.ExportStatusFailed
		if uerr := s.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &status, ErrorMessage: &failMsg}); uerr != nil {
			s.logger.Warn("failed to mark unqueued export job", zap.Error(uerr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &id.UserID,
			Action:     models.AuditActionExportRequest,
			Resource:   "export",
			ResourceID: &job.ID,
		}); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}
	return job, nil
}

// Get returns a job's status. Jobs are private to their requester.
func (s *ExportService) Get(ctx context.Context, id authz.Identity, jobID string) (*models.ExportJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.RequestedBy != id.UserID && id.Role != models.RoleProgramLeader {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ListMine returns the caller's recent export jobs.
func (s *ExportService) ListMine(ctx context.Context, id authz.Identity, limit int) ([]models.ExportJob, error) {
	jobs, err := s.jobs.ListByRequester(ctx, id.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return jobs, nil
}

// Process runs on the worker pool: renders the scoped dataset and stores
// the artifact.
func (s *ExportService) Process(ctx context.Context, payload ExportJobPayload) error {
	running := models.ExportStatusRunning
	progress := 10
	if err := s.jobs.Update(ctx, payload.JobID, repository.UpdateExportJobParams{Status: &running, Progress: &progress}); err != nil {
		return fmt.Errorf("mark export running: %w", err)
	}

	url, relPath, err := s.render(ctx, payload)
	if err != nil {
		s.markFailed(ctx, payload.JobID, err)
		return err
	}

	finished := models.ExportStatusFinished
	done := 100
	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, payload.JobID, repository.UpdateExportJobParams{
		Status:     &finished,
		Progress:   &done,
		FilePath:   &relPath,
		ResultURL:  &url,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, payload ExportJobPayload) (url, relPath string, err error) {
	job, err := s.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		return "", "", fmt.Errorf("load export job: %w", err)
	}

	reports, err := s.reports.ListAllScoped(ctx, payload.Identity)
	if err != nil {
		return "", "", fmt.Errorf("load scoped reports: %w", err)
	}
	dataset := buildReportDataset(reports)
	title := "Lecture Reports"

	var data []byte
	switch job.Format {
	case models.ExportFormatCSV:
		data, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		data, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return "", "", err
	}

	filename := fmt.Sprintf("reports_%s.%s", time.Now().UTC().Format("20060102_150405"), strings.ToLower(string(job.Format)))
	relPath, err = s.storage.Save(filename, data)
	if err != nil {
		return "", "", fmt.Errorf("save export file: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", "", fmt.Errorf("sign export url: %w", err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download/%s", prefix, token), relPath, nil
}

func (s *ExportService) markFailed(ctx context.Context, jobID string, cause error) {
	failed := models.ExportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.jobs.Update(ctx, jobID, repository.UpdateExportJobParams{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes expired artifacts and detaches them from their jobs.
// It returns the number of jobs whose files were purged.
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	cutoff := time.Now().UTC().Add(-ttl)

	jobs, err := s.jobs.ListFinishedBefore(ctx, cutoff, 200)
	if err != nil {
		return 0, fmt.Errorf("list expired export jobs: %w", err)
	}
	purged := 0
	for _, job := range jobs {
		if job.FilePath != nil && *job.FilePath != "" {
			if err := s.storage.Delete(*job.FilePath); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to delete export artifact", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
		}
		empty := ""
		if err := s.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{FilePath: &empty, ResultURL: &empty}); err != nil {
			s.logger.Warn("failed to detach export artifact", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		purged++
	}

	// Sweep orphans left behind by jobs purged from the table.
	if _, err := s.storage.CleanupOlderThan(ttl); err != nil {
		s.logger.Warn("export storage sweep failed", zap.Error(err))
	}
	return purged, nil
}

func buildReportDataset(reports []models.Report) export.Dataset {
	rows := make([]map[string]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, map[string]string{
			"Report ID":       r.ID,
			"Course ID":       r.CourseID,
			"Class ID":        r.ClassID,
			"Week":            fmt.Sprintf("%d", r.WeekOfReporting),
			"Lecture Date":    r.DateOfLecture.UTC().Format("2006-01-02"),
			"Topic":           r.Topic,
			"Actual Students": fmt.Sprintf("%d", r.ActualStudents),
			"Status":          string(r.Status),
		})
	}
	return export.Dataset{
		Headers: []string{"Report ID", "Course ID", "Class ID", "Week", "Lecture Date", "Topic", "Actual Students", "Status"},
		Rows:    rows,
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
	"github.com/noah-isme/faculty-reporting-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-reporting-api/pkg/errors"
	"github.com/noah-isme/faculty-reporting-api/pkg/storage"
)

type mockExportJobRepo struct {
	jobs    map[string]*models.ExportJob
	updates map[string][]repository.UpdateExportJobParams
}

func (m *mockExportJobRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ExportJob)
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockExportJobRepo) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExportJobRepo) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	if m.updates == nil {
		m.updates = make(map[string][]repository.UpdateExportJobParams)
	}
	m.updates[id] = append(m.updates[id], params)
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockExportJobRepo) ListByRequester(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.RequestedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockExportJobRepo) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type mockScopedReports struct {
	reports      []models.Report
	lastIdentity authz.Identity
}

func (m *mockScopedReports) ListAllScoped(ctx context.Context, id authz.Identity) ([]models.Report, error) {
	m.lastIdentity = id
	return m.reports, nil
}

type mockExportStorage struct {
	saved   map[string][]byte
	deleted []string
}

func (m *mockExportStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockExportStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *mockExportStorage) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

func (m *mockExportStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type mockQueue struct {
	payloads []ExportJobPayload
	err      error
}

func (m *mockQueue) EnqueueExport(payload ExportJobPayload) error {
	if m.err != nil {
		return m.err
	}
	m.payloads = append(m.payloads, payload)
	return nil
}

func newExportService(jobs *mockExportJobRepo, reports *mockScopedReports, store *mockExportStorage, queue *mockQueue) *ExportService {
	return NewExportService(ExportServiceParams{
		Jobs:      jobs,
		Reports:   reports,
		Storage:   store,
		Signer:    storage.NewSignedURLSigner("export-secret", time.Hour),
		Queue:     queue,
		Validator: validator.New(),
		Logger:    zap.NewNop(),
		Config:    ExportConfig{APIPrefix: "/api/v1"},
	})
}

func TestExportServiceRequestEnqueuesWithIdentity(t *testing.T) {
	jobs := &mockExportJobRepo{}
	queue := &mockQueue{}
	svc := newExportService(jobs, &mockScopedReports{}, &mockExportStorage{}, queue)

	streamID := "stream-1"
	id := authz.Identity{UserID: "prl-1", Role: models.RolePrincipalLecturer, StreamID: &streamID}
	job, err := svc.Request(context.Background(), id, models.CreateExportRequest{Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	require.Len(t, queue.payloads, 1)
	assert.Equal(t, job.ID, queue.payloads[0].JobID)
	assert.Equal(t, id, queue.payloads[0].Identity)
}

func TestExportServiceRequestRejectsUnknownFormat(t *testing.T) {
	svc := newExportService(&mockExportJobRepo{}, &mockScopedReports{}, &mockExportStorage{}, &mockQueue{})

	_, err := svc.Request(context.Background(), authz.Identity{UserID: "u1"}, models.CreateExportRequest{Format: "XLSX"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportServiceRequestMarksJobFailedWhenQueueRejects(t *testing.T) {
	jobs := &mockExportJobRepo{}
	queue := &mockQueue{err: errors.New("queue full")}
	svc := newExportService(jobs, &mockScopedReports{}, &mockExportStorage{}, queue)

	_, err := svc.Request(context.Background(), authz.Identity{UserID: "u1"}, models.CreateExportRequest{Format: models.ExportFormatCSV})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, jobs.jobs["job-1"].Status)
}

func TestExportServiceProcessRendersScopedCSV(t *testing.T) {
	jobs := &mockExportJobRepo{jobs: map[string]*models.ExportJob{
		"job-1": {ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued, RequestedBy: "lect-1"},
	}}
	reports := &mockScopedReports{reports: []models.Report{
		{ID: "rep-1", CourseID: "course-1", ClassID: "class-1", WeekOfReporting: 6, DateOfLecture: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Topic: "Graphs", ActualStudents: 28, Status: models.ReportStatusApproved},
	}}
	store := &mockExportStorage{}
	svc := newExportService(jobs, reports, store, &mockQueue{})

	streamID := "stream-1"
	identity := authz.Identity{UserID: "lect-1", Role: models.RoleLecturer, StreamID: &streamID}
	err := svc.Process(context.Background(), ExportJobPayload{JobID: "job-1", Identity: identity})
	require.NoError(t, err)

	assert.Equal(t, identity, reports.lastIdentity)
	job := jobs.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.True(t, strings.HasPrefix(*job.ResultURL, "/api/v1/exports/download/"))
	require.Len(t, store.saved, 1)
	for _, data := range store.saved {
		assert.Contains(t, string(data), "Graphs")
	}
}

func TestExportServiceProcessMarksFailureOnUnknownFormat(t *testing.T) {
	jobs := &mockExportJobRepo{jobs: map[string]*models.ExportJob{
		"job-1": {ID: "job-1", Format: "XLSX", Status: models.ExportStatusQueued, RequestedBy: "lect-1"},
	}}
	svc := newExportService(jobs, &mockScopedReports{}, &mockExportStorage{}, &mockQueue{})

	err := svc.Process(context.Background(), ExportJobPayload{JobID: "job-1"})
	require.Error(t, err)
	job := jobs.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestExportServiceGetHidesForeignJobs(t *testing.T) {
	jobs := &mockExportJobRepo{jobs: map[string]*models.ExportJob{
		"job-1": {ID: "job-1", Format: models.ExportFormatCSV, RequestedBy: "someone-else"},
	}}
	svc := newExportService(jobs, &mockScopedReports{}, &mockExportStorage{}, &mockQueue{})

	_, err := svc.Get(context.Background(), authz.Identity{UserID: "u1", Role: models.RoleLecturer}, "job-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestExportServiceCleanupDetachesExpiredArtifacts(t *testing.T) {
	finished := time.Now().Add(-48 * time.Hour)
	path := "reports_old.csv"
	jobs := &mockExportJobRepo{jobs: map[string]*models.ExportJob{
		"job-1": {ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusFinished, FilePath: &path, FinishedAt: &finished},
	}}
	store := &mockExportStorage{}
	svc := newExportService(jobs, &mockScopedReports{}, store, &mockQueue{})

	purged, err := svc.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Contains(t, store.deleted, "reports_old.csv")
	require.NotNil(t, jobs.jobs["job-1"].FilePath)
	assert.Empty(t, *jobs.jobs["job-1"].FilePath)
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-reporting-api/internal/authz"
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

type mockStatusCounter struct {
	counts map[models.ReportStatus]int
	err    error
	calls  int
}

func (m *mockStatusCounter) CountByStatus(ctx context.Context, id authz.Identity) (map[models.ReportStatus]int, error) {
	m.calls++
	return m.counts, m.err
}

type mockCourseLister struct{ total int }

func (m *mockCourseLister) List(ctx context.Context, id authz.Identity, filter models.CourseFilter) ([]models.Course, int, error) {
	return nil, m.total, nil
}

type mockClassLister struct{ total int }

func (m *mockClassLister) List(ctx context.Context, id authz.Identity, filter models.ClassFilter) ([]models.Class, int, error) {
	return nil, m.total, nil
}

type mockComplaintCounter struct{ open int }

func (m *mockComplaintCounter) CountOpen(ctx context.Context, id authz.Identity) (int, error) {
	return m.open, nil
}

type mockRatingSummarizer struct {
	summaries []models.CourseRatingSummary
	err       error
	calls     int
}

func (m *mockRatingSummarizer) SummarizeByCourse(ctx context.Context, id authz.Identity) ([]models.CourseRatingSummary, error) {
	m.calls++
	return m.summaries, m.err
}

func newDashboardFixture() (*DashboardService, *mockStatusCounter, *mockRatingSummarizer) {
	reports := &mockStatusCounter{counts: map[models.ReportStatus]int{
		models.ReportStatusPending:  3,
		models.ReportStatusReviewed: 2,
		models.ReportStatusApproved: 5,
	}}
	ratings := &mockRatingSummarizer{summaries: []models.CourseRatingSummary{
		{CourseID: "course-1", AverageScore: 4.2, RatingCount: 11},
	}}
	svc := NewDashboardService(DashboardServiceParams{
		Reports:    reports,
		Courses:    &mockCourseLister{total: 7},
		Classes:    &mockClassLister{total: 4},
		Complaints: &mockComplaintCounter{open: 2},
		Ratings:    ratings,
	})
	return svc, reports, ratings
}

func TestDashboardSummaryComposesScopedCounts(t *testing.T) {
	svc, _, ratings := newDashboardFixture()
	id := lecturerIdentity("lect-1", "stream-1")

	summary, cached, err := svc.Summary(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, models.RoleLecturer, summary.Role)
	assert.Equal(t, 10, summary.TotalReports)
	assert.Equal(t, 3, summary.PendingReports)
	assert.Equal(t, 2, summary.ReviewedReports)
	assert.Equal(t, 5, summary.ApprovedReports)
	assert.Equal(t, 7, summary.TotalCourses)
	assert.Equal(t, 4, summary.TotalClasses)
	assert.Equal(t, 2, summary.OpenComplaints)
	require.Len(t, summary.RatingSummaries, 1)
	assert.Equal(t, 1, ratings.calls)
}

func TestDashboardSummarySkipsRatingsForStudents(t *testing.T) {
	svc, _, ratings := newDashboardFixture()
	stream := "stream-1"
	id := authz.Identity{UserID: "stud-1", Role: models.RoleStudent, StreamID: &stream}

	summary, _, err := svc.Summary(context.Background(), id)
	require.NoError(t, err)

	assert.Empty(t, summary.RatingSummaries)
	assert.Zero(t, ratings.calls)
}

func TestDashboardSummaryToleratesRatingFailure(t *testing.T) {
	svc, _, ratings := newDashboardFixture()
	ratings.err = errors.New("summary query timed out")
	id := lecturerIdentity("lect-1", "stream-1")

	summary, _, err := svc.Summary(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, summary.RatingSummaries)
	assert.Equal(t, 10, summary.TotalReports)
}

func TestDashboardSummaryPropagatesReportCountFailure(t *testing.T) {
	svc, reports, _ := newDashboardFixture()
	reports.err = errors.New("db down")
	id := lecturerIdentity("lect-1", "stream-1")

	_, _, err := svc.Summary(context.Background(), id)
	require.Error(t, err)
}

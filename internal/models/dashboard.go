package models

import "time"

// DashboardSummary aggregates role-scoped counts for the landing view.
// Every count is computed through the same scoped filters as the list
// endpoints, so a user never sees totals for rows they cannot list.
type DashboardSummary struct {
	Role            UserRole              `json:"role"`
	StreamID        *string               `json:"stream_id,omitempty"`
	TotalReports    int                   `json:"total_reports"`
	PendingReports  int                   `json:"pending_reports"`
	ReviewedReports int                   `json:"reviewed_reports"`
	ApprovedReports int                   `json:"approved_reports"`
	TotalCourses    int                   `json:"total_courses"`
	TotalClasses    int                   `json:"total_classes"`
	OpenComplaints  int                   `json:"open_complaints"`
	RatingSummaries []CourseRatingSummary `json:"rating_summaries,omitempty"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// SystemMetrics is a lightweight aggregate snapshot of runtime counters,
// served to operators without scraping Prometheus.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt     time.Time `json:"generated_at"`
}

package models

import "time"

// ReportStatus tracks the review lifecycle of a lecture report.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "PENDING"
	ReportStatusReviewed ReportStatus = "REVIEWED"
	ReportStatusApproved ReportStatus = "APPROVED"
)

// CanTransitionTo enforces the strictly forward lifecycle:
// PENDING -> REVIEWED -> APPROVED, with PENDING -> APPROVED also allowed.
// APPROVED is terminal and nothing returns to PENDING.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportStatusPending:
		return next == ReportStatusReviewed || next == ReportStatusApproved
	case ReportStatusReviewed:
		return next == ReportStatusApproved
	default:
		return false
	}
}

// Report is a lecture report authored by the lecturer assigned to a course.
// Its stream is derived transitively through the course.
type Report struct {
	ID               string       `db:"id" json:"id"`
	LecturerID       string       `db:"lecturer_id" json:"lecturer_id"`
	CourseID         string       `db:"course_id" json:"course_id"`
	ClassID          string       `db:"class_id" json:"class_id"`
	WeekOfReporting  int          `db:"week_of_reporting" json:"week_of_reporting"`
	DateOfLecture    time.Time    `db:"date_of_lecture" json:"date_of_lecture"`
	Topic            string       `db:"topic" json:"topic"`
	LearningOutcomes string       `db:"learning_outcomes" json:"learning_outcomes"`
	Recommendations  string       `db:"recommendations" json:"recommendations"`
	ActualStudents   int          `db:"actual_students" json:"actual_students"`
	Status           ReportStatus `db:"status" json:"status"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`

	// StreamID is populated by joined queries, not stored on the row.
	StreamID string `db:"stream_id" json:"stream_id,omitempty"`
}

// ReportFeedback is an append-only child of a report written by a
// principal lecturer during review. There is no update path.
type ReportFeedback struct {
	ID        string    `db:"id" json:"id"`
	ReportID  string    `db:"report_id" json:"report_id"`
	PRLID     string    `db:"prl_id" json:"prl_id"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReportFilter captures caller-supplied filtering for report listings.
// Authorization predicates are appended by the query scoper, never here.
type ReportFilter struct {
	CourseID *string
	ClassID  *string
	Status   *ReportStatus
	Week     *int
	Search   string
	Page     int
	PageSize int
}

// CreateReportRequest payload for submitting a lecture report.
type CreateReportRequest struct {
	CourseID         string    `json:"course_id" validate:"required"`
	ClassID          string    `json:"class_id" validate:"required"`
	WeekOfReporting  int       `json:"week_of_reporting" validate:"required,gte=1,lte=52"`
	DateOfLecture    time.Time `json:"date_of_lecture" validate:"required"`
	Topic            string    `json:"topic" validate:"required,max=256"`
	LearningOutcomes string    `json:"learning_outcomes" validate:"required"`
	Recommendations  string    `json:"recommendations"`
	ActualStudents   int       `json:"actual_students" validate:"gte=0"`
}

// UpdateReportRequest payload for editing a pending report.
type UpdateReportRequest struct {
	WeekOfReporting  int       `json:"week_of_reporting" validate:"required,gte=1,lte=52"`
	DateOfLecture    time.Time `json:"date_of_lecture" validate:"required"`
	Topic            string    `json:"topic" validate:"required,max=256"`
	LearningOutcomes string    `json:"learning_outcomes" validate:"required"`
	Recommendations  string    `json:"recommendations"`
	ActualStudents   int       `json:"actual_students" validate:"gte=0"`
}

// ReviewReportRequest submits review feedback and/or a status change.
type ReviewReportRequest struct {
	Comment string        `json:"comment" validate:"max=2000"`
	Status  *ReportStatus `json:"status,omitempty"`
}

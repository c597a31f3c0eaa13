package models

import "time"

// ComplaintStatus tracks complaint resolution.
type ComplaintStatus string

const (
	ComplaintStatusOpen     ComplaintStatus = "OPEN"
	ComplaintStatusResolved ComplaintStatus = "RESOLVED"
)

// Complaint is filed by a student or lecturer and visible to its author
// plus the stream's principal lecturer and program leaders.
type Complaint struct {
	ID         string          `db:"id" json:"id"`
	AuthorID   string          `db:"author_id" json:"author_id"`
	StreamID   string          `db:"stream_id" json:"stream_id"`
	CourseID   *string         `db:"course_id" json:"course_id,omitempty"`
	Subject    string          `db:"subject" json:"subject"`
	Body       string          `db:"body" json:"body"`
	Status     ComplaintStatus `db:"status" json:"status"`
	ResolvedBy *string         `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	Resolution string          `db:"resolution" json:"resolution"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ComplaintFilter captures filtering criteria for listing complaints.
type ComplaintFilter struct {
	Status   *ComplaintStatus
	CourseID *string
	Page     int
	PageSize int
}

// CreateComplaintRequest payload for filing a complaint.
type CreateComplaintRequest struct {
	CourseID *string `json:"course_id,omitempty"`
	Subject  string  `json:"subject" validate:"required,max=256"`
	Body     string  `json:"body" validate:"required"`
}

// ResolveComplaintRequest closes a complaint with a resolution note.
type ResolveComplaintRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

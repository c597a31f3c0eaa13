package authz

import (
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

// Resource is a normalized description of the entity being accessed.
// OwnerStreamID carries the transitive stream for entities that derive it
// through a foreign-key chain (report -> course -> stream).
type Resource struct {
	Type          ResourceType
	ID            string
	OwnerStreamID *string
	OwnerUserID   *string
	ReportStatus  *models.ReportStatus
}

// StreamResource describes a stream row.
func StreamResource(id string) Resource {
	return Resource{Type: ResourceStream, ID: id}
}

// CourseResource describes a course row with its owning stream and
// assigned lecturer.
func CourseResource(id, streamID string, lecturerID *string) Resource {
	return Resource{Type: ResourceCourse, ID: id, OwnerStreamID: &streamID, OwnerUserID: lecturerID}
}

// ClassResource describes a class row with its owning stream.
func ClassResource(id, streamID string) Resource {
	return Resource{Type: ResourceClass, ID: id, OwnerStreamID: &streamID}
}

// ReportResource describes a report row. streamID is the transitive stream
// of the report's course; lecturerID is the authoring lecturer.
func ReportResource(id, streamID, lecturerID string, status models.ReportStatus) Resource {
	return Resource{
		Type:          ResourceReport,
		ID:            id,
		OwnerStreamID: &streamID,
		OwnerUserID:   &lecturerID,
		ReportStatus:  &status,
	}
}

// UserResource describes a user row with its stream affiliation.
func UserResource(id string, streamID *string) Resource {
	return Resource{Type: ResourceUser, ID: id, OwnerStreamID: streamID, OwnerUserID: &id}
}

// RatingResource describes a rating row via its course's stream and the
// authoring student.
func RatingResource(id, streamID, studentID string) Resource {
	return Resource{Type: ResourceRating, ID: id, OwnerStreamID: &streamID, OwnerUserID: &studentID}
}

// ComplaintResource describes a complaint row.
func ComplaintResource(id, streamID, authorID string) Resource {
	return Resource{Type: ResourceComplaint, ID: id, OwnerStreamID: &streamID, OwnerUserID: &authorID}
}

// ListResource describes a collection access without a concrete row.
func ListResource(t ResourceType) Resource {
	return Resource{Type: t}
}

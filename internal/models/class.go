package models

import "time"

// Class is a stream-scoped teaching group linked many-to-many with courses.
type Class struct {
	ID            string    `db:"id" json:"id"`
	StreamID      string    `db:"stream_id" json:"stream_id"`
	Name          string    `db:"name" json:"name"`
	Venue         string    `db:"venue" json:"venue"`
	TotalStudents int       `db:"total_students" json:"total_students"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ClassCourse links a class to a course it attends.
type ClassCourse struct {
	ClassID   string    `db:"class_id" json:"class_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassFilter captures filtering criteria for listing classes.
type ClassFilter struct {
	StreamID *string
	CourseID *string
	Search   string
	Page     int
	PageSize int
}

// CreateClassRequest payload for registering a class.
type CreateClassRequest struct {
	StreamID      string `json:"stream_id" validate:"required"`
	Name          string `json:"name" validate:"required,max=64"`
	Venue         string `json:"venue" validate:"max=128"`
	TotalStudents int    `json:"total_students" validate:"gte=0"`
}

// UpdateClassRequest payload for mutating class attributes.
type UpdateClassRequest struct {
	Name          string `json:"name" validate:"required,max=64"`
	Venue         string `json:"venue" validate:"max=128"`
	TotalStudents int    `json:"total_students" validate:"gte=0"`
}

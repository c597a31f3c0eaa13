package models

import "time"

// Course belongs to exactly one stream and has at most one assigned
// lecturer. The stream drives read visibility, the lecturer drives report
// authorship.
type Course struct {
	ID         string    `db:"id" json:"id"`
	StreamID   string    `db:"stream_id" json:"stream_id"`
	LecturerID *string   `db:"lecturer_id" json:"lecturer_id,omitempty"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	StreamID   *string
	LecturerID *string
	Search     string
	Page       int
	PageSize   int
}

// CreateCourseRequest payload for registering a course.
type CreateCourseRequest struct {
	StreamID   string  `json:"stream_id" validate:"required"`
	Code       string  `json:"code" validate:"required,max=16"`
	Name       string  `json:"name" validate:"required,max=128"`
	LecturerID *string `json:"lecturer_id,omitempty"`
}

// UpdateCourseRequest payload for mutating course attributes.
type UpdateCourseRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=128"`
}

// AssignLecturerRequest sets or clears the assigned lecturer.
type AssignLecturerRequest struct {
	LecturerID *string `json:"lecturer_id"`
}

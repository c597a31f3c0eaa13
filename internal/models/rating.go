package models

import "time"

// Rating is a student's score for a course in their own stream.
// One row per student/course pair; resubmission overwrites.
type Rating struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Score     int       `db:"score" json:"score"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RatingFilter captures filtering criteria for listing ratings.
type RatingFilter struct {
	CourseID *string
	Page     int
	PageSize int
}

// SubmitRatingRequest payload for creating or replacing a rating.
type SubmitRatingRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Score    int    `json:"score" validate:"required,gte=1,lte=5"`
	Comment  string `json:"comment" validate:"max=1000"`
}

// CourseRatingSummary aggregates rating stats for dashboards.
type CourseRatingSummary struct {
	CourseID     string  `db:"course_id" json:"course_id"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	RatingCount  int     `db:"rating_count" json:"rating_count"`
}

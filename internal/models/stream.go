package models

import "time"

// Stream is the academic program grouping that scopes courses, classes and
// most users. Its identity is immutable once referenced.
type Stream struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateStreamRequest payload for registering a stream.
type CreateStreamRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=128"`
}

// UpdateStreamRequest payload for renaming a stream.
type UpdateStreamRequest struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=128"`
}

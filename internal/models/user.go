package models

import "time"

// UserRole represents the available roles for the reporting system.
type UserRole string

const (
	RoleStudent           UserRole = "STUDENT"
	RoleLecturer          UserRole = "LECTURER"
	RolePrincipalLecturer UserRole = "PRINCIPAL_LECTURER"
	RoleProgramLeader     UserRole = "PROGRAM_LEADER"
)

// Valid reports whether the role is one of the four known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RolePrincipalLecturer, RoleProgramLeader:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// StreamID is required for every role except PROGRAM_LEADER.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	StreamID     *string    `db:"stream_id" json:"stream_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	StreamID  *string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package authz

import (
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

// Action enumerates the operations the policy evaluator understands.
type Action string

const (
	ActionReadOne Action = "read_one"
	ActionList    Action = "list"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReview  Action = "review"
)

// ResourceType names the entity kinds subject to row-level policy.
type ResourceType string

const (
	ResourceStream    ResourceType = "stream"
	ResourceCourse    ResourceType = "course"
	ResourceClass     ResourceType = "class"
	ResourceReport    ResourceType = "report"
	ResourceUser      ResourceType = "user"
	ResourceRating    ResourceType = "rating"
	ResourceComplaint ResourceType = "complaint"
)

// Identity is the authenticated caller's policy-relevant context, derived
// once per request from verified JWT claims.
type Identity struct {
	UserID   string
	Role     models.UserRole
	StreamID *string
}

// FromClaims builds an Identity from verified token claims.
func FromClaims(claims *models.JWTClaims) Identity {
	if claims == nil {
		return Identity{}
	}
	return Identity{
		UserID:   claims.UserID,
		Role:     claims.Role,
		StreamID: claims.StreamID,
	}
}

// sameStream reports whether the identity's stream matches the given owner
// stream. A nil stream on either side is never a match: ambiguity resolves
// to deny, not allow.
func (id Identity) sameStream(ownerStreamID *string) bool {
	if id.StreamID == nil || ownerStreamID == nil {
		return false
	}
	return *id.StreamID == *ownerStreamID
}

package authz

import (
	"github.com/noah-isme/faculty-reporting-api/internal/models"
)

// DenyReason is the machine-readable cause attached to every deny.
type DenyReason string

const (
	ReasonNotOwner      DenyReason = "not_owner"
	ReasonWrongStream   DenyReason = "wrong_stream"
	ReasonRoleForbidden DenyReason = "role_forbidden"
	ReasonInvalidStatus DenyReason = "invalid_status_for_action"
)

// Decision is the outcome of a policy evaluation. It never carries an
// error: authorization failure is a value, not a fault.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a refusing decision with a reason.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// HidesExistence reports whether a denial must surface as not-found
// instead of forbidden. Revealing that a row exists in another stream is
// itself a leak, so cross-stream read denials hide the row.
func HidesExistence(action Action, reason DenyReason) bool {
	return action == ActionReadOne && reason == ReasonWrongStream
}

// Decide is the pure policy evaluator. It encodes the role/action/ownership
// decision table and resolves every ambiguous input to deny.
func Decide(id Identity, action Action, res Resource) Decision {
	switch id.Role {
	case models.RoleProgramLeader:
		return decideProgramLeader(action, res)
	case models.RolePrincipalLecturer:
		return decidePrincipalLecturer(id, action, res)
	case models.RoleLecturer:
		return decideLecturer(id, action, res)
	case models.RoleStudent:
		return decideStudent(id, action, res)
	default:
		return Deny(ReasonRoleForbidden)
	}
}

// decideProgramLeader: unconditional access, with the single exception that
// reports are authored by lecturers only.
func decideProgramLeader(action Action, res Resource) Decision {
	if action == ActionCreate && res.Type == ResourceReport {
		return Deny(ReasonRoleForbidden)
	}
	if action == ActionCreate && res.Type == ResourceRating {
		return Deny(ReasonRoleForbidden)
	}
	return Allow()
}

func decidePrincipalLecturer(id Identity, action Action, res Resource) Decision {
	switch action {
	case ActionList:
		return Allow() // scoper narrows to own stream, or to nothing on nil stream
	case ActionReadOne:
		if res.Type == ResourceUser && res.OwnerUserID != nil && *res.OwnerUserID == id.UserID {
			return Allow()
		}
		if id.sameStream(res.OwnerStreamID) {
			return Allow()
		}
		return Deny(ReasonWrongStream)
	case ActionCreate:
		// May author feedback (review) and complaints; structural entities
		// belong to program leaders.
		switch res.Type {
		case ResourceComplaint:
			return Allow()
		default:
			return Deny(ReasonRoleForbidden)
		}
	case ActionUpdate, ActionDelete:
		switch res.Type {
		case ResourceStream, ResourceUser:
			return Deny(ReasonRoleForbidden)
		}
		if id.sameStream(res.OwnerStreamID) {
			return Allow()
		}
		return Deny(ReasonWrongStream)
	case ActionReview:
		if id.sameStream(res.OwnerStreamID) {
			return Allow()
		}
		return Deny(ReasonWrongStream)
	default:
		return Deny(ReasonRoleForbidden)
	}
}

func decideLecturer(id Identity, action Action, res Resource) Decision {
	switch action {
	case ActionList:
		return Allow() // scoper narrows to own stream and, for reports, own rows
	case ActionReadOne:
		switch res.Type {
		case ResourceReport, ResourceComplaint:
			if !id.sameStream(res.OwnerStreamID) {
				return Deny(ReasonWrongStream)
			}
			if res.OwnerUserID == nil || *res.OwnerUserID != id.UserID {
				return Deny(ReasonNotOwner)
			}
			return Allow()
		case ResourceUser:
			if res.OwnerUserID != nil && *res.OwnerUserID == id.UserID {
				return Allow()
			}
			return Deny(ReasonRoleForbidden)
		default:
			if id.sameStream(res.OwnerStreamID) {
				return Allow()
			}
			return Deny(ReasonWrongStream)
		}
	case ActionCreate:
		switch res.Type {
		case ResourceReport:
			// Allowed only when self is the assigned lecturer of the
			// target course (the resource here describes that course).
			if !id.sameStream(res.OwnerStreamID) {
				return Deny(ReasonWrongStream)
			}
			if res.OwnerUserID == nil || *res.OwnerUserID != id.UserID {
				return Deny(ReasonNotOwner)
			}
			return Allow()
		case ResourceComplaint:
			return Allow()
		default:
			return Deny(ReasonRoleForbidden)
		}
	case ActionUpdate, ActionDelete:
		if res.Type != ResourceReport {
			return Deny(ReasonRoleForbidden)
		}
		if !id.sameStream(res.OwnerStreamID) {
			return Deny(ReasonWrongStream)
		}
		if res.OwnerUserID == nil || *res.OwnerUserID != id.UserID {
			return Deny(ReasonNotOwner)
		}
		if res.ReportStatus == nil || *res.ReportStatus != models.ReportStatusPending {
			return Deny(ReasonInvalidStatus)
		}
		return Allow()
	default:
		return Deny(ReasonRoleForbidden)
	}
}

func decideStudent(id Identity, action Action, res Resource) Decision {
	switch action {
	case ActionList:
		return Allow() // scoper narrows to own stream
	case ActionReadOne:
		switch res.Type {
		case ResourceUser:
			if res.OwnerUserID != nil && *res.OwnerUserID == id.UserID {
				return Allow()
			}
			return Deny(ReasonRoleForbidden)
		case ResourceComplaint:
			if !id.sameStream(res.OwnerStreamID) {
				return Deny(ReasonWrongStream)
			}
			if res.OwnerUserID == nil || *res.OwnerUserID != id.UserID {
				return Deny(ReasonNotOwner)
			}
			return Allow()
		}
		if id.sameStream(res.OwnerStreamID) {
			return Allow()
		}
		return Deny(ReasonWrongStream)
	case ActionCreate:
		switch res.Type {
		case ResourceRating, ResourceComplaint:
			if id.sameStream(res.OwnerStreamID) {
				return Allow()
			}
			return Deny(ReasonWrongStream)
		default:
			return Deny(ReasonRoleForbidden)
		}
	case ActionUpdate:
		// Students may replace their own rating, nothing else.
		if res.Type != ResourceRating {
			return Deny(ReasonRoleForbidden)
		}
		if !id.sameStream(res.OwnerStreamID) {
			return Deny(ReasonWrongStream)
		}
		if res.OwnerUserID == nil || *res.OwnerUserID != id.UserID {
			return Deny(ReasonNotOwner)
		}
		return Allow()
	default:
		return Deny(ReasonRoleForbidden)
	}
}

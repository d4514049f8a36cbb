package records

import "strings"

// Role is the requester role carried in the x-user-role header.
type Role string

const (
	RoleHospital Role = "hospital"
	RolePatient  Role = "patient"
)

// DenyReason explains why Authorize refused a request.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonUnauthenticated
	ReasonInvalidRole
	ReasonNotOwner
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonInvalidRole:
		return "invalid_role"
	case ReasonNotOwner:
		return "not_owner"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an access check. Role is only set when the
// request was allowed.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Role    Role
}

// Err returns the sentinel error for a denied decision and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonInvalidRole:
		return ErrInvalidRole
	case ReasonNotOwner:
		return ErrNotOwner
	default:
		return ErrUnauthenticated
	}
}

func deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Authorize decides whether the requester may read the record of
// targetPatientID. The checks run in a fixed order and the first failing
// one determines the reason: identity presence, role validity, ownership.
// Hospitals may read any record; patients only their own.
func Authorize(requesterID, requesterRole, targetPatientID string) Decision {
	if requesterID == "" || requesterRole == "" {
		return deny(ReasonUnauthenticated)
	}

	role := Role(strings.ToLower(requesterRole))
	if role != RoleHospital && role != RolePatient {
		return deny(ReasonInvalidRole)
	}

	if role == RolePatient && requesterID != targetPatientID {
		return deny(ReasonNotOwner)
	}

	return Decision{Allowed: true, Role: role}
}

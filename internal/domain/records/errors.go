package records

import "errors"

// Sentinel errors returned by Service.GetPatientRecord. Callers branch on them
// with errors.Is; ErrStoreUnavailable is returned wrapped around its cause.
var (
	ErrUnauthenticated  = errors.New("missing requester identity")
	ErrInvalidRole      = errors.New("invalid requester role")
	ErrNotOwner         = errors.New("patients may only read their own record")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrNotFound         = errors.New("health record not found")
)

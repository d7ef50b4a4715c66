package capsule

import "errors"

// Error kinds surfaced by the service. Callers distinguish them with
// errors.Is; details are carried in the wrapping message.
var (
	// ErrValidation marks bad input shape or values, e.g. an unlock time
	// that is not in the future. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrPermissionDenied marks an authenticated caller attempting a
	// mutation it is not authorized for. Never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound marks an absent resource. Private capsules viewed by
	// non-owners surface this too, deliberately indistinguishable from
	// nonexistence.
	ErrNotFound = errors.New("not found")

	// ErrLocked marks an attachment download refused because the parent
	// capsule's content is not yet viewable by the caller.
	ErrLocked = errors.New("capsule is locked")

	// ErrStorage marks an underlying store or object-store failure. The
	// service does not retry; retrying the whole operation is the caller's
	// call.
	ErrStorage = errors.New("storage failure")
)

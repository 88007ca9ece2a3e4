package portal

import "errors"

var (
	// ErrUnauthorized means the principal may not see the target. It is
	// surfaced as 403 without revealing whether the target exists.
	ErrUnauthorized = errors.New("unauthorized access attempt")

	// ErrInvalidGroupID means a family group reference was malformed,
	// non-positive, or dangling. Deliberately distinct from ErrNotFound so
	// adversarial input is never mistaken for a legitimate miss.
	ErrInvalidGroupID = errors.New("invalid family group id")

	// ErrInvalidPath means a stored document path failed the safety gate.
	ErrInvalidPath = errors.New("invalid policy document path")

	// ErrInvalidFileType means the resolved file is not an allowed document type.
	ErrInvalidFileType = errors.New("only PDF documents can be downloaded")

	// ErrSessionExpired means the session exceeded the inactivity timeout.
	ErrSessionExpired = errors.New("session expired due to inactivity")

	ErrNotFound = errors.New("not found")
)

// internal/platform/errors.go
package platform

import (
	"errors"
)

// Sentinel errors adapters return so callers can classify platform
// failures with errors.Is.
var (
	// ErrPermissionDenied means the platform rejected a create, delete,
	// send, or purge call for lack of rights.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound means the referenced channel, category, or destination
	// does not resolve.
	ErrNotFound = errors.New("not found")
)

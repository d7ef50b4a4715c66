package capsule

import (
	"context"
	"io"
)

// ObjectStore holds attachment bytes keyed by opaque storage path.
// All operations stream through io.Reader/io.Writer so large files never
// need to be held in memory.
type ObjectStore interface {
	// Put stores the bytes read from r under path. size is the number of
	// bytes that will be read from r; implementations reject mismatches.
	Put(ctx context.Context, path string, r io.Reader, size int64) error

	// Get retrieves the object at path and writes it to w.
	Get(ctx context.Context, path string, w io.Writer) error

	// Delete removes the object at path. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, path string) error

	// ValidateSetup verifies that the store is accessible and properly
	// configured.
	ValidateSetup(ctx context.Context) error
}

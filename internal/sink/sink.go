// Package sink stores files produced by the scraper.
package sink

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrInvalidName is returned for output names that are empty, absolute, or
// escape the sink's root.
var ErrInvalidName = errors.New("invalid output name")

// Sink writes a named file and returns where it ended up.
// A failed Put leaves no partial output behind.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// CheckName validates an output name relative to a sink root.
func CheckName(name string) error {
	if name == "" || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

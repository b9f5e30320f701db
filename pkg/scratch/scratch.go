package scratch

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("scratch file not found")

// Store holds uploaded images for the lifetime of a single request.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// uniqueName prefixes a sanitized base name with a ULID so concurrent
// uploads of the same file never collide.
func uniqueName(name string) string {
	base := unsafeChars.ReplaceAllString(filepath.Base(name), "_")
	if base == "" || base == "." || base == "_" {
		base = "upload"
	}
	return ulid.Make().String() + "-" + base
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
)

var unsafeScope = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileLocker uses advisory file locks, one file per scope, so CLI runs and a
// daemon on the same host exclude each other.
type FileLocker struct {
	dir string
}

// NewFileLocker stores lock files under dir, creating it if needed.
func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

func (l *FileLocker) path(scope string) string {
	name := unsafeScope.ReplaceAllString(scope, "_")
	if name == "" {
		name = "_default"
	}
	return filepath.Join(l.dir, name+".lock")
}

func (l *FileLocker) Acquire(ctx context.Context, scope string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fl := flock.New(l.path(scope))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("flock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &fileLease{fl: fl}, nil
}

type fileLease struct {
	fl *flock.Flock
}

func (l *fileLease) Release(ctx context.Context) error {
	return l.fl.Unlock()
}

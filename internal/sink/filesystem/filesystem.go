package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FranksOps/reliefscope/internal/sink"
)

// DefaultDir is where scraper output lands when no directory is configured.
const DefaultDir = "data"

// compile-time check
var _ sink.Sink = (*Store)(nil)

// Store writes files under a base directory. The directory is created on
// first write, so a missing data dir is not an error.
type Store struct {
	baseDir string
}

// New creates a filesystem sink rooted at baseDir.
func New(baseDir string) *Store {
	if baseDir == "" {
		baseDir = DefaultDir
	}
	return &Store{baseDir: baseDir}
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.baseDir }

// Put writes data to <baseDir>/<name> through a temp file in the same
// directory, then renames it over any existing file.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := sink.CheckName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.baseDir, name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("chmod %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return "", fmt.Errorf("rename %s: %w", target, err)
	}

	return target, nil
}

// Package jsonbackend appends run history to a newline-delimited JSON file.
package jsonbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/FranksOps/reliefscope/internal/storage"
)

var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

// New opens path for appending, creating it and its directory if needed.
func New(path string) (storage.Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	return &jsonBackend{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

// Save appends one JSON line. Encoder.Encode writes the line in a single call.
func (b *jsonBackend) Save(_ context.Context, run *storage.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.enc.Encode(run); err != nil {
		return fmt.Errorf("append run %s: %w", run.ID, err)
	}
	return nil
}

// Query reads the whole file. NDJSON has no index, so filtering and paging
// happen in memory.
func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var runs []*storage.Run
	dec := json.NewDecoder(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var r storage.Run
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		if filter.Match(&r) {
			runs = append(runs, &r)
		}
	}
	return filter.Page(runs), nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

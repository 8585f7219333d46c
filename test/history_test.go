//go:build integration

package test

import (
	"context"
	"sync"

	"github.com/FranksOps/reliefscope/internal/storage"
)

// memHistory is an in-memory storage.Backend for verifying recorded runs.
type memHistory struct {
	mu   sync.Mutex
	list []*storage.Run
}

func (m *memHistory) Save(_ context.Context, r *storage.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, r)
	return nil
}

func (m *memHistory) Query(context.Context, storage.Filter) ([]*storage.Run, error) {
	return m.runs(), nil
}

func (m *memHistory) Close() error { return nil }

func (m *memHistory) runs() []*storage.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*storage.Run(nil), m.list...)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/reliefscope/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	run := &storage.Run{
		ID:          "test1234",
		Kind:        storage.KindScrapeTXT,
		Target:      "https://reliefweb.int/reports",
		StatusCode:  200,
		Rows:        12,
		Output:      "data/artigos.txt",
		Duration:    50 * time.Millisecond,
		DetectedBot: true,
		CreatedAt:   now,
	}

	if err := b.Save(ctx, run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Kind: storage.KindScrapeTXT})
	if err != nil {
		t.Fatalf("Failed to query runs: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.ID != run.ID {
		t.Errorf("Expected ID %s, got %s", run.ID, got.ID)
	}
	if got.Target != run.Target {
		t.Errorf("Expected Target %s, got %s", run.Target, got.Target)
	}
	if got.StatusCode != run.StatusCode {
		t.Errorf("Expected StatusCode %d, got %d", run.StatusCode, got.StatusCode)
	}
	if got.Rows != run.Rows {
		t.Errorf("Expected Rows %d, got %d", run.Rows, got.Rows)
	}
	if got.Output != run.Output {
		t.Errorf("Expected Output %s, got %s", run.Output, got.Output)
	}
	if got.Duration.Milliseconds() != run.Duration.Milliseconds() {
		t.Errorf("Expected Duration %v, got %v", run.Duration, got.Duration)
	}
	if got.DetectedBot != run.DetectedBot {
		t.Errorf("Expected DetectedBot %v, got %v", run.DetectedBot, got.DetectedBot)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", run.CreatedAt, got.CreatedAt)
	}

	// Since filter
	future := now.Add(time.Hour)
	resultsSince, err := b.Query(ctx, storage.Filter{Since: &future})
	if err != nil {
		t.Fatalf("Failed to query runs with Since: %v", err)
	}
	if len(resultsSince) != 0 {
		t.Fatalf("Expected 0 results, got %d", len(resultsSince))
	}

	// Kind mismatch
	resultsFetch, err := b.Query(ctx, storage.Filter{Kind: storage.KindFetch})
	if err != nil {
		t.Fatalf("Failed to query fetch runs: %v", err)
	}
	if len(resultsFetch) != 0 {
		t.Fatalf("Expected 0 results, got %d", len(resultsFetch))
	}
}

func TestSQLiteBackend_OrderAndPaging(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		r := &storage.Run{ID: id, Kind: storage.KindFetch, StatusCode: 200, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 || all[0].ID != "new" || all[2].ID != "old" {
		t.Fatalf("Expected newest first, got %v", ids(all))
	}

	// offset without limit
	rest, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("query offset: %v", err)
	}
	if len(rest) != 2 || rest[0].ID != "mid" {
		t.Errorf("Expected [mid old], got %v", ids(rest))
	}

	page, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("query page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "mid" {
		t.Errorf("Expected [mid], got %v", ids(page))
	}
}

func ids(runs []*storage.Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}

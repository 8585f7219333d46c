package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/reliefscope/internal/fingerprint"
	"github.com/FranksOps/reliefscope/pkg/useragent"
)

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected pool User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UAPool:      useragent.New("TestBrowser/1.0"),
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	page, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !page.OK() {
		t.Errorf("expected status 200, got %d", page.StatusCode)
	}
	if string(page.Body) != "ok" {
		t.Errorf("expected body 'ok', got %s", string(page.Body))
	}
	if page.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", page.Header.Get("X-Test"))
	}
	if page.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if page.DetectedBot {
		t.Errorf("expected no bot detection")
	}
}

func TestFetcher_NonSuccessIsAPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	page, err := newTestFetcher(t).Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", page.StatusCode)
	}
	if !page.DetectedBot || page.DetectionSrc != "Cloudflare" {
		t.Errorf("expected Cloudflare detection, got %v %q", page.DetectedBot, page.DetectionSrc)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	if _, err := fetcher.Fetch(context.Background(), ts.URL); err == nil {
		t.Errorf("expected timeout error")
	}
}

func TestFetcher_UnknownProfile(t *testing.T) {
	if _, err := NewFetcher(FetchConfig{Fingerprint: "netscape"}); err == nil {
		t.Errorf("expected error for unknown fingerprint profile")
	}
}

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := New(Config{Timeout: 10 * time.Millisecond})

	_, err := client.Get(context.Background(), ts.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_DefaultTimeout(t *testing.T) {
	client := New(Config{})
	if client.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, client.Timeout)
	}
}

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			http.Redirect(w, r, "/2", http.StatusFound)
		case "/2":
			http.Redirect(w, r, "/3", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client := New(Config{MaxRedirects: 1})
	if _, err := client.Get(context.Background(), ts.URL+"/1"); err == nil {
		t.Fatal("expected redirect limit error")
	}

	noRedir := New(Config{MaxRedirects: -1})
	resp, err := noRedir.Get(context.Background(), ts.URL+"/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected 302 StatusFound, got %d", resp.StatusCode)
	}
}

func TestClient_UserAgent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer ts.Close()

	client := New(Config{UserAgent: "TestAgent/2.0"})
	resp, err := client.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	if string(buf[:n]) != "TestAgent/2.0" {
		t.Errorf("expected TestAgent/2.0, got %q", string(buf[:n]))
	}
}

func TestClient_Context(t *testing.T) {
	client := New(Config{})

	if _, err := client.Get(nil, "http://example.com"); err == nil {
		t.Error("expected nil context error")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Get(ctx, ts.URL); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestStatusError(t *testing.T) {
	err := fmt.Errorf("fetch reports: %w", &StatusError{URL: "https://api.example", StatusCode: 503})

	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("expected IsStatus 503 to match %v", err)
	}
	if IsStatus(err, http.StatusNotFound) {
		t.Errorf("did not expect IsStatus 404 to match")
	}

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 503 {
		t.Errorf("expected StatusError with 503, got %v", err)
	}
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandler(t *testing.T) {
	ts := httptest.NewServer(Handler())
	defer ts.Close()

	RecordAPIRequest(200, 300*time.Millisecond)
	RecordAPIRequest(0, time.Second)
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordScrape("reliefweb.int", 403, true, "Cloudflare", time.Second)
	RecordExport("download")

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`reliefscope_api_requests_total{status="200"}`,
		`reliefscope_api_requests_total{status="error"}`,
		`reliefscope_api_duration_seconds_bucket`,
		`reliefscope_cache_lookups_total{result="hit"}`,
		`reliefscope_cache_lookups_total{result="miss"}`,
		`reliefscope_scrape_requests_total{detected="true",detection_src="Cloudflare",domain="reliefweb.int",status="403"}`,
		`reliefscope_exports_total{kind="download"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected metrics output to contain %s", want)
		}
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportsJSON = `{"data": [
	{"href": "u1", "fields": {"title": "Flood update", "primary_country": {"name": "Chad"}, "date": {"created": "2024-05-01"}}},
	{"href": "u2", "fields": {"title": "Cholera response", "primary_country": {"name": "Yemen"}}}
]}`

// run executes the CLI with args against an isolated environment.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func isolate(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RELIEFSCOPE_API_ENDPOINT", apiURL)
	t.Setenv("RELIEFSCOPE_HISTORY_TYPE", "json")
	t.Setenv("RELIEFSCOPE_HISTORY_PATH", filepath.Join(dir, "runs.ndjson"))
	t.Setenv("RELIEFSCOPE_SCRAPER_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("RELIEFSCOPE_LOG_LEVEL", "error")
	return dir
}

func apiServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reportsJSON))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_TableOutput(t *testing.T) {
	isolate(t, apiServer(t, http.StatusOK).URL)

	stdout, _, err := run(t, "fetch")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Flood update")
	assert.Contains(t, stdout, "2024-05-01")
	assert.Contains(t, stdout, "Yemen")
}

func TestFetch_CSVWithSupplement(t *testing.T) {
	dir := isolate(t, apiServer(t, http.StatusOK).URL)

	sup := filepath.Join(dir, "extra.csv")
	require.NoError(t, os.WriteFile(sup, []byte("Titulo,Nota\nCholera response,urgent\n"), 0o644))
	out := filepath.Join(dir, "out.csv")

	_, stderr, err := run(t, "fetch", "--format", "csv", "--columns", "Title,Nota", "--supplement", sup, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Additional data loaded successfully")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Title,Nota\nFlood update,\nCholera response,urgent\n", string(data))
}

func TestFetch_UpstreamFailureIsReported(t *testing.T) {
	isolate(t, apiServer(t, http.StatusServiceUnavailable).URL)

	stdout, stderr, err := run(t, "fetch", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, stderr, "ReliefWeb API returned status 503")
	assert.Equal(t, "Title,Country,CreationDate\n", stdout)
}

func TestFetch_RejectsBadInput(t *testing.T) {
	isolate(t, apiServer(t, http.StatusOK).URL)

	_, _, err := run(t, "fetch", "--limit", "51")
	assert.ErrorContains(t, err, "--limit")

	_, _, err = run(t, "fetch", "--columns", "Budget")
	assert.ErrorContains(t, err, "unknown columns: Budget")

	_, _, err = run(t, "fetch", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestFetch_RejectedInputWritesNoFile(t *testing.T) {
	dir := isolate(t, apiServer(t, http.StatusOK).URL)

	for _, args := range [][]string{
		{"--limit", "0"},
		{"--format", "xml"},
	} {
		out := filepath.Join(dir, "out.csv")
		_, _, err := run(t, append([]string{"fetch", "--out", out}, args...)...)
		require.Error(t, err)
		assert.NoFileExists(t, out)
	}
}

func TestScrape_FingerprintHelpListsProfiles(t *testing.T) {
	isolate(t, apiServer(t, http.StatusOK).URL)

	stdout, _, err := run(t, "scrape", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "chrome, firefox, safari, go, random")
	assert.NotContains(t, stdout, "edge")
}

func TestScrapeAndHistory(t *testing.T) {
	dir := isolate(t, apiServer(t, http.StatusOK).URL)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h2>One</h2><h2>Two</h2><p>Para</p></body></html>`))
	}))
	t.Cleanup(page.Close)

	stdout, _, err := run(t, "scrape", "csv", "--url", page.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved 2 items")

	data, err := os.ReadFile(filepath.Join(dir, "data", "noticias.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Title\nOne\nTwo\n", string(data))

	stdout, _, err = run(t, "scrape", "txt", "--url", page.URL, "--out", "para.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved 1 items")

	_, _, err = run(t, "fetch")
	require.NoError(t, err)

	stdout, _, err = run(t, "history", "--format", "json")
	require.NoError(t, err)
	var summary struct {
		TotalRuns  int
		RunsByKind map[string]int
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 3, summary.TotalRuns)
	assert.Equal(t, 1, summary.RunsByKind["fetch"])
	assert.Equal(t, 1, summary.RunsByKind["scrape_csv"])

	stdout, _, err = run(t, "history", "--kind", "scrape_txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total Runs:    1")
}

func TestScrapeBatch_ReportsFailures(t *testing.T) {
	dir := isolate(t, apiServer(t, http.StatusOK).URL)

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h2>Heading</h2><p>Body</p>`))
	}))
	t.Cleanup(ok.Close)
	gone := apiServer(t, http.StatusNotFound)

	stdout, _, err := run(t, "scrape", "batch", "--url", ok.URL, "--url", gone.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, stdout, "noticias_1.csv")

	_, statErr := os.Stat(filepath.Join(dir, "data", "artigos_1.txt"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dir, "data", "noticias_2.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestHistory_Disabled(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	t.Setenv("RELIEFSCOPE_HISTORY_TYPE", "none")

	_, _, err := run(t, "history")
	assert.ErrorContains(t, err, "disabled")
}

func TestConfig_InvalidIsRejected(t *testing.T) {
	isolate(t, "http://127.0.0.1:1")
	t.Setenv("RELIEFSCOPE_SINK_TYPE", "ftp")

	_, _, err := run(t, "fetch")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "sink.type"))
}

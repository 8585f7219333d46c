package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/reliefscope/internal/storage"
)

// Summary aggregates a set of recorded runs.
type Summary struct {
	TotalRuns       int
	TotalFailures   int
	TotalDetections int
	TotalRows       int
	RunsByKind      map[string]int
	StatusCodes     map[int]int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	// Recent holds the runs the summary was built from, newest first.
	Recent []*storage.Run `json:"-"`
}

// GenerateSummary aggregates runs. The input is expected newest first, as
// returned by storage.Backend.Query.
func GenerateSummary(runs []*storage.Run) Summary {
	s := Summary{
		RunsByKind:  make(map[string]int),
		StatusCodes: make(map[int]int),
		Recent:      runs,
	}

	if len(runs) == 0 {
		return s
	}

	s.StartTime = runs[0].CreatedAt
	s.EndTime = runs[0].CreatedAt

	for _, r := range runs {
		s.TotalRuns++
		s.RunsByKind[r.Kind]++
		s.TotalRows += r.Rows
		if r.Failed() {
			s.TotalFailures++
		}
		if r.DetectedBot {
			s.TotalDetections++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `reliefscope run history
-----------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Span:          {{.Duration}}
Total Runs:    {{.TotalRuns}}
Total Rows:    {{.TotalRows}}
Failures:      {{.TotalFailures}}
Bot Blocks:    {{.TotalDetections}}

By Kind:
{{- range $kind, $count := .RunsByKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render text summary: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>reliefscope run history</title>
<style>
  body { font: 14px/1.4 system-ui, sans-serif; margin: 2rem auto; max-width: 72rem; }
  nav a { margin-right: 1rem; }
  dl.totals { display: grid; grid-template-columns: repeat(4, 1fr); gap: .5rem; }
  dl.totals div { background: #f2f5f7; padding: .75rem; border-radius: 4px; }
  dl.totals dt { color: #666; }
  dl.totals dd { margin: 0; font-size: 1.5rem; font-weight: 600; }
  dd.alert { color: #b00; }
  table { border-collapse: collapse; margin: .5rem 0 1.5rem; }
  th, td { border-bottom: 1px solid #ddd; padding: .3rem .6rem; text-align: left; }
  tr.failed td { color: #b00; }
</style>
</head>
<body>
  <nav><a href="/">Back to reports</a></nav>
  <h1>Run history</h1>
  {{- if .TotalRuns}}
  <p>{{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}}, spanning {{.Duration}}</p>
  {{- end}}
  <dl class="totals">
    <div><dt>Runs</dt><dd>{{.TotalRuns}}</dd></div>
    <div><dt>Failures</dt><dd{{if .TotalFailures}} class="alert"{{end}}>{{.TotalFailures}}</dd></div>
    <div><dt>Bot blocks</dt><dd{{if .TotalDetections}} class="alert"{{end}}>{{.TotalDetections}}</dd></div>
    <div><dt>Rows</dt><dd>{{.TotalRows}}</dd></div>
  </dl>

  <h2>By kind</h2>
  <table>
    {{- range $kind, $count := .RunsByKind}}
    <tr><th>{{$kind}}</th><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td>None</td></tr>
    {{- end}}
  </table>

  <h2>Status codes</h2>
  <table>
    {{- range $code, $count := .StatusCodes}}
    <tr><th>{{$code}}</th><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td>None</td></tr>
    {{- end}}
  </table>

  <h2>Recent runs</h2>
  <table>
    <thead><tr><th>When</th><th>Kind</th><th>Target</th><th>Query</th><th>Status</th><th>Rows</th><th>Output</th><th>Error</th></tr></thead>
    <tbody>
    {{- range .Recent}}
    <tr{{if .Failed}} class="failed"{{end}}><td>{{.CreatedAt.Format "2006-01-02 15:04:05"}}</td><td>{{.Kind}}</td><td>{{.Target}}</td><td>{{.Query}}</td><td>{{.StatusCode}}</td><td>{{.Rows}}</td><td>{{.Output}}</td><td>{{.Error}}</td></tr>
    {{- else}}
    <tr><td colspan="8">No runs recorded</td></tr>
    {{- end}}
    </tbody>
  </table>
</body>
</html>
`

var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Parse(htmlTmpl))

// WriteHTML writes an HTML report, escaping every recorded value.
func WriteHTML(w io.Writer, summary Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render html summary: %w", err)
	}
	return nil
}

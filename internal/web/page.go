package web

import (
	"bytes"
	"html/template"
	"net/http"
	"slices"

	"github.com/FranksOps/reliefscope/internal/pipeline"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/session"
)

type option struct {
	Name     string
	Selected bool
}

type pageData struct {
	Query          string
	Limit          int
	MinLimit       int
	MaxLimit       int
	Options        []option
	Columns        []string
	Rows           [][]string
	Notices        []pipeline.Notice
	Error          string
	SupplementName string
	CanDownload    bool
	HistoryEnabled bool
}

// render runs the pipeline for the session and writes the page. errMsg, if
// set, is shown above the results.
func (s *Server) render(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, errMsg string) {
	data := pageData{
		Query:          sess.Query,
		Limit:          sess.Limit,
		MinLimit:       session.MinLimit,
		MaxLimit:       session.MaxLimit,
		Error:          errMsg,
		SupplementName: sess.SupplementName,
		HistoryEnabled: s.history != nil,
	}

	res, err := s.pipeline.Run(r.Context(), sess.Request())
	if err != nil {
		s.logger.Warn("pipeline failed", "session", sess.ID, "err", err)
		if status == http.StatusOK {
			status = errorStatus(err)
		}
		if data.Error == "" {
			data.Error = err.Error()
		}
		data.Options = options(fallbackColumns(sess), sess.Columns)
	} else {
		data.Notices = res.Notices
		data.Options = options(res.Merged.Columns(), sess.Columns)
		if res.View != nil {
			data.Columns = res.View.Columns()
			data.Rows = res.View.Rows()
			data.CanDownload = true
		}
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render page", "err", err)
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func options(available, selected []string) []option {
	out := make([]option, 0, len(available))
	for _, name := range available {
		out = append(out, option{Name: name, Selected: slices.Contains(selected, name)})
	}
	return out
}

// fallbackColumns approximates the merged columns when the pipeline could
// not produce them.
func fallbackColumns(sess *session.Session) []string {
	cols := slices.Clone(reliefweb.Columns)
	if sess.Supplement == nil {
		return cols
	}
	for _, c := range sess.Supplement.Columns() {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

const pageTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ReliefWeb reports</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  form { margin: 10px 0; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
  th { background: #eaeaea; }
  .notice { padding: 8px 12px; margin: 6px 0; border-radius: 4px; background: #eef5ff; }
  .notice.warning { background: #fff6e0; }
  .notice.error, .error { background: #fde8e8; color: #b00; padding: 8px 12px; }
</style>
</head>
<body>
  <h1>ReliefWeb reports</h1>

  <form method="get" action="/">
    <input type="hidden" name="sel" value="1">
    <label>Query <input type="text" name="q" value="{{.Query}}"></label>
    <label>Reports <input type="number" name="limit" min="{{.MinLimit}}" max="{{.MaxLimit}}" value="{{.Limit}}"></label>
    <label>Columns
      <select name="col" multiple size="{{len .Options}}">
        {{- range .Options}}
        <option value="{{.Name}}"{{if .Selected}} selected{{end}}>{{.Name}}</option>
        {{- end}}
      </select>
    </label>
    <button type="submit">Update</button>
  </form>

  <form method="post" action="/upload" enctype="multipart/form-data">
    <label>Additional data (CSV with a Title column) <input type="file" name="file" accept=".csv,text/csv"></label>
    <button type="submit">Upload</button>
  </form>
  {{- if .SupplementName}}
  <form method="post" action="/upload/clear">
    Using <strong>{{.SupplementName}}</strong>
    <button type="submit">Remove</button>
  </form>
  {{- end}}

  {{- if .Error}}
  <div class="error">{{.Error}}</div>
  {{- end}}
  {{- range .Notices}}
  <div class="notice {{.Level}}">{{.Text}}</div>
  {{- end}}

  {{- if .Columns}}
  <table>
    <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
    {{- range .Rows}}
    <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
    {{- end}}
  </table>
  {{- end}}

  {{- if .CanDownload}}
  <p><a href="/download">Download CSV</a></p>
  {{- end}}

  <form method="post" action="/session/reset">
    <button type="submit">Start over</button>
  </form>
  {{- if .HistoryEnabled}}
  <p><a href="/history">Run history</a></p>
  {{- end}}
</body>
</html>
`

var page = template.Must(template.New("page").Parse(pageTmpl))

// Package web serves the interactive report browser.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/reliefscope/internal/metrics"
	"github.com/FranksOps/reliefscope/internal/pipeline"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/report"
	"github.com/FranksOps/reliefscope/internal/session"
	"github.com/FranksOps/reliefscope/internal/storage"
	"github.com/FranksOps/reliefscope/internal/table"
)

const (
	// CookieName holds the session ID.
	CookieName = "reliefscope_session"
	// DownloadName is the file name offered by GET /download.
	DownloadName = "dados_projetos.csv"
	// DefaultMaxUploadBytes caps uploaded CSV files.
	DefaultMaxUploadBytes = 10 << 20
	// historyLimit bounds how many runs GET /history summarizes.
	historyLimit = 200
)

// Config configures a Server.
type Config struct {
	Pipeline *pipeline.Pipeline
	Sessions *session.Store
	// History backs GET /history. Nil disables the page.
	History        storage.Backend
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server is the web UI's http.Handler.
type Server struct {
	pipeline  *pipeline.Pipeline
	sessions  *session.Store
	history   storage.Backend
	maxUpload int64
	logger    *slog.Logger
	mux       *http.ServeMux
}

var _ http.Handler = (*Server)(nil)

// New creates a Server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("web: pipeline is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("web: session store is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		pipeline:  cfg.Pipeline,
		sessions:  cfg.Sessions,
		history:   cfg.History,
		maxUpload: cfg.MaxUploadBytes,
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /upload/clear", s.handleClearUpload)
	s.mux.HandleFunc("GET /download", s.handleDownload)
	s.mux.HandleFunc("POST /session/reset", s.handleReset)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// session returns the caller's session, starting one and setting the cookie
// when the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	defer sess.Unlock()

	q := r.URL.Query()
	if q.Has("limit") {
		n, err := strconv.Atoi(q.Get("limit"))
		if err != nil {
			n = session.DefaultLimit
		}
		sess.SetLimit(n)
	}
	if v := q.Get("q"); v != "" {
		sess.Query = v
	}
	// the form marks itself so an empty multi-select clears the selection
	if q.Has("sel") {
		sess.Columns = q["col"]
	}

	s.render(w, r, sess, http.StatusOK, "")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	defer sess.Unlock()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		msg := "Could not read the uploaded form"
		if errors.As(err, &tooLarge) {
			msg = fmt.Sprintf("Uploaded file is larger than %d bytes", s.maxUpload)
		}
		s.logger.Warn("failed to parse upload", "err", err)
		s.render(w, r, sess, http.StatusBadRequest, msg)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.render(w, r, sess, http.StatusBadRequest, "A CSV file is required")
		return
	}
	defer file.Close()

	sup, err := table.ReadCSV(file)
	if err == nil {
		if _, ok := table.ResolveColumn(sup, reliefweb.ColTitle, table.TitleAliases...); !ok {
			err = &table.SchemaError{Column: reliefweb.ColTitle, Reason: "uploaded table has no join column"}
		}
	}
	if err != nil {
		s.logger.Warn("rejected upload", "file", header.Filename, "err", err)
		s.render(w, r, sess, http.StatusBadRequest, "Invalid CSV file: "+err.Error())
		return
	}

	sess.SetSupplement(header.Filename, sup)
	metrics.RecordExport("upload")
	s.logger.Info("supplement uploaded", "file", header.Filename, "rows", sup.Len())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClearUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	sess.SetSupplement("", nil)
	sess.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	defer sess.Unlock()

	res, err := s.pipeline.Run(r.Context(), sess.Request())
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	if res.NothingSelected {
		http.Error(w, pipeline.MsgNothingSelected, http.StatusConflict)
		return
	}

	data, err := res.View.CSV()
	if err != nil {
		s.logger.Error("failed to encode download", "err", err)
		http.Error(w, "could not encode CSV", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
	metrics.RecordExport("download")
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.sessions.Reset(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "run history is disabled", http.StatusNotFound)
		return
	}

	runs, err := s.history.Query(r.Context(), storage.Filter{
		Kind:  r.URL.Query().Get("kind"),
		Limit: historyLimit,
	})
	if err != nil {
		s.logger.Error("failed to query run history", "err", err)
		http.Error(w, "could not load run history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, report.GenerateSummary(runs)); err != nil {
		s.logger.Error("failed to render run history", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// errorStatus maps a pipeline error to an HTTP status.
func errorStatus(err error) int {
	var schemaErr *table.SchemaError
	var unknownErr *table.UnknownColumnError
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &unknownErr), errors.Is(err, reliefweb.ErrInvalidLimit):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

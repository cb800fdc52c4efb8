package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/term-linker/internal/config"
	"github.com/MimeLyc/term-linker/internal/jobs"
	"github.com/MimeLyc/term-linker/internal/library"
	"github.com/MimeLyc/term-linker/internal/persistence"
	"github.com/MimeLyc/term-linker/internal/service"
)

type documentScanner interface {
	Scan(ctx context.Context) (*library.Library, error)
	Invalidate()
}

type documentStates interface {
	ListDocumentStates(ctx context.Context) ([]persistence.DocumentState, error)
}

type runReports interface {
	LastReport() (service.RunReport, bool)
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	scanner  documentScanner
	queue    *jobs.Queue
	states   documentStates
	reports  runReports
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	uiEnabled   bool
	uiStaticDir string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

// WithDocumentStates adds the last link result of each document to the
// library listing.
func WithDocumentStates(states documentStates) Option {
	return func(s *Server) {
		s.states = states
	}
}

func WithRunReports(reports runReports) Option {
	return func(s *Server) {
		s.reports = reports
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(scanner documentScanner, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		scanner: scanner,
		queue:   queue,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/link", s.handleLink)
	s.mux.HandleFunc("/api/library/sources", s.handleListSources)
	s.mux.HandleFunc("/api/library/documents", s.handleListDocuments)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleJobDetail)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// unknown asset paths belong to the single page app
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}

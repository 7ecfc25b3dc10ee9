package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgallion1/epubhtml/internal/config"
	"github.com/dgallion1/epubhtml/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// Server serves the most recent conversion result.
type Server struct {
	router chi.Router
	log    *slog.Logger
	cfg    config.Config

	rebuildMu sync.Mutex // one rebuild at a time

	mu     sync.RWMutex
	result *pipeline.Result
}

// NewServer creates the HTTP server. res may be nil until the first rebuild.
func NewServer(res *pipeline.Result, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		log:    log,
		cfg:    cfg,
		result: res,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleDocument)
	r.Get("/structure.json", s.handleIndex)

	r.Get("/api/chapters", s.handleListChapters)
	r.Get("/api/chapters/{chapterID}", s.handleGetChapter)

	r.Group(func(r chi.Router) {
		if s.cfg.RebuildPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RebuildPerMinute, time.Minute))
		}
		if s.cfg.RebuildAPIKey != "" {
			r.Use(AuthMiddleware(s.cfg.RebuildAPIKey, s.log))
		}
		r.Post("/api/rebuild", s.handleRebuild)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) current() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *Server) setResult(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
}

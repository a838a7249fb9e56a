package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"dvf-analyzer/services"
	"dvf-analyzer/storage"
	"dvf-analyzer/utils"
)

// Defaults of the tool endpoints.
const (
	DefaultMaxResults      = services.DefaultMaxResults
	PriceSummaryMaxResults = 50
)

// Config holds the server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SessionTTL   time.Duration
	MaxResults   int
}

// Server exposes the analysis tools over HTTP.
type Server struct {
	cfg      Config
	source   storage.TransactionSource
	analyzer *services.Analyzer
	sessions *SessionStore
	validate *validator.Validate
	logger   *utils.Logger
}

// New creates a Server.
func New(cfg Config, source storage.TransactionSource, analyzer *services.Analyzer, logger *utils.Logger) *Server {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Server{
		cfg:      cfg,
		source:   source,
		analyzer: analyzer,
		sessions: NewSessionStore(cfg.SessionTTL),
		validate: v,
		logger:   logger,
	}
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore { return s.sessions }

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.handleHealth)

	r.Route("/tools", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/rental-estimate", s.handleRentalEstimate)
		r.Post("/price-summary", s.handlePriceSummary)
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Get("/examples", s.handleSessionExamples)
	})
	return r
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	prune := time.NewTicker(time.Minute)
	defer prune.Stop()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-prune.C:
			if n := s.sessions.Prune(); n > 0 {
				s.logger.Debug("[server] pruned %d expired sessions", n)
			}
		case <-ctx.Done():
			s.logger.Info("[server] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithField("request_id", middleware.GetReqID(r.Context())).
			Info("[server] %s %s %d %v", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

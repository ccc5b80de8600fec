// Package server exposes the badge rendering service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/knuxify/vrc-embed/internal/health"
	"github.com/knuxify/vrc-embed/internal/imagecache"
	"github.com/knuxify/vrc-embed/internal/observe"
	"github.com/knuxify/vrc-embed/internal/options"
	"github.com/knuxify/vrc-embed/internal/profile"
	"github.com/knuxify/vrc-embed/internal/render"
)

// UserSource resolves a subject identifier to its profile.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*profile.User, error)
}

// BadgeRenderer produces finished badge bytes for a user and variant.
type BadgeRenderer interface {
	Render(ctx context.Context, user *profile.User, v *render.Variant, filetype string, cfg options.Config) ([]byte, error)
}

// Config collects the server's collaborators.
type Config struct {
	Users    UserSource
	Renderer BadgeRenderer
	Health   *health.Aggregator
	Metrics  http.Handler
	Logger   observe.Logger
}

// Server routes badge requests.
type Server struct {
	users    UserSource
	renderer BadgeRenderer
	log      observe.Logger
	mux      *http.ServeMux
}

// New builds the router. Health and Metrics handlers are optional.
func New(cfg Config) (*Server, error) {
	if cfg.Users == nil {
		return nil, fmt.Errorf("server: nil user source")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("server: nil renderer")
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	s := &Server{
		users:    cfg.Users,
		renderer: cfg.Renderer,
		log:      cfg.Logger.WithComponent("server"),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /defaults/{variant}", s.handleDefaults)
	s.mux.HandleFunc("GET /{id}", s.handleBadgeDefault)
	s.mux.HandleFunc("GET /{id}/{file}", s.handleBadge)
	if cfg.Health != nil {
		s.mux.HandleFunc("GET /healthz", health.Handler(cfg.Health))
	}
	if cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", cfg.Metrics)
	}
	return s, nil
}

// ServeHTTP satisfies http.Handler with request logging applied.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(sw, r)
	s.log.Info(r.Context(), "request",
		observe.F("method", r.Method),
		observe.F("path", r.URL.Path),
		observe.F("status", sw.status),
		observe.F("duration_ms", time.Since(start).Milliseconds()),
	)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// handleBadgeDefault serves GET /{id}: the large variant as SVG.
func (s *Server) handleBadgeDefault(w http.ResponseWriter, r *http.Request) {
	v, _ := render.Lookup("large")
	s.serveBadge(w, r, r.PathValue("id"), v, "svg")
}

// handleBadge serves GET /{id}/{variant}.{filetype}.
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	name, ft, ok := strings.Cut(r.PathValue("file"), ".")
	if !ok {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("expected {variant}.{filetype}"))
		return
	}
	v, found := render.Lookup(name)
	if !found {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown variant %q", name))
		return
	}
	if !v.SupportsFiletype(ft) {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("variant %q cannot produce %q", name, ft))
		return
	}
	s.serveBadge(w, r, r.PathValue("id"), v, ft)
}

func (s *Server) serveBadge(w http.ResponseWriter, r *http.Request, id string, v *render.Variant, ft string) {
	ctx := r.Context()

	cfg, err := v.Schema.Parse(r.URL.Query())
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	data, err := s.renderer.Render(ctx, user, v, ft, cfg)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", render.ContentType(ft))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}

// handleDefaults serves GET /defaults/{variant}: the variant's default
// option set as JSON.
func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	v, found := render.Lookup(r.PathValue("variant"))
	if !found {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown variant %q", r.PathValue("variant")))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v.Schema.Defaults())
}

// statusFor maps pipeline errors onto response codes. Option validation is
// the caller's fault, a missing subject is 404, an upstream image failure is
// a bad gateway, anything else is internal.
func statusFor(err error) int {
	var valueErr *options.ValueError
	var fetchErr *imagecache.FetchError
	switch {
	case errors.As(err, &valueErr):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= 500 {
		s.log.Error(r.Context(), "request failed", observe.F("path", r.URL.Path), observe.Err(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

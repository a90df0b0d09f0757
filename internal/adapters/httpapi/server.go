// Package httpapi exposes the chat orchestrator over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/sensorwatch/internal/app/chat"
	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

// MaxBodyBytes caps the size of a /chat request body.
const MaxBodyBytes = 64 << 10

// ChatHandler is satisfied by *chat.Orchestrator.
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request) (chat.Response, error)
}

type Server struct {
	chat     ChatHandler
	gatherer prometheus.Gatherer
	obs      ports.Observability
	timeout  time.Duration
}

type Option func(*Server)

// WithGatherer serves gatherer on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(s *Server) {
		if obs != nil {
			s.obs = obs
		}
	}
}

// WithTimeout bounds each request; zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func New(h ChatHandler, opts ...Option) *Server {
	s := &Server{
		chat:     h,
		gatherer: prometheus.DefaultGatherer,
		obs:      ports.NopObservability{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router: POST /chat, GET /healthz, GET /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Post("/chat", s.handleChat)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

type chatRequest struct {
	Message *string `json:"message"`
	Locale  string  `json:"locale,omitempty"`
}

type chatReply struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleChat answers one message.
// POST /chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatReply{Error: "invalid request body"})
		return
	}
	if req.Message == nil {
		writeJSON(w, http.StatusBadRequest, chatReply{Error: "message is required"})
		return
	}

	resp, err := s.chat.Handle(r.Context(), chat.Request{Message: *req.Message, Locale: req.Locale})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, chatReply{Response: resp.Text})
	case errors.Is(err, domain.ErrMalformedMessage):
		writeJSON(w, http.StatusBadRequest, chatReply{Error: err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, chatReply{Response: resp.Text})
	default:
		s.obs.LogError("chat_failed", err, ports.Field{Key: "request_id", Value: middleware.GetReqID(r.Context())})
		writeJSON(w, http.StatusInternalServerError, chatReply{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

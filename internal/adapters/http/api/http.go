// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
)

// Publisher hands a parsed update to every connected display and reports how
// many were targeted.
type Publisher interface {
	Publish(ctx context.Context, e model.UpdateEvent) int
}

// Server wires HTTP routes for the ingestion and operational API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	updateHandler *UpdateHandler
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	updateKey string
	logger    logger.Logger
}

// WithUpdateKey sets the shared secret update senders must present.
func WithUpdateKey(key string) Option {
	return func(o *serverOptions) { o.updateKey = key }
}

// WithLogger sets the logger used by request handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(publisher Publisher, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		updateHandler: NewUpdateHandler(publisher, o.updateKey, o.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/update", MetricsMiddleware(s.updateHandler.HandleUpdate, "update"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

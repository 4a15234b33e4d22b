package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/okian/scorecast/internal/broadcast"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// Sessions is notified when a display connects and when it goes away.
type Sessions interface {
	OnConnect(ctx context.Context, sub broadcast.Subscriber)
	OnDisconnect(ctx context.Context, sub broadcast.Subscriber)
}

// Handler upgrades GET /ws requests into Display sessions.
type Handler struct {
	sessions Sessions
	upgrader websocket.Upgrader

	clock        clockwork.Clock
	writeTimeout time.Duration
	pingInterval time.Duration
	origins      []string

	logger logger.Logger
}

// NewHandler creates a display socket handler reporting to sessions.
func NewHandler(sessions Sessions, opts ...Option) *Handler {
	h := &Handler{
		sessions:     sessions,
		clock:        clockwork.NewRealClock(),
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("ws")
	}

	check := newCheckOrigin(h.origins)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if check(r) {
				return true
			}
			h.logger.Warn(r.Context(), "websocket origin rejected",
				logger.String("origin", r.Header.Get("Origin")),
				logger.String("remoteAddr", r.RemoteAddr),
			)
			return false
		},
	}
	return h
}

// Register attaches the display socket at /ws.
func (h *Handler) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/ws", h)
}

// ServeHTTP runs one display session for its whole lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	d := newDisplay(conn, h.clock, h.writeTimeout)
	log := h.logger.With(logger.String("session", d.ID()), logger.String("remoteAddr", r.RemoteAddr))

	metrics.WebSocketConnected()
	h.sessions.OnConnect(ctx, d)
	log.Info(ctx, "display connected")

	go d.pingLoop(h.pingInterval)
	d.readLoop(2 * h.pingInterval)

	d.close()
	h.sessions.OnDisconnect(ctx, d)
	metrics.WebSocketDisconnected()
	log.Info(ctx, "display disconnected")
}

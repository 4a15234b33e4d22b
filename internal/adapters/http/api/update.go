package api

import (
	"crypto/subtle"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	"github.com/okian/scorecast/pkg/metrics"
)

// updateKeyParam carries the shared secret in an update request.
const updateKeyParam = "updateKey"

// UpdateHandler is the ingestion gate for scoring engine updates.
type UpdateHandler struct {
	publisher Publisher
	key       []byte
	logger    logger.Logger
}

// NewUpdateHandler creates an update handler that accepts requests carrying
// key. An empty key denies every request.
func NewUpdateHandler(publisher Publisher, key string, l logger.Logger) *UpdateHandler {
	return &UpdateHandler{publisher: publisher, key: []byte(key), logger: l}
}

// HandleUpdate handles POST /update requests.
func (h *UpdateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update"
	ctx := r.Context()

	if r.Method != http.MethodPost {
		metrics.RecordUpdateReceived("method_not_allowed")
		h.logger.Debug(ctx, "update rejected",
			logger.String("method", r.Method),
			logger.Error(NewKind(op, ErrMethodNotAllowed)),
		)
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// A malformed body still leaves the query parameters in r.Form.
	if err := r.ParseForm(); err != nil {
		h.logger.Debug(ctx, "update form partially parsed", logger.Error(WrapKind(op, ErrBadRequest, err)))
	}

	host := remoteHost(r)
	if !h.authorized(r.Form) {
		metrics.RecordUpdateReceived("denied")
		h.logger.Warn(ctx, "denying update",
			logger.String("remoteHost", host),
			logger.Error(NewKind(op, ErrUnauthorized)),
		)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "Denying update from "+host)
		return
	}

	e := model.FromValues(r.Form)
	n := h.publisher.Publish(ctx, e)
	metrics.RecordUpdateReceived("accepted")
	h.logger.Debug(ctx, "update published",
		logger.String("remoteHost", host),
		logger.String("fullName", e.FullName),
		logger.Int("displays", n),
	)
	w.WriteHeader(http.StatusOK)
}

func (h *UpdateHandler) authorized(form url.Values) bool {
	if len(h.key) == 0 {
		return false
	}
	got, ok := form[updateKeyParam]
	if !ok || len(got) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got[0]), h.key) == 1
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

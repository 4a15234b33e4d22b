package websocket

import (
	"net/http"
	"strings"
)

// newCheckOrigin returns a CheckOrigin function allowing requests without an
// Origin header (non-browser clients) and those whose origin is listed. An
// empty list allows every origin.
func newCheckOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[normalizeOrigin(o)] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[normalizeOrigin(origin)]
		return ok
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(o), "/")
}

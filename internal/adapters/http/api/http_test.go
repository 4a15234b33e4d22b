package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/okian/scorecast/internal/adapters/http/api"
	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const secret = "s3cret"

// mockPublisher records every published update.
type mockPublisher struct {
	mu        sync.Mutex
	published []model.UpdateEvent
	targets   int
}

func (m *mockPublisher) Publish(_ context.Context, e model.UpdateEvent) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, e)
	return m.targets
}

func (m *mockPublisher) events() []model.UpdateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.UpdateEvent(nil), m.published...)
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.0.0.7:51234"
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestUpdateHandler_HandleUpdate(t *testing.T) {
	Convey("Given an update handler with a configured secret", t, func() {
		pub := &mockPublisher{targets: 3}
		handler := api.NewUpdateHandler(pub, secret, logger.Get())

		Convey("When a valid update is posted", func() {
			w := postForm(handler.HandleUpdate, url.Values{
				"updateKey":    {secret},
				"fullName":     {"Anna Schmidt"},
				"startNumber":  {"7"},
				"weight":       {"85"},
				"timeAllowed":  {"abc"},
				"hidden":       {"true"},
				"categoryName": {"W64"},
			})

			Convey("Then it should publish one event and answer 200 with an empty body", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.Len(), ShouldEqual, 0)

				events := pub.events()
				So(events, ShouldHaveLength, 1)
				So(events[0].FullName, ShouldEqual, "Anna Schmidt")
				So(events[0].StartNumber, ShouldEqual, 7)
				So(events[0].Weight, ShouldResemble, model.IntOf(85))
				So(events[0].TimeAllowed.Valid, ShouldBeFalse)
				So(events[0].Hidden, ShouldBeTrue)
				So(events[0].CategoryName, ShouldEqual, "W64")
			})
		})

		Convey("When only the key is sent", func() {
			w := postForm(handler.HandleUpdate, url.Values{"updateKey": {secret}})

			Convey("Then it should publish an event with all defaults", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				events := pub.events()
				So(events, ShouldHaveLength, 1)
				So(events[0].FullName, ShouldBeEmpty)
				So(events[0].StartNumber, ShouldEqual, 0)
				So(events[0].Weight.Valid, ShouldBeFalse)
				So(events[0].Hidden, ShouldBeFalse)
			})
		})

		Convey("When the parameters arrive in the query string", func() {
			req := httptest.NewRequest(http.MethodPost, "/update?updateKey="+secret+"&fullName=Berta", http.NoBody)
			w := httptest.NewRecorder()
			handler.HandleUpdate(w, req)

			Convey("Then they should be accepted like form fields", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(pub.events()[0].FullName, ShouldEqual, "Berta")
			})
		})

		Convey("When the key is wrong", func() {
			w := postForm(handler.HandleUpdate, url.Values{
				"updateKey": {"guess"},
				"fullName":  {"Mallory"},
			})

			Convey("Then it should be denied and nothing published", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(w.Body.String(), ShouldEqual, "Denying update from 10.0.0.7")
				So(pub.events(), ShouldBeEmpty)
			})
		})

		Convey("When the key is missing", func() {
			w := postForm(handler.HandleUpdate, url.Values{"fullName": {"Mallory"}})

			Convey("Then it should be denied", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(pub.events(), ShouldBeEmpty)
			})
		})

		Convey("When the key differs only by case or padding", func() {
			for _, k := range []string{"S3CRET", secret + " ", " " + secret} {
				w := postForm(handler.HandleUpdate, url.Values{"updateKey": {k}})
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			}

			Convey("Then nothing should be published", func() {
				So(pub.events(), ShouldBeEmpty)
			})
		})

		Convey("When a non-POST method is used", func() {
			for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
				req := httptest.NewRequest(method, "/update?updateKey="+secret, http.NoBody)
				w := httptest.NewRecorder()
				handler.HandleUpdate(w, req)
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			}

			Convey("Then nothing should be published", func() {
				So(pub.events(), ShouldBeEmpty)
			})
		})

		Convey("When no displays are connected", func() {
			pub.targets = 0
			w := postForm(handler.HandleUpdate, url.Values{"updateKey": {secret}})

			Convey("Then the update should still be accepted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given an update handler without a configured secret", t, func() {
		pub := &mockPublisher{}
		handler := api.NewUpdateHandler(pub, "", logger.Get())

		Convey("When an update with an empty key is posted", func() {
			w := postForm(handler.HandleUpdate, url.Values{"updateKey": {""}})

			Convey("Then it should be denied", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(pub.events(), ShouldBeEmpty)
			})
		})
	})
}

func TestServer_Register(t *testing.T) {
	Convey("Given a server registered on a mux", t, func() {
		pub := &mockPublisher{}
		stats := &mockStatsProvider{stats: map[string]interface{}{"subscribers": 2}}
		server := api.NewServer(pub, stats, api.WithUpdateKey(secret))
		mux := http.NewServeMux()
		server.Register(context.Background(), mux)

		Convey("Then /update should reach the ingestion gate", func() {
			req := httptest.NewRequest(http.MethodPost, "/update", strings.NewReader("updateKey="+secret+"&fullName=Cleo"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(pub.events(), ShouldHaveLength, 1)
		})

		Convey("Then /healthz should report ok", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]string
			So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("Then /metrics should expose request counters", func() {
			warm := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			mux.ServeHTTP(httptest.NewRecorder(), warm)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Then /stats should return the provider's stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]interface{}
			So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
			So(body["subscribers"], ShouldEqual, float64(2))
		})

		Convey("Then a nil mux should panic", func() {
			So(func() { server.Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		handler := api.NewHealthHandler()

		Convey("When handling a write request", func() {
			req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
			w := httptest.NewRecorder()
			handler.HandleHealth(w, req)

			Convey("Then it should be rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestStatsHandler_HandleStats(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		handler := api.NewStatsHandler(&mockStatsProvider{stats: map[string]interface{}{}})

		Convey("When handling a non-GET request", func() {
			req := httptest.NewRequest(http.MethodPost, "/stats", nil)
			w := httptest.NewRecorder()
			handler.HandleStats(w, req)

			Convey("Then it should return not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given a wrapped API error", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.update", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause should match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.update: ")
		})

		Convey("Then a nil cause should yield the bare kind", func() {
			err := api.WrapKind("api.update", api.ErrUnauthorized, nil)
			So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.update: unauthorized")
		})
	})
}

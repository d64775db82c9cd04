package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/hotel-bookings/services/gateway/internal/proxy"
)

type seenRequest struct {
	method, path, query, auth, body, forwarded string
}

func newUpstream(t *testing.T, status int, seen *seenRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if seen != nil {
			*seen = seenRequest{
				method:    r.Method,
				path:      r.URL.Path,
				query:     r.URL.RawQuery,
				auth:      r.Header.Get("Authorization"),
				body:      string(b),
				forwarded: r.Header.Get("X-Gateway-Forwarded"),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(status)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBookingsForwardsRequest(t *testing.T) {
	var seen seenRequest
	up := newUpstream(t, http.StatusCreated, &seen)
	h := New(proxy.NewServiceProxy("bookings", up.URL, time.Second), proxy.NewServiceProxy("notify", up.URL, time.Second))

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings?dry=1", strings.NewReader(`{"room_id":1}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.Bookings("/v1")(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Upstream") != "yes" || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("upstream response not copied: %v %s", rec.Header(), rec.Body.String())
	}
	want := seenRequest{
		method:    http.MethodPost,
		path:      "/bookings",
		query:     "dry=1",
		auth:      "Bearer tok",
		body:      `{"room_id":1}`,
		forwarded: "true",
	}
	if seen != want {
		t.Errorf("upstream saw %+v, want %+v", seen, want)
	}
}

func TestBookingsUpstreamDown(t *testing.T) {
	up := newUpstream(t, http.StatusOK, nil)
	url := up.URL
	up.Close()

	h := New(proxy.NewServiceProxy("bookings", url, time.Second), nil)
	rec := httptest.NewRecorder()
	h.Bookings("/v1")(rec, httptest.NewRequest(http.MethodGet, "/v1/rooms/search", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	healthy := newUpstream(t, http.StatusOK, nil)
	sick := newUpstream(t, http.StatusInternalServerError, nil)

	tests := []struct {
		name   string
		notify string
		code   int
		state  string
	}{
		{"all healthy", healthy.URL, http.StatusOK, "ok"},
		{"notify degraded", sick.URL, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(
				proxy.NewServiceProxy("bookings", healthy.URL, time.Second),
				proxy.NewServiceProxy("notify", tt.notify, time.Second),
			)
			rec := httptest.NewRecorder()
			h.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			var body struct {
				Services map[string]serviceStatus `json:"services"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Services["bookings"].Status != "ok" || body.Services["notify"].Status != tt.state {
				t.Errorf("services = %+v", body.Services)
			}
		})
	}
}

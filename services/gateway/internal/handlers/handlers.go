package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/pkg/response"
	"github.com/diagnosis/hotel-bookings/services/gateway/internal/proxy"
)

type Handlers struct {
	bookings *proxy.ServiceProxy
	notify   *proxy.ServiceProxy
}

func New(bookings, notify *proxy.ServiceProxy) *Handlers {
	return &Handlers{bookings: bookings, notify: notify}
}

// Bookings forwards everything under prefix to the bookings service with the
// prefix removed.
func (h *Handlers) Bookings(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, h.bookings, strings.TrimPrefix(r.URL.Path, prefix))
	}
}

func (h *Handlers) forward(w http.ResponseWriter, r *http.Request, upstream *proxy.ServiceProxy, path string) {
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	header := r.Header.Clone()
	header.Set("X-Forwarded-For", clientChain(r))

	resp, err := upstream.Do(r.Context(), r.Method, path, r.Body, header)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "service", upstream.Name(), "error", err, "path", path)
		response.BadGateway(w, "Service unavailable")
		return
	}
	defer resp.Body.Close()

	if err := proxy.CopyResponse(w, resp); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}

func clientChain(r *http.Request) string {
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i > 0 {
		ip = ip[:i]
	}
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		return prior + ", " + ip
	}
	return ip
}

type serviceStatus struct {
	Status string `json:"status"`
	Code   int    `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Status probes each upstream's /healthz concurrently.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	upstreams := []*proxy.ServiceProxy{h.bookings, h.notify}
	results := make(map[string]serviceStatus, len(upstreams))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, up := range upstreams {
		wg.Add(1)
		go func(up *proxy.ServiceProxy) {
			defer wg.Done()
			st := probe(ctx, up)
			mu.Lock()
			results[up.Name()] = st
			mu.Unlock()
		}(up)
	}
	wg.Wait()

	code := http.StatusOK
	for _, st := range results {
		if st.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
	}
	response.JSON(w, code, map[string]any{"services": results})
}

func probe(ctx context.Context, up *proxy.ServiceProxy) serviceStatus {
	resp, err := up.Get(ctx, "/healthz")
	if err != nil {
		return serviceStatus{Status: "down", Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return serviceStatus{Status: "degraded", Code: resp.StatusCode}
	}
	return serviceStatus{Status: "ok", Code: resp.StatusCode}
}

package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/logger"
)

// ServiceProxy forwards requests to one upstream service.
type ServiceProxy struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewServiceProxy(name, baseURL string, timeout time.Duration) *ServiceProxy {
	return &ServiceProxy{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *ServiceProxy) Name() string { return p.name }

// Do sends method+path (path may carry a query string) upstream with the
// given headers. The caller closes the response body.
func (p *ServiceProxy) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if n, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64); err == nil && body != nil {
		req.ContentLength = n
	}
	for key, values := range header {
		if hopByHop(key) {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("X-Gateway-Forwarded", "true")

	logger.DebugContext(ctx, "Proxying request", "service", p.name, "method", method, "url", url)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	return resp, nil
}

func (p *ServiceProxy) Get(ctx context.Context, path string) (*http.Response, error) {
	return p.Do(ctx, http.MethodGet, path, nil, nil)
}

func hopByHop(key string) bool {
	switch strings.ToLower(key) {
	case "host", "connection", "upgrade", "proxy-connection", "proxy-authenticate",
		"proxy-authorization", "te", "trailer", "trailers", "transfer-encoding", "keep-alive":
		return true
	}
	return false
}

// CopyResponse writes an upstream response back to the client.
func CopyResponse(w http.ResponseWriter, resp *http.Response) error {
	for key, values := range resp.Header {
		if hopByHop(key) {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, err := io.Copy(w, resp.Body)
	return err
}

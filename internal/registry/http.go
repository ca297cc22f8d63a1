package registry

import (
	"context"
	"net/http"
	"time"

	"github.com/hpungsan/routines/internal/protocol"
)

// HTTPTransport sends protocol envelopes to a remote message endpoint
// (the /api/messages route of "routines serve").
type HTTPTransport struct {
	url        string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport posting to url.
func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	return protocol.Post(ctx, t.httpClient, t.url, req, nil)
}

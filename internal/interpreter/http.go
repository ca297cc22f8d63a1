package interpreter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hpungsan/routines/internal/protocol"
	"github.com/hpungsan/routines/internal/routine"
)

// HTTPClient asks a remote interpreter to parse utterances over the message protocol.
type HTTPClient struct {
	url        string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewHTTPClient creates a client posting ParseUtterance messages to url.
// ratePerMinute <= 0 disables rate limiting.
func NewHTTPClient(url string, timeout time.Duration, ratePerMinute int) *HTTPClient {
	limit := rate.Inf
	burst := 1
	if ratePerMinute > 0 {
		limit = rate.Limit(float64(ratePerMinute) / 60)
		burst = max(1, ratePerMinute/10)
	}
	return &HTTPClient{
		url:        url,
		timeout:    timeout,
		limiter:    rate.NewLimiter(limit, burst),
		httpClient: &http.Client{},
	}
}

// Parse implements Parser.
func (c *HTTPClient) Parse(ctx context.Context, req protocol.ParseUtterance) (*routine.IntentContext, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("interpreter rate limit: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())

	resp, err := protocol.Post(ctx, c.httpClient, c.url, req, header)
	if err != nil {
		return nil, err
	}
	parsed, ok := resp.(protocol.Parsed)
	if !ok {
		return nil, fmt.Errorf("interpreter answered %s to %s", resp.ResponseType(), req.RequestType())
	}
	return parsed.Context, nil
}

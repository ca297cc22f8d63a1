package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Post sends req as an envelope to a message endpoint and decodes the reply.
// Non-200 replies are decoded as error envelopes.
func Post(ctx context.Context, client *http.Client, url string, req Request, header http.Header) (Response, error) {
	body, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build message request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, DecodeError(resp.StatusCode, raw)
	}
	return DecodeResponse(raw)
}

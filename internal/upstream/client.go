// Package upstream is the HTTP client for the inference endpoint. The
// endpoint is an external collaborator: it accepts a chat request and
// answers with a long-lived text/event-stream response.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

// errorBodyLimit caps how much of a failed response body is read for the
// error message.
const errorBodyLimit = 4 * 1024

// Client talks to the inference endpoint. Construct it once in the
// composition root and inject it; there is no package-level instance.
type Client struct {
	baseURL    string
	chatPath   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the given base URL. The http.Client has no
// overall timeout: stream duration is governed by the request context and
// the transport's own policies.
func NewClient(baseURL, chatPath string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		chatPath: chatPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: logger,
	}
}

// OpenStream issues the chat request and returns the response body for
// frame decoding. The caller must close the body; cancelling ctx aborts the
// stream.
func (c *Client) OpenStream(ctx context.Context, req domain.ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		c.logger.Warn("inference endpoint rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("model", req.Model),
		)
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	return resp.Body, nil
}

package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGenerator forwards reply requests to a remote chat endpoint.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPGenerator{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type httpReplyPayload struct {
	Reply string `json:"reply"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("reply http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed httpReplyPayload
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	text := strings.TrimSpace(parsed.Reply)
	if text == "" {
		return "", fmt.Errorf("reply response missing reply text")
	}
	return text, nil
}

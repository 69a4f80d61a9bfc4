package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type httpClient struct {
	inner *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpClient{inner: &http.Client{Timeout: timeout}}
}

func (c *httpClient) postJSON(ctx context.Context, endpoint string, headers map[string]string, body any) error {
	return c.sendJSON(ctx, http.MethodPost, endpoint, headers, body)
}

func (c *httpClient) patchJSON(ctx context.Context, endpoint string, headers map[string]string, body any) error {
	return c.sendJSON(ctx, http.MethodPatch, endpoint, headers, body)
}

func (c *httpClient) sendJSON(ctx context.Context, method, endpoint string, headers map[string]string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("notify failed with status %d", resp.StatusCode)
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	domainErrors "github.com/omnisouq/gateway/internal/domain/errors"
)

// restClient is the shared HTTP plumbing for provider adapters. It owns the
// per-provider timeout and maps transport failures onto the error taxonomy:
// deadline/network errors become TimeoutError (outcome unknown), 4xx/5xx
// bodies become ProviderError (terminal rejection).
type restClient struct {
	provider string
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	auth     func(*http.Request)
}

func newRESTClient(provider, baseURL string, timeout time.Duration, auth func(*http.Request)) *restClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restClient{
		provider: provider,
		baseURL:  baseURL,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		auth:     auth,
	}
}

// doJSON sends a JSON request and decodes the JSON response into out.
func (c *restClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.provider, err)
		}
		reader = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.provider, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return domainErrors.NewTimeoutError(c.provider, c.timeout.Milliseconds())
		}
		return fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.provider, err)
	}

	if resp.StatusCode >= 400 {
		return rejectionError(c.provider, resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", c.provider, err)
		}
	}
	return nil
}

// doForm sends a form-encoded request, for providers with non-JSON inbound
// APIs, and decodes the JSON response into out.
func (c *restClient) doForm(ctx context.Context, path string, form url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.provider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return domainErrors.NewTimeoutError(c.provider, c.timeout.Milliseconds())
		}
		return fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.provider, err)
	}
	if resp.StatusCode >= 400 {
		return rejectionError(c.provider, resp.StatusCode, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", c.provider, err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func rejectionError(provider string, status int, body []byte) error {
	details := map[string]any{"http_status": status}
	message := fmt.Sprintf("HTTP %d", status)

	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		for _, key := range []string{"error", "message", "description"} {
			switch v := parsed[key].(type) {
			case string:
				if v != "" {
					message = v
				}
			case map[string]any:
				if desc, ok := v["description"].(string); ok && desc != "" {
					message = desc
				}
			}
		}
		details["body"] = parsed
	}

	return domainErrors.NewProviderError(provider, message, details)
}

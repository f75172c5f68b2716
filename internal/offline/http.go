package offline

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

// ReplayPath is the server endpoint that applies replayed actions.
const ReplayPath = "/api/sync/actions"

// HTTPExecutor replays actions to the server with a bearer token.
type HTTPExecutor struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPExecutor(baseURL, token string, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Execute POSTs the action. 2xx, and 409 for an action the server already
// applied, count as success. A 401 returns ErrUnauthorized. Other 4xx answers
// except 408 and 429 are permanent.
func (e *HTTPExecutor) Execute(ctx context.Context, a Action) error {
	body, err := json.Marshal(a)
	if err != nil {
		return Permanent(fmt.Errorf("encode action: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+ReplayPath, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if e.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.Token)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return fmt.Errorf("replay action: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, readError(resp.Body))
	}
	err = fmt.Errorf("server returned %d: %s", resp.StatusCode, readError(resp.Body))
	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return err
	}
	if resp.StatusCode >= 400 && resp.StatusCode <= 499 {
		return Permanent(err)
	}
	return err
}

// readError pulls the "error" field from a JSON error body, or returns the
// raw text.
func readError(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 1024))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// HTTPProbe treats the server as online when GET URL answers 2xx.
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProbe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

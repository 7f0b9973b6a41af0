// Package espeak provides a g2p.Transliterator backed by an espeak-ng
// phonemizer server (which exposes a REST API at POST /phonemize).
//
// Usage:
//
//	t, err := espeak.New("http://localhost:5500",
//	    espeak.WithTimeout(5*time.Second),
//	)
//	ipa, err := t.ToIPA(ctx, "pince", "fr")
package espeak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/accentor-app/accentor/pkg/provider/g2p"
)

// Compile-time assertion that Client satisfies g2p.Transliterator.
var _ g2p.Transliterator = (*Client)(nil)

const defaultTimeout = 10 * time.Second

// Client implements g2p.Transliterator against an espeak-ng phonemizer server.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets a per-request HTTP timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. Useful for
// tests, custom transports, or connection pooling tweaks.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client that connects to the phonemizer server at baseURL
// (e.g., "http://localhost:5500"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("espeak: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// phonemizeRequest is the JSON request body for POST /phonemize.
type phonemizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// phonemizeResponse is the JSON response body from POST /phonemize.
type phonemizeResponse struct {
	IPA   string `json:"ipa"`
	Error string `json:"error,omitempty"`
}

// ToIPA implements g2p.Transliterator. A 422 response from the server maps to
// g2p.ErrLanguageUnsupported.
func (c *Client) ToIPA(ctx context.Context, text, language string) (string, error) {
	body, err := json.Marshal(phonemizeRequest{Text: text, Language: language})
	if err != nil {
		return "", fmt.Errorf("espeak: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/phonemize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("espeak: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("espeak: phonemize request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: %q", g2p.ErrLanguageUnsupported, language)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("espeak: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var pr phonemizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("espeak: decode response: %w", err)
	}
	if pr.Error != "" {
		return "", fmt.Errorf("espeak: server error: %s", pr.Error)
	}
	return strings.TrimSpace(pr.IPA), nil
}

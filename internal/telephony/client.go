package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultMaxRespBytes = 16 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises an adapter.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	baseURL      string
	now          func() time.Time
	publicURL    string
	maxRespBytes int64
}

// WithHTTPClient overrides the HTTP client used for outbound REST calls.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithBaseURL points the adapter at a different API host. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithClock overrides the clock used for replay-window checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPublicURL sets the externally visible URL webhooks are signed against.
func WithPublicURL(publicURL string) Option {
	return func(o *options) {
		o.publicURL = strings.TrimSpace(publicURL)
	}
}

// WithResponseBodyLimit caps how many bytes of an error response are kept.
func WithResponseBodyLimit(limit int64) Option {
	return func(o *options) {
		if limit > 0 {
			o.maxRespBytes = limit
		}
	}
}

func buildOptions(defaultBaseURL string, opts []Option) options {
	o := options{
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:      defaultBaseURL,
		now:          time.Now,
		maxRespBytes: defaultMaxRespBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// SendError is returned when a provider API answers with a non-2xx status.
type SendError struct {
	Provider   ProviderName
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("telephony: %s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// restCall describes one outbound provider API request.
type restCall struct {
	provider    ProviderName
	endpoint    string
	contentType string
	body        []byte
	auth        func(*http.Request)
}

func formCall(name ProviderName, endpoint string, form url.Values, auth func(*http.Request)) restCall {
	return restCall{
		provider:    name,
		endpoint:    endpoint,
		contentType: "application/x-www-form-urlencoded",
		body:        []byte(form.Encode()),
		auth:        auth,
	}
}

func jsonCall(name ProviderName, endpoint string, payload any, auth func(*http.Request)) (restCall, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return restCall{}, fmt.Errorf("telephony: %s: encode request: %w", name, err)
	}
	return restCall{
		provider:    name,
		endpoint:    endpoint,
		contentType: "application/json",
		body:        raw,
		auth:        auth,
	}, nil
}

func basicAuth(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func bearerAuth(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// do performs the POST and decodes a 2xx JSON response into out. Non-2xx becomes *SendError.
func (o options) do(ctx context.Context, call restCall, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.endpoint, bytes.NewReader(call.body))
	if err != nil {
		return fmt.Errorf("telephony: %s: build request: %w", call.provider, err)
	}
	req.Header.Set("Content-Type", call.contentType)
	req.Header.Set("Accept", "application/json")
	if call.auth != nil {
		call.auth(req)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: %s: request failed: %w", call.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, o.maxRespBytes))
		return &SendError{Provider: call.provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("telephony: %s: decode response: %w", call.provider, err)
	}
	return nil
}

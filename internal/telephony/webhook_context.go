package telephony

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookContext is an immutable snapshot of one inbound webhook request.
// It is built once per request and passed to VerifyWebhook, then ParseInbound.
type WebhookContext struct {
	Method string

	// URL is the request URL as seen by this process (scheme, host, path and query).
	URL string

	Headers    http.Header
	Body       []byte
	Query      url.Values
	RemoteAddr string

	// ReceivedAt stamps events whose payload carries no time of its own, so parsing the same
	// context twice yields identical events.
	ReceivedAt time.Time
}

// NewWebhookContext snapshots r. body is the already-read request body.
func NewWebhookContext(r *http.Request, body []byte, receivedAt time.Time) *WebhookContext {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	raw := make([]byte, len(body))
	copy(raw, body)

	return &WebhookContext{
		Method:     r.Method,
		URL:        scheme + "://" + host + r.URL.RequestURI(),
		Headers:    r.Header.Clone(),
		Body:       raw,
		Query:      r.URL.Query(),
		RemoteAddr: r.RemoteAddr,
		ReceivedAt: receivedAt,
	}
}

// Header returns the first value of a header, case-insensitively.
func (wc *WebhookContext) Header(name string) string {
	return wc.Headers.Get(name)
}

// ContentType returns the media type without parameters, lower-cased.
func (wc *WebhookContext) ContentType() string {
	ct := wc.Header("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mt
}

// IsJSON reports whether the body is declared as JSON.
func (wc *WebhookContext) IsJSON() bool {
	ct := wc.ContentType()
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

// resolveURL returns the URL a provider signed. Proxies and tunnels rewrite the externally
// visible host, so a configured public URL wins: with a path it is used verbatim, otherwise
// its scheme and host are combined with the observed path and query.
func resolveURL(publicURL string, wc *WebhookContext) string {
	publicURL = strings.TrimSpace(publicURL)
	if publicURL == "" {
		return wc.URL
	}
	pu, err := url.Parse(publicURL)
	if err != nil || pu.Scheme == "" || pu.Host == "" {
		return wc.URL
	}
	if pu.Path != "" && pu.Path != "/" {
		return publicURL
	}

	requestURI := "/"
	if obs, err := url.Parse(wc.URL); err == nil {
		requestURI = obs.RequestURI()
	}
	return pu.Scheme + "://" + pu.Host + requestURI
}

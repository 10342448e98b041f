package telephony

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// capturedRequest is what a fake provider API saw.
type capturedRequest struct {
	Path          string
	ContentType   string
	Authorization string
	BasicUser     string
	BasicPass     string
	Body          []byte
}

func (c capturedRequest) Form(t *testing.T) url.Values {
	t.Helper()
	v, err := url.ParseQuery(string(c.Body))
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	return v
}

// fakeAPI is a chi router on an httptest server answering every route with a canned reply.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []capturedRequest
}

func newFakeAPI(t *testing.T, pattern string, status int, response string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	r := chi.NewRouter()
	r.Post(pattern, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		f.mu.Lock()
		f.requests = append(f.requests, capturedRequest{
			Path:          r.URL.Path,
			ContentType:   r.Header.Get("Content-Type"),
			Authorization: r.Header.Get("Authorization"),
			BasicUser:     user,
			BasicPass:     pass,
			Body:          body,
		})
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) URL() string { return f.srv.URL }

func (f *fakeAPI) Requests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func (f *fakeAPI) Last(t *testing.T) capturedRequest {
	t.Helper()
	reqs := f.Requests()
	if len(reqs) == 0 {
		t.Fatalf("fake api received no requests")
	}
	return reqs[len(reqs)-1]
}

// webhookContext builds a context the way the ingress server does.
func webhookContext(t *testing.T, target, contentType string, body string, headers map[string]string) *WebhookContext {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, target, nil)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return NewWebhookContext(r, []byte(body), time.UnixMilli(1_700_000_000_000))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

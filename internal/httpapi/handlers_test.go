package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"telephony-gateway/internal/audit"
	"telephony-gateway/internal/auth"
	"telephony-gateway/internal/outbound"
	"telephony-gateway/internal/reporting"
	"telephony-gateway/internal/telephony"
)

type brokenProvider struct{ *telephony.Mock }

func (brokenProvider) SendSMS(context.Context, telephony.SendSMSParams) (telephony.SendResult, error) {
	return telephony.SendResult{}, &telephony.SendError{Provider: telephony.ProviderMock, StatusCode: 503, Body: "unavailable"}
}

type smsOnly struct{ telephony.Provider }

type denyLimiter struct{}

func (denyLimiter) Acquire(context.Context, string) (bool, error) { return false, nil }
func (denyLimiter) Release(context.Context, string) error         { return nil }

func newTestEngine(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithOperator(c.Request.Context(), "op-1", "admin"))
		c.Next()
	})
	r.GET("/healthz", h.Health)
	r.POST("/v1/messages", h.SendMessage)
	r.POST("/v1/calls", h.InitiateCall)
	r.POST("/v1/segments", h.Segments)
	r.GET("/v1/activity", h.Activity)
	return r
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSendMessage_OK(t *testing.T) {
	mock := telephony.NewMock()
	repo := audit.NewMemoryRepo(0)
	svc := outbound.New(mock, discard(), outbound.WithAudit(audit.NewService(repo)))
	r := newTestEngine(Handlers{Outbound: svc})

	w := do(r, http.MethodPost, "/v1/messages", `{"to":"+15550001","body":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res outbound.MessageResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].MessageID != "mock-msg-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	evs := repo.Events()
	if len(evs) != 1 || evs[0].ActorID != "op-1" || evs[0].ActorRole != "admin" {
		t.Fatalf("expected audited send with actor, got %+v", evs)
	}
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		svc  *outbound.Service
		body string
		want int
	}{
		{"invalid json", outbound.New(telephony.NewMock(), discard()), `{`, http.StatusBadRequest},
		{"missing to", outbound.New(telephony.NewMock(), discard()), `{"body":"x"}`, http.StatusBadRequest},
		{"concurrency cap", outbound.New(telephony.NewMock(), discard(), outbound.WithLimiter(denyLimiter{})), `{"to":"+1","body":"x"}`, http.StatusTooManyRequests},
		{"provider failure", outbound.New(brokenProvider{telephony.NewMock()}, discard()), `{"to":"+1","body":"x"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newTestEngine(Handlers{Outbound: tc.svc}), http.MethodPost, "/v1/messages", tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestSendMessage_ProviderErrorInBody(t *testing.T) {
	svc := outbound.New(brokenProvider{telephony.NewMock()}, discard())
	w := do(newTestEngine(Handlers{Outbound: svc}), http.MethodPost, "/v1/messages", `{"to":"+1","body":"x"}`)
	if !strings.Contains(w.Body.String(), "http 503") || !strings.Contains(w.Body.String(), "unavailable") {
		t.Fatalf("expected provider error message in body, got %s", w.Body.String())
	}
}

func TestInitiateCall(t *testing.T) {
	r := newTestEngine(Handlers{Outbound: outbound.New(telephony.NewMock(), discard())})
	w := do(r, http.MethodPost, "/v1/calls", `{"to":"+1","message":"hi"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mock-call-1") {
		t.Fatalf("expected call result, got %d: %s", w.Code, w.Body.String())
	}

	r = newTestEngine(Handlers{Outbound: outbound.New(smsOnly{telephony.NewMock()}, discard())})
	w = do(r, http.MethodPost, "/v1/calls", `{"to":"+1"}`)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", w.Code)
	}
}

func TestSegments(t *testing.T) {
	r := newTestEngine(Handlers{Outbound: outbound.New(telephony.NewMock(), discard())})

	w := do(r, http.MethodPost, "/v1/segments", `{"text":"`+strings.Repeat("a", 200)+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p outbound.Preview
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Count != 2 || p.Encoding != "gsm7" || !strings.HasPrefix(p.Segments[0], "[1/2] ") {
		t.Fatalf("unexpected preview: %+v", p)
	}

	w = do(r, http.MethodPost, "/v1/segments", `{"text":"x","mode":"sideways"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad mode, got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/v1/segments", `{"text":"`+strings.Repeat("a", 200)+`","segment_numbering":false}`)
	if strings.Contains(w.Body.String(), "[1/2]") {
		t.Fatalf("expected unnumbered segments, got %s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	r := newTestEngine(Handlers{Outbound: outbound.New(telephony.NewMock(), discard())})
	w := do(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"provider":"mock"`) {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestActivity(t *testing.T) {
	repo := audit.NewMemoryRepo(0)
	svc := outbound.New(telephony.NewMock(), discard(), outbound.WithAudit(audit.NewService(repo)))
	r := newTestEngine(Handlers{Outbound: svc, Reporting: reporting.NewService(repo)})

	if w := do(r, http.MethodPost, "/v1/messages", `{"to":"+1","body":"hello"}`); w.Code != http.StatusOK {
		t.Fatalf("send: %d", w.Code)
	}

	w := do(r, http.MethodGet, "/v1/activity?provider=mock", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out reporting.ActivitySummary
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.MessagesSent != 1 || out.SegmentsSent != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}

	if w := do(r, http.MethodGet, "/v1/activity?from=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/v1/activity?from=2025-01-02T00:00:00Z&to=2025-01-01T00:00:00Z", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewWithWriter_JSONLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("production", "json", &buf)
	l.Debug("hidden")
	l.Info("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected json, got %v", err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}

	buf.Reset()
	NewWithWriter("local", "json", &buf).Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug output in local env")
	}
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("dev", "text", &buf).Info("hello", "provider", "mock")
	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "provider=mock") {
		t.Fatalf("unexpected text output: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected text output, got json: %q", out)
	}
}

func TestFromFallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
	l := NewWithWriter("local", "json", &bytes.Buffer{})
	if From(With(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestMiddleware_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("local", "json", &buf)))

	var seen string
	var ctxLogger bool
	r.GET("/x", func(c *gin.Context) {
		seen = RequestID(c)
		ctxLogger = From(c.Request.Context()) == FromGin(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := w.Header().Get(HeaderRequestID); got == "" || got != seen {
		t.Fatalf("expected generated request id, header=%q handler=%q", got, seen)
	}
	if !ctxLogger {
		t.Fatalf("expected request context to carry the request logger")
	}
	if !strings.Contains(buf.String(), seen) {
		t.Fatalf("expected request summary with request id")
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "rid-1" {
		t.Fatalf("expected propagated request id, got %q", got)
	}
}

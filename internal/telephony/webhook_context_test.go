package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewWebhookContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "https://example.com/telephony/status?tenant=a&x=1", strings.NewReader("ignored"))
	r.Header.Set("content-type", "application/json; charset=utf-8")
	r.Header.Add("X-Multi", "a")
	r.Header.Add("X-Multi", "b")
	body := []byte(`{"a":1}`)

	wc := NewWebhookContext(r, body, time.UnixMilli(42))
	body[0] = 'X'

	assert.Equal(t, http.MethodPost, wc.Method)
	assert.Equal(t, "https://example.com/telephony/status?tenant=a&x=1", wc.URL)
	assert.Equal(t, `{"a":1}`, string(wc.Body), "context must own its body copy")
	assert.Equal(t, "a", wc.Query.Get("tenant"))
	assert.Equal(t, []string{"a", "b"}, wc.Headers.Values("x-multi"))
	assert.Equal(t, "application/json", wc.ContentType())
	assert.True(t, wc.IsJSON())
	assert.Equal(t, "192.0.2.1:1234", wc.RemoteAddr)
	assert.Equal(t, int64(42), wc.ReceivedAt.UnixMilli())
}

func TestResolveURL(t *testing.T) {
	wc := &WebhookContext{URL: "http://127.0.0.1:3334/telephony/webhook?a=1"}

	assert.Equal(t, wc.URL, resolveURL("", wc))
	assert.Equal(t, "https://gw.example.com/telephony/webhook?a=1", resolveURL("https://gw.example.com", wc))
	assert.Equal(t, "https://gw.example.com/telephony/webhook?a=1", resolveURL("https://gw.example.com/", wc))
	assert.Equal(t, "https://gw.example.com/hooks/sms", resolveURL("https://gw.example.com/hooks/sms", wc))
	assert.Equal(t, wc.URL, resolveURL("not a url", wc))
}

func TestSignaturesEqual(t *testing.T) {
	assert.True(t, signaturesEqual("abc", "abc"))
	assert.False(t, signaturesEqual("abc", "abd"))
	assert.False(t, signaturesEqual("abc", "ab"))
	assert.False(t, signaturesEqual("abc", ""))
}

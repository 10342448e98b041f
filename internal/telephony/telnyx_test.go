package telephony

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telephony-gateway/internal/config"
)

var telnyxNow = time.Unix(1_700_000_000, 0)

type telnyxFixture struct {
	provider *Telnyx
	priv     ed25519.PrivateKey
}

func newTelnyxFixture(t *testing.T, opts ...Option) telnyxFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	opts = append([]Option{WithClock(fixedClock(telnyxNow))}, opts...)
	p, err := NewTelnyx(config.TelnyxConfig{
		APIKey:     "KEY123",
		PublicKey:  base64.StdEncoding.EncodeToString(der),
		FromNumber: "+15550000000",
	}, opts...)
	require.NoError(t, err)
	return telnyxFixture{provider: p, priv: priv}
}

func (f telnyxFixture) signedContext(t *testing.T, body string, ts time.Time) *WebhookContext {
	t.Helper()
	stamp := strconv.FormatInt(ts.Unix(), 10)
	sig := ed25519.Sign(f.priv, []byte(stamp+"|"+body))
	return webhookContext(t, "https://example.com/telephony/webhook", "application/json", body, map[string]string{
		"telnyx-timestamp":         stamp,
		"telnyx-signature-ed25519": base64.StdEncoding.EncodeToString(sig),
	})
}

const telnyxInboundBody = `{"data":{"id":"evt-1","event_type":"message.received","occurred_at":"2023-11-14T22:13:20.000+00:00",` +
	`"payload":{"id":"msg-1","from":{"phone_number":"+15550001234"},"to":[{"phone_number":"+15550005678"}],` +
	`"text":"Hello","parts":1,"media":[{"url":"https://media/1"}]}}}`

func TestTelnyxVerify_ValidSignature(t *testing.T) {
	f := newTelnyxFixture(t)
	res := f.provider.VerifyWebhook(f.signedContext(t, telnyxInboundBody, telnyxNow))
	assert.True(t, res.OK, res.Reason)
}

func TestTelnyxVerify_RawKeyAccepted(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	p, err := NewTelnyx(config.TelnyxConfig{
		APIKey:    "KEY",
		PublicKey: base64.StdEncoding.EncodeToString(pub),
	}, WithClock(fixedClock(telnyxNow)))
	require.NoError(t, err)

	f := telnyxFixture{provider: p, priv: priv}
	assert.True(t, p.VerifyWebhook(f.signedContext(t, "{}", telnyxNow)).OK)
}

func TestTelnyxVerify_StaleTimestamp(t *testing.T) {
	f := newTelnyxFixture(t)

	// Correctly signed, but 400 seconds old.
	res := f.provider.VerifyWebhook(f.signedContext(t, telnyxInboundBody, telnyxNow.Add(-400*time.Second)))
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "stale")

	// Garbage signature, same age: still reported as stale.
	wc := webhookContext(t, "https://example.com/", "application/json", telnyxInboundBody, map[string]string{
		"telnyx-timestamp":         strconv.FormatInt(telnyxNow.Add(-400*time.Second).Unix(), 10),
		"telnyx-signature-ed25519": "not-base64!",
	})
	res = f.provider.VerifyWebhook(wc)
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "stale")

	// Future timestamps are bounded too.
	res = f.provider.VerifyWebhook(f.signedContext(t, telnyxInboundBody, telnyxNow.Add(400*time.Second)))
	assert.False(t, res.OK)
}

func TestTelnyxVerify_TamperedBody(t *testing.T) {
	f := newTelnyxFixture(t)
	wc := f.signedContext(t, telnyxInboundBody, telnyxNow)
	wc.Body = append([]byte(nil), wc.Body...)
	wc.Body[10] ^= 0x01
	res := f.provider.VerifyWebhook(wc)
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "signature")
}

func TestTelnyxVerify_MissingKeyIsFailure(t *testing.T) {
	p, err := NewTelnyx(config.TelnyxConfig{APIKey: "KEY"}, WithClock(fixedClock(telnyxNow)))
	require.NoError(t, err)

	f := newTelnyxFixture(t)
	res := p.VerifyWebhook(f.signedContext(t, "{}", telnyxNow))
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "public key")
}

func TestTelnyxVerify_InvalidKeyIsFailure(t *testing.T) {
	p, err := NewTelnyx(config.TelnyxConfig{APIKey: "KEY", PublicKey: "%%%"}, WithClock(fixedClock(telnyxNow)))
	require.NoError(t, err)
	res := p.VerifyWebhook(webhookContext(t, "https://example.com/", "application/json", "{}", nil))
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "invalid public key")
}

func TestTelnyxVerify_MissingHeaders(t *testing.T) {
	f := newTelnyxFixture(t)
	res := f.provider.VerifyWebhook(webhookContext(t, "https://example.com/", "application/json", "{}", nil))
	assert.False(t, res.OK)

	res = f.provider.VerifyWebhook(webhookContext(t, "https://example.com/", "application/json", "{}", map[string]string{
		"telnyx-timestamp": strconv.FormatInt(telnyxNow.Unix(), 10),
	}))
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "telnyx-signature-ed25519")
}

func TestTelnyxParse_InboundMessage(t *testing.T) {
	f := newTelnyxFixture(t)
	res := f.provider.ParseInbound(f.signedContext(t, telnyxInboundBody, telnyxNow))

	assert.Equal(t, http.StatusOK, res.Status())
	assert.Empty(t, res.Body)
	require.Len(t, res.Events, 1)

	ev, ok := res.Events[0].(InboundSMS)
	require.True(t, ok)
	assert.Equal(t, "msg-1", ev.MessageID)
	assert.Equal(t, "+15550001234", ev.From)
	assert.Equal(t, "+15550005678", ev.To)
	assert.Equal(t, "Hello", ev.Body)
	assert.Equal(t, []string{"https://media/1"}, ev.MediaURLs)
	assert.Equal(t, int64(1_700_000_000_000), ev.Timestamp)
}

func TestTelnyxParse_DeliveryEvents(t *testing.T) {
	f := newTelnyxFixture(t)
	cases := map[string]MessageStatus{
		"message.sent":      StatusSent,
		"message.delivered": StatusDelivered,
		"message.failed":    StatusFailed,
	}
	for eventType, want := range cases {
		t.Run(eventType, func(t *testing.T) {
			body := `{"data":{"event_type":"` + eventType + `","payload":{"id":"m1"}}}`
			res := f.provider.ParseInbound(webhookContext(t, "https://example.com/", "application/json", body, nil))
			require.Len(t, res.Events, 1)
			ev := res.Events[0].(DeliveryStatus)
			assert.Equal(t, "m1", ev.MessageID)
			assert.Equal(t, want, ev.Status)
		})
	}
}

func TestTelnyxParse_FailedSurfacesFirstError(t *testing.T) {
	f := newTelnyxFixture(t)
	body := `{"data":{"event_type":"message.failed","payload":{"id":"m1","errors":[` +
		`{"code":40008,"title":"Undeliverable"},{"code":"40300","title":"Blocked"}]}}}`
	res := f.provider.ParseInbound(webhookContext(t, "https://example.com/", "application/json", body, nil))
	require.Len(t, res.Events, 1)
	ev := res.Events[0].(DeliveryStatus)
	assert.Equal(t, StatusFailed, ev.Status)
	assert.Equal(t, "40008", ev.ErrorCode)
	assert.Equal(t, "Undeliverable", ev.ErrorMessage)
}

func TestTelnyxParse_UnknownAndMalformed(t *testing.T) {
	f := newTelnyxFixture(t)

	res := f.provider.ParseInbound(webhookContext(t, "https://example.com/", "application/json",
		`{"data":{"event_type":"call.initiated","payload":{}}}`, nil))
	assert.Empty(t, res.Events)
	assert.Equal(t, http.StatusOK, res.Status())

	res = f.provider.ParseInbound(webhookContext(t, "https://example.com/", "application/json", `{"data":`, nil))
	assert.Empty(t, res.Events)
	assert.Equal(t, http.StatusBadRequest, res.Status())
}

func TestTelnyxParse_Idempotent(t *testing.T) {
	f := newTelnyxFixture(t)
	wc := f.signedContext(t, telnyxInboundBody, telnyxNow)
	assert.Equal(t, f.provider.ParseInbound(wc), f.provider.ParseInbound(wc))
}

func TestTelnyxSendSMSAndMMS(t *testing.T) {
	api := newFakeAPI(t, "/v2/messages", http.StatusOK,
		`{"data":{"id":"tx-1","parts":2,"to":[{"phone_number":"+1555","status":"sending"}]}}`)
	f := newTelnyxFixture(t, WithBaseURL(api.URL()))

	res, err := f.provider.SendSMS(context.Background(), SendSMSParams{To: "+1555", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", res.MessageID)
	assert.Equal(t, StatusSending, res.Status)
	require.NotNil(t, res.Segments)
	assert.Equal(t, 2, *res.Segments)

	req := api.Last(t)
	assert.Equal(t, "Bearer KEY123", req.Authorization)
	assert.Equal(t, "application/json", req.ContentType)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "SMS", sent["type"])
	assert.Equal(t, "+15550000000", sent["from"])
	assert.Equal(t, "hi", sent["text"])
	assert.NotContains(t, sent, "media_urls")
	assert.NotContains(t, sent, "messaging_profile_id")

	_, err = f.provider.SendMMS(context.Background(), SendMMSParams{
		SendSMSParams: SendSMSParams{To: "+1555", Body: "pic"},
		MediaURLs:     []string{"https://a/1.png"},
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(api.Last(t).Body, &sent))
	assert.Equal(t, "MMS", sent["type"])
	assert.Equal(t, []any{"https://a/1.png"}, sent["media_urls"])
}

func TestTelnyxSend_StatusDefaultsToQueued(t *testing.T) {
	api := newFakeAPI(t, "/v2/messages", http.StatusOK, `{"data":{"id":"tx-2","to":[{"status":"webhook_delivered"}]}}`)
	f := newTelnyxFixture(t, WithBaseURL(api.URL()))

	res, err := f.provider.SendSMS(context.Background(), SendSMSParams{To: "+1555", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, res.Status)
	assert.Nil(t, res.Segments)
}

func TestTelnyxSend_MessagingProfile(t *testing.T) {
	api := newFakeAPI(t, "/v2/messages", http.StatusOK, `{"data":{"id":"tx-3"}}`)
	p, err := NewTelnyx(config.TelnyxConfig{APIKey: "KEY", MessagingProfileID: "prof-1"}, WithBaseURL(api.URL()))
	require.NoError(t, err)

	_, err = p.SendSMS(context.Background(), SendSMSParams{To: "+1555", Body: "hi"})
	require.NoError(t, err)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(api.Last(t).Body, &sent))
	assert.Equal(t, "prof-1", sent["messaging_profile_id"])
}

func TestTelnyxSendSMS_Non2xx(t *testing.T) {
	api := newFakeAPI(t, "/v2/messages", http.StatusUnprocessableEntity, `{"errors":[{"code":"10015","title":"Bad Request"}]}`)
	f := newTelnyxFixture(t, WithBaseURL(api.URL()))

	_, err := f.provider.SendSMS(context.Background(), SendSMSParams{To: "+1555", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telnyx")
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "10015")
}

func TestTelnyxInitiateCall(t *testing.T) {
	api := newFakeAPI(t, "/v2/calls", http.StatusOK, `{"data":{"call_control_id":"v3:abc","is_alive":false}}`)
	p, err := NewTelnyx(config.TelnyxConfig{APIKey: "KEY", FromNumber: "+1000", ConnectionID: "conn-1"}, WithBaseURL(api.URL()))
	require.NoError(t, err)

	res, err := p.InitiateCall(context.Background(), InitiateCallParams{To: "+1555", TimeoutSeconds: 15})
	require.NoError(t, err)
	assert.Equal(t, "v3:abc", res.CallID)
	assert.Equal(t, CallInitiated, res.Status)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(api.Last(t).Body, &sent))
	assert.Equal(t, "conn-1", sent["connection_id"])
	assert.Equal(t, float64(15), sent["timeout_secs"])

	noConn, err := NewTelnyx(config.TelnyxConfig{APIKey: "KEY", FromNumber: "+1000"})
	require.NoError(t, err)
	_, err = noConn.InitiateCall(context.Background(), InitiateCallParams{To: "+1555"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewTelnyx_RequiresAPIKey(t *testing.T) {
	_, err := NewTelnyx(config.TelnyxConfig{PublicKey: "x"})
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "TELNYX_API_KEY")
}

package telephony

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telephony-gateway/internal/config"
)

const (
	telnyxDefaultBaseURL = "https://api.telnyx.com"

	// TelnyxReplayWindow bounds the allowed skew between telnyx-timestamp and now.
	TelnyxReplayWindow = 300 * time.Second
)

// Telnyx is the Telnyx Messaging and Call Control adapter.
type Telnyx struct {
	apiKey             string
	fromNumber         string
	messagingProfileID string
	connectionID       string

	publicKey ed25519.PublicKey
	keyErr    error

	opts options
}

// NewTelnyx requires an API key. The webhook public key is optional at construction; without
// it every webhook fails verification.
func NewTelnyx(cfg config.TelnyxConfig, opts ...Option) (*Telnyx, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: telnyx requires TELNYX_API_KEY", ErrMissingCredentials)
	}

	base := telnyxDefaultBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	p := &Telnyx{
		apiKey:             cfg.APIKey,
		fromNumber:         strings.TrimSpace(cfg.FromNumber),
		messagingProfileID: strings.TrimSpace(cfg.MessagingProfileID),
		connectionID:       strings.TrimSpace(cfg.ConnectionID),
		opts:               buildOptions(base, opts),
	}
	if strings.TrimSpace(cfg.PublicKey) != "" {
		p.publicKey, p.keyErr = ParseTelnyxPublicKey(cfg.PublicKey)
	}
	return p, nil
}

// ParseTelnyxPublicKey accepts a PEM block, base64 DER (SPKI) or base64 of the raw 32-byte key.
func ParseTelnyxPublicKey(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)
	var pemBytes []byte
	if strings.HasPrefix(s, "-----BEGIN") {
		pemBytes = []byte(s)
	} else {
		der, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("telephony: telnyx public key is not base64: %w", err)
		}
		if len(der) == ed25519.PublicKeySize {
			return ed25519.PublicKey(der), nil
		}
		pemBytes = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	}

	key, err := jwt.ParseEdPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("telephony: telnyx public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("telephony: telnyx public key is not ed25519")
	}
	return pub, nil
}

func (p *Telnyx) Name() ProviderName { return ProviderTelnyx }

// VerifyWebhook checks the Ed25519 signature over "{timestamp}|{body}". The replay window is
// enforced before any cryptography. Internal failures are reported, never propagated.
func (p *Telnyx) VerifyWebhook(wc *WebhookContext) (res VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = rejected("verification error: %v", r)
		}
	}()

	if p.keyErr != nil {
		return rejected("invalid public key: %v", p.keyErr)
	}
	if len(p.publicKey) == 0 {
		return rejected("public key not configured")
	}

	tsHeader := strings.TrimSpace(wc.Header("telnyx-timestamp"))
	if tsHeader == "" {
		return rejected("missing telnyx-timestamp header")
	}
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return rejected("invalid telnyx-timestamp header")
	}
	skew := math.Abs(float64(p.opts.now().Unix() - ts))
	if skew > TelnyxReplayWindow.Seconds() {
		return rejected("stale timestamp: %ds outside the %ds replay window", int64(skew), int64(TelnyxReplayWindow.Seconds()))
	}

	sigHeader := strings.TrimSpace(wc.Header("telnyx-signature-ed25519"))
	if sigHeader == "" {
		return rejected("missing telnyx-signature-ed25519 header")
	}
	sig, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return rejected("signature is not base64")
	}

	payload := tsHeader + "|" + string(wc.Body)
	if err := jwt.SigningMethodEdDSA.Verify(payload, sig, p.publicKey); err != nil {
		return rejected("signature mismatch")
	}
	return verified()
}

func (p *Telnyx) ParseInbound(wc *WebhookContext) ParseResult {
	return parseTelnyxWebhook(wc)
}

type telnyxMessageRequest struct {
	From               string   `json:"from,omitempty"`
	To                 string   `json:"to"`
	Text               string   `json:"text,omitempty"`
	MessagingProfileID string   `json:"messaging_profile_id,omitempty"`
	Type               string   `json:"type"`
	MediaURLs          []string `json:"media_urls,omitempty"`
	WebhookURL         string   `json:"webhook_url,omitempty"`
}

type telnyxMessageResponse struct {
	Data struct {
		ID    string `json:"id"`
		Parts int    `json:"parts"`
		To    []struct {
			PhoneNumber string `json:"phone_number"`
			Status      string `json:"status"`
		} `json:"to"`
	} `json:"data"`
}

func (p *Telnyx) SendSMS(ctx context.Context, params SendSMSParams) (SendResult, error) {
	if err := validateSMS(params); err != nil {
		return SendResult{}, err
	}
	req, err := p.messageRequest(params, "SMS")
	if err != nil {
		return SendResult{}, err
	}
	return p.sendMessage(ctx, req)
}

func (p *Telnyx) SendMMS(ctx context.Context, params SendMMSParams) (SendResult, error) {
	if err := validateMMS(params); err != nil {
		return SendResult{}, err
	}
	req, err := p.messageRequest(params.SendSMSParams, "MMS")
	if err != nil {
		return SendResult{}, err
	}
	req.MediaURLs = params.MediaURLs
	return p.sendMessage(ctx, req)
}

func (p *Telnyx) messageRequest(params SendSMSParams, kind string) (telnyxMessageRequest, error) {
	from := params.From
	if from == "" {
		from = p.fromNumber
	}
	if from == "" && p.messagingProfileID == "" {
		return telnyxMessageRequest{}, ErrMissingSender
	}
	return telnyxMessageRequest{
		From:               from,
		To:                 params.To,
		Text:               params.Body,
		MessagingProfileID: p.messagingProfileID,
		Type:               kind,
		WebhookURL:         params.StatusCallbackURL,
	}, nil
}

func (p *Telnyx) sendMessage(ctx context.Context, body telnyxMessageRequest) (SendResult, error) {
	call, err := jsonCall(ProviderTelnyx, p.opts.baseURL+"/v2/messages", body, bearerAuth(p.apiKey))
	if err != nil {
		return SendResult{}, err
	}
	var resp telnyxMessageResponse
	if err := p.opts.do(ctx, call, &resp); err != nil {
		return SendResult{}, err
	}

	status := ""
	if len(resp.Data.To) > 0 {
		status = resp.Data.To[0].Status
	}
	out := SendResult{
		MessageID: resp.Data.ID,
		Status:    mapTelnyxSendStatus(status),
		Provider:  ProviderTelnyx,
	}
	if resp.Data.Parts > 0 {
		out.Segments = intPtr(resp.Data.Parts)
	}
	return out, nil
}

type telnyxCallRequest struct {
	ConnectionID string `json:"connection_id"`
	To           string `json:"to"`
	From         string `json:"from"`
	WebhookURL   string `json:"webhook_url,omitempty"`
	TimeoutSecs  int    `json:"timeout_secs,omitempty"`
}

type telnyxCallResponse struct {
	Data struct {
		CallControlID string `json:"call_control_id"`
		CallLegID     string `json:"call_leg_id"`
		IsAlive       bool   `json:"is_alive"`
	} `json:"data"`
}

// InitiateCall dials through Call Control. A connection id is required.
func (p *Telnyx) InitiateCall(ctx context.Context, params InitiateCallParams) (InitiateCallResult, error) {
	if err := validateCall(params); err != nil {
		return InitiateCallResult{}, err
	}
	if p.connectionID == "" {
		return InitiateCallResult{}, fmt.Errorf("%w: telnyx calls require TELNYX_CONNECTION_ID", ErrMissingCredentials)
	}
	from := params.From
	if from == "" {
		from = p.fromNumber
	}
	if from == "" {
		return InitiateCallResult{}, ErrMissingSender
	}

	call, err := jsonCall(ProviderTelnyx, p.opts.baseURL+"/v2/calls", telnyxCallRequest{
		ConnectionID: p.connectionID,
		To:           params.To,
		From:         from,
		WebhookURL:   params.WebhookURL,
		TimeoutSecs:  params.TimeoutSeconds,
	}, bearerAuth(p.apiKey))
	if err != nil {
		return InitiateCallResult{}, err
	}
	var resp telnyxCallResponse
	if err := p.opts.do(ctx, call, &resp); err != nil {
		return InitiateCallResult{}, err
	}
	return InitiateCallResult{
		CallID:   resp.Data.CallControlID,
		Status:   CallInitiated,
		Provider: ProviderTelnyx,
	}, nil
}

// Telnyx acknowledges sends before delivery; anything unexpected is still queued.
func mapTelnyxSendStatus(s string) MessageStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sending":
		return StatusSending
	case "sent":
		return StatusSent
	case "delivered":
		return StatusDelivered
	default:
		return StatusQueued
	}
}

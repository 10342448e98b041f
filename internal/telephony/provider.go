package telephony

import (
	"context"
	"errors"
)

// ProviderName identifies an adapter. It never changes for the lifetime of an adapter instance.
type ProviderName string

const (
	ProviderTwilio ProviderName = "twilio"
	ProviderTelnyx ProviderName = "telnyx"
	ProviderPlivo  ProviderName = "plivo"
	ProviderMock   ProviderName = "mock"
)

// Provider defines the provider-agnostic interface used by the ingress server and the
// outbound service.
//
// Rules:
//   - No provider wire format leaks outside its adapter.
//   - VerifyWebhook must be called before ParseInbound; a parse after a failed verify is untrusted.
//   - VerifyWebhook and ParseInbound never panic, never block on I/O and have no side effects.
type Provider interface {
	Name() ProviderName

	VerifyWebhook(wc *WebhookContext) VerificationResult
	ParseInbound(wc *WebhookContext) ParseResult

	SendSMS(ctx context.Context, p SendSMSParams) (SendResult, error)
	SendMMS(ctx context.Context, p SendMMSParams) (SendResult, error)
}

// CallInitiator is implemented by adapters that can place outbound voice calls.
type CallInitiator interface {
	InitiateCall(ctx context.Context, p InitiateCallParams) (InitiateCallResult, error)
}

var (
	ErrMissingCredentials = errors.New("telephony: missing provider credentials")
	ErrUnknownProvider    = errors.New("telephony: unknown provider")
	ErrMissingSender      = errors.New("telephony: sender number or pool is required")
	ErrInvalidParams      = errors.New("telephony: invalid send params")
)

// MessageStatus is the normalized lifecycle state of an outbound message.
type MessageStatus string

const (
	StatusQueued      MessageStatus = "queued"
	StatusSending     MessageStatus = "sending"
	StatusSent        MessageStatus = "sent"
	StatusDelivered   MessageStatus = "delivered"
	StatusUndelivered MessageStatus = "undelivered"
	StatusFailed      MessageStatus = "failed"
	StatusUnknown     MessageStatus = "unknown"
)

type SendSMSParams struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`

	// StatusCallbackURL asks the provider to report delivery status to this URL.
	StatusCallbackURL string `json:"status_callback_url,omitempty"`
}

type SendMMSParams struct {
	SendSMSParams
	MediaURLs []string `json:"media_urls"`
}

type SendResult struct {
	MessageID string        `json:"message_id"`
	Status    MessageStatus `json:"status"`
	Provider  ProviderName  `json:"provider"`

	// Segments is the segment count reported by the provider API, when it reports one.
	Segments *int `json:"segments,omitempty"`
}

type InitiateCallParams struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`

	// WebhookURL is fetched by the provider for call instructions once the call connects.
	WebhookURL        string `json:"webhook_url,omitempty"`
	StatusCallbackURL string `json:"status_callback_url,omitempty"`

	// TimeoutSeconds is how long to ring before giving up. 0 uses the provider default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Message is spoken on answer when no WebhookURL is given (providers that support inline
	// instructions only).
	Message string `json:"message,omitempty"`
}

type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallQueued    CallStatus = "queued"
	CallFailed    CallStatus = "failed"
)

type InitiateCallResult struct {
	CallID   string       `json:"call_id"`
	Status   CallStatus   `json:"status"`
	Provider ProviderName `json:"provider"`
}

func validateSMS(p SendSMSParams) error {
	if p.To == "" {
		return errors.Join(ErrInvalidParams, errors.New("to is required"))
	}
	return nil
}

func validateMMS(p SendMMSParams) error {
	if err := validateSMS(p.SendSMSParams); err != nil {
		return err
	}
	if len(p.MediaURLs) == 0 {
		return errors.Join(ErrInvalidParams, errors.New("at least one media url is required"))
	}
	return nil
}

func validateCall(p InitiateCallParams) error {
	if p.To == "" {
		return errors.Join(ErrInvalidParams, errors.New("to is required"))
	}
	return nil
}

func intPtr(n int) *int { return &n }

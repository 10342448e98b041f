package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"telephony-gateway/internal/config"
)

const twilioDefaultBaseURL = "https://api.twilio.com"

// Twilio is the Twilio Programmable Messaging and Voice adapter.
type Twilio struct {
	accountSID          string
	authToken           string
	fromNumber          string
	messagingServiceSID string
	opts                options
}

// NewTwilio validates credentials and builds the adapter. A sender (from number or messaging
// service) is required.
func NewTwilio(cfg config.TwilioConfig, opts ...Option) (*Twilio, error) {
	var missing []string
	if strings.TrimSpace(cfg.AccountSID) == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if strings.TrimSpace(cfg.FromNumber) == "" && strings.TrimSpace(cfg.MessagingServiceSID) == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER or TWILIO_MESSAGING_SERVICE_SID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: twilio requires %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	base := twilioDefaultBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Twilio{
		accountSID:          strings.TrimSpace(cfg.AccountSID),
		authToken:           cfg.AuthToken,
		fromNumber:          strings.TrimSpace(cfg.FromNumber),
		messagingServiceSID: strings.TrimSpace(cfg.MessagingServiceSID),
		opts:                buildOptions(base, opts),
	}, nil
}

func (p *Twilio) Name() ProviderName { return ProviderTwilio }

// VerifyWebhook checks X-Twilio-Signature against the resolved URL and the POST parameters.
func (p *Twilio) VerifyWebhook(wc *WebhookContext) VerificationResult {
	got := wc.Header("X-Twilio-Signature")
	if got == "" {
		return rejected("missing X-Twilio-Signature header")
	}
	params, err := url.ParseQuery(string(wc.Body))
	if err != nil {
		return rejected("malformed form body: %v", err)
	}
	expected := TwilioSignature(p.authToken, resolveURL(p.opts.publicURL, wc), params)
	if !signaturesEqual(expected, got) {
		return rejected("signature mismatch")
	}
	return verified()
}

func (p *Twilio) ParseInbound(wc *WebhookContext) ParseResult {
	return parseTwilioWebhook(wc)
}

type twilioMessageResponse struct {
	SID         string `json:"sid"`
	Status      string `json:"status"`
	NumSegments string `json:"num_segments"`
}

func (p *Twilio) SendSMS(ctx context.Context, params SendSMSParams) (SendResult, error) {
	if err := validateSMS(params); err != nil {
		return SendResult{}, err
	}
	form, err := p.messageForm(params)
	if err != nil {
		return SendResult{}, err
	}
	return p.sendMessage(ctx, form)
}

func (p *Twilio) SendMMS(ctx context.Context, params SendMMSParams) (SendResult, error) {
	if err := validateMMS(params); err != nil {
		return SendResult{}, err
	}
	form, err := p.messageForm(params.SendSMSParams)
	if err != nil {
		return SendResult{}, err
	}
	for _, u := range params.MediaURLs {
		form.Add("MediaUrl", u)
	}
	return p.sendMessage(ctx, form)
}

// messageForm builds the common form. A messaging service replaces From entirely.
func (p *Twilio) messageForm(params SendSMSParams) (url.Values, error) {
	form := url.Values{}
	form.Set("To", params.To)
	form.Set("Body", params.Body)

	switch {
	case p.messagingServiceSID != "":
		form.Set("MessagingServiceSid", p.messagingServiceSID)
	case params.From != "":
		form.Set("From", params.From)
	case p.fromNumber != "":
		form.Set("From", p.fromNumber)
	default:
		return nil, ErrMissingSender
	}

	if params.StatusCallbackURL != "" {
		form.Set("StatusCallback", params.StatusCallbackURL)
	}
	return form, nil
}

func (p *Twilio) sendMessage(ctx context.Context, form url.Values) (SendResult, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.opts.baseURL, url.PathEscape(p.accountSID))

	var resp twilioMessageResponse
	if err := p.opts.do(ctx, formCall(ProviderTwilio, endpoint, form, basicAuth(p.accountSID, p.authToken)), &resp); err != nil {
		return SendResult{}, err
	}
	if resp.SID == "" {
		return SendResult{}, errors.New("telephony: twilio: response missing sid")
	}
	return SendResult{
		MessageID: resp.SID,
		Status:    mapTwilioStatus(resp.Status),
		Provider:  ProviderTwilio,
		Segments:  parseCount(resp.NumSegments),
	}, nil
}

type twilioCallResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// InitiateCall places a call. Without a webhook URL the call plays inline TwiML.
func (p *Twilio) InitiateCall(ctx context.Context, params InitiateCallParams) (InitiateCallResult, error) {
	if err := validateCall(params); err != nil {
		return InitiateCallResult{}, err
	}

	from := params.From
	if from == "" {
		from = p.fromNumber
	}
	if from == "" {
		return InitiateCallResult{}, ErrMissingSender
	}

	form := url.Values{}
	form.Set("To", params.To)
	form.Set("From", from)
	if params.WebhookURL != "" {
		form.Set("Url", params.WebhookURL)
	} else {
		twiml, err := renderCallTwiML(params.Message)
		if err != nil {
			return InitiateCallResult{}, fmt.Errorf("telephony: twilio: render twiml: %w", err)
		}
		form.Set("Twiml", twiml)
	}
	if params.StatusCallbackURL != "" {
		form.Set("StatusCallback", params.StatusCallbackURL)
	}
	if params.TimeoutSeconds > 0 {
		form.Set("Timeout", strconv.Itoa(params.TimeoutSeconds))
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", p.opts.baseURL, url.PathEscape(p.accountSID))
	var resp twilioCallResponse
	if err := p.opts.do(ctx, formCall(ProviderTwilio, endpoint, form, basicAuth(p.accountSID, p.authToken)), &resp); err != nil {
		return InitiateCallResult{}, err
	}
	return InitiateCallResult{
		CallID:   resp.SID,
		Status:   mapTwilioCallStatus(resp.Status),
		Provider: ProviderTwilio,
	}, nil
}

func mapTwilioStatus(s string) MessageStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "accepted":
		return StatusQueued
	case "sending":
		return StatusSending
	case "sent":
		return StatusSent
	case "delivered":
		return StatusDelivered
	case "undelivered":
		return StatusUndelivered
	case "failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func mapTwilioCallStatus(s string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued":
		return CallQueued
	case "failed", "busy", "no-answer", "canceled":
		return CallFailed
	default:
		return CallInitiated
	}
}

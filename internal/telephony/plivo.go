package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"telephony-gateway/internal/config"
)

const plivoDefaultBaseURL = "https://api.plivo.com"

// Plivo is the Plivo Messaging and Voice adapter.
type Plivo struct {
	authID     string
	authToken  string
	fromNumber string
	answerURL  string
	opts       options
}

func NewPlivo(cfg config.PlivoConfig, opts ...Option) (*Plivo, error) {
	var missing []string
	if strings.TrimSpace(cfg.AuthID) == "" {
		missing = append(missing, "PLIVO_AUTH_ID")
	}
	if cfg.AuthToken == "" {
		missing = append(missing, "PLIVO_AUTH_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: plivo requires %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	base := plivoDefaultBaseURL
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Plivo{
		authID:     strings.TrimSpace(cfg.AuthID),
		authToken:  cfg.AuthToken,
		fromNumber: strings.TrimSpace(cfg.FromNumber),
		answerURL:  strings.TrimSpace(cfg.AnswerURL),
		opts:       buildOptions(base, opts),
	}, nil
}

func (p *Plivo) Name() ProviderName { return ProviderPlivo }

// VerifyWebhook checks the V3 signature over resolved URL + nonce + raw body. The signature
// header may carry several comma-separated candidates; any match passes.
func (p *Plivo) VerifyWebhook(wc *WebhookContext) VerificationResult {
	sigHeader := wc.Header("X-Plivo-Signature-V3")
	if sigHeader == "" {
		return rejected("missing X-Plivo-Signature-V3 header")
	}
	nonce := wc.Header("X-Plivo-Signature-V3-Nonce")
	if nonce == "" {
		return rejected("missing X-Plivo-Signature-V3-Nonce header")
	}

	expected := PlivoSignatureV3(p.authToken, resolveURL(p.opts.publicURL, wc), nonce, wc.Body)
	for _, candidate := range splitList(sigHeader) {
		if signaturesEqual(expected, candidate) {
			return verified()
		}
	}
	return rejected("signature mismatch")
}

func (p *Plivo) ParseInbound(wc *WebhookContext) ParseResult {
	return parsePlivoWebhook(wc)
}

type plivoMessageRequest struct {
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Text      string   `json:"text"`
	Type      string   `json:"type,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
	URL       string   `json:"url,omitempty"`
	Method    string   `json:"method,omitempty"`
}

type plivoMessageResponse struct {
	APIID       string   `json:"api_id"`
	Message     string   `json:"message"`
	MessageUUID []string `json:"message_uuid"`
}

func (p *Plivo) SendSMS(ctx context.Context, params SendSMSParams) (SendResult, error) {
	if err := validateSMS(params); err != nil {
		return SendResult{}, err
	}
	req, err := p.messageRequest(params)
	if err != nil {
		return SendResult{}, err
	}
	return p.sendMessage(ctx, req)
}

func (p *Plivo) SendMMS(ctx context.Context, params SendMMSParams) (SendResult, error) {
	if err := validateMMS(params); err != nil {
		return SendResult{}, err
	}
	req, err := p.messageRequest(params.SendSMSParams)
	if err != nil {
		return SendResult{}, err
	}
	req.Type = "mms"
	req.MediaURLs = params.MediaURLs
	return p.sendMessage(ctx, req)
}

func (p *Plivo) messageRequest(params SendSMSParams) (plivoMessageRequest, error) {
	from := params.From
	if from == "" {
		from = p.fromNumber
	}
	if from == "" {
		return plivoMessageRequest{}, ErrMissingSender
	}
	req := plivoMessageRequest{Src: from, Dst: params.To, Text: params.Body}
	if params.StatusCallbackURL != "" {
		req.URL = params.StatusCallbackURL
		req.Method = "POST"
	}
	return req, nil
}

// sendMessage posts to the Message resource. Plivo's synchronous ack always means queued.
func (p *Plivo) sendMessage(ctx context.Context, body plivoMessageRequest) (SendResult, error) {
	endpoint := fmt.Sprintf("%s/v1/Account/%s/Message/", p.opts.baseURL, url.PathEscape(p.authID))
	call, err := jsonCall(ProviderPlivo, endpoint, body, basicAuth(p.authID, p.authToken))
	if err != nil {
		return SendResult{}, err
	}
	var resp plivoMessageResponse
	if err := p.opts.do(ctx, call, &resp); err != nil {
		return SendResult{}, err
	}
	if len(resp.MessageUUID) == 0 {
		return SendResult{}, errors.New("telephony: plivo: response missing message_uuid")
	}
	return SendResult{
		MessageID: resp.MessageUUID[0],
		Status:    StatusQueued,
		Provider:  ProviderPlivo,
	}, nil
}

type plivoCallRequest struct {
	From         string `json:"from"`
	To           string `json:"to"`
	AnswerURL    string `json:"answer_url"`
	AnswerMethod string `json:"answer_method"`
	HangupURL    string `json:"hangup_url,omitempty"`
	RingTimeout  int    `json:"ring_timeout,omitempty"`
}

type plivoCallResponse struct {
	APIID       string `json:"api_id"`
	Message     string `json:"message"`
	RequestUUID string `json:"request_uuid"`
}

// InitiateCall needs an answer URL, from the params or PLIVO_ANSWER_URL.
func (p *Plivo) InitiateCall(ctx context.Context, params InitiateCallParams) (InitiateCallResult, error) {
	if err := validateCall(params); err != nil {
		return InitiateCallResult{}, err
	}
	answerURL := params.WebhookURL
	if answerURL == "" {
		answerURL = p.answerURL
	}
	if answerURL == "" {
		return InitiateCallResult{}, errors.Join(ErrInvalidParams, errors.New("plivo calls require an answer url"))
	}
	from := params.From
	if from == "" {
		from = p.fromNumber
	}
	if from == "" {
		return InitiateCallResult{}, ErrMissingSender
	}

	endpoint := fmt.Sprintf("%s/v1/Account/%s/Call/", p.opts.baseURL, url.PathEscape(p.authID))
	call, err := jsonCall(ProviderPlivo, endpoint, plivoCallRequest{
		From:         from,
		To:           params.To,
		AnswerURL:    answerURL,
		AnswerMethod: "POST",
		HangupURL:    params.StatusCallbackURL,
		RingTimeout:  params.TimeoutSeconds,
	}, basicAuth(p.authID, p.authToken))
	if err != nil {
		return InitiateCallResult{}, err
	}
	var resp plivoCallResponse
	if err := p.opts.do(ctx, call, &resp); err != nil {
		return InitiateCallResult{}, err
	}
	return InitiateCallResult{
		CallID:   resp.RequestUUID,
		Status:   CallQueued,
		Provider: ProviderPlivo,
	}, nil
}

func mapPlivoStatus(s string) MessageStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued":
		return StatusQueued
	case "sent":
		return StatusSent
	case "delivered":
		return StatusDelivered
	case "undelivered":
		return StatusUndelivered
	case "failed", "rejected":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

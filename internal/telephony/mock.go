package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Mock is an in-memory adapter for development and tests. It accepts every webhook and
// records every outbound call instead of touching the network.
type Mock struct {
	mu      sync.Mutex
	msgSeq  int
	mmsSeq  int
	callSeq int
	records []MockRecord
	now     func() time.Time
}

// MockRecord is one outbound operation captured by Mock.
type MockRecord struct {
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	To        string    `json:"to"`
	From      string    `json:"from,omitempty"`
	Body      string    `json:"body,omitempty"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	At        time.Time `json:"at"`
}

const (
	MockOpSMS  = "sms"
	MockOpMMS  = "mms"
	MockOpCall = "call"
)

func NewMock(opts ...Option) *Mock {
	o := buildOptions("", opts)
	return &Mock{now: o.now}
}

func (m *Mock) Name() ProviderName { return ProviderMock }

func (m *Mock) VerifyWebhook(*WebhookContext) VerificationResult { return verified() }

type mockInbound struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Text      string `json:"text"`
}

// ParseInbound accepts {messageId?, from?, to?, body|text?}. Invalid JSON is acknowledged with
// 200 and no events.
func (m *Mock) ParseInbound(wc *WebhookContext) ParseResult {
	res := ParseResult{StatusCode: http.StatusOK, Body: "OK"}

	var in mockInbound
	if err := json.Unmarshal(wc.Body, &in); err != nil {
		return res
	}
	body := in.Body
	if body == "" {
		body = in.Text
	}
	id := in.MessageID
	if id == "" {
		id = fallbackMessageID(ProviderMock, wc)
	}
	res.Events = append(res.Events, InboundSMS{
		MessageID: id,
		From:      in.From,
		To:        in.To,
		Body:      body,
		Timestamp: wc.ReceivedAt.UnixMilli(),
	})
	return res
}

func (m *Mock) SendSMS(_ context.Context, p SendSMSParams) (SendResult, error) {
	if err := validateSMS(p); err != nil {
		return SendResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgSeq++
	id := fmt.Sprintf("mock-msg-%d", m.msgSeq)
	m.records = append(m.records, MockRecord{Op: MockOpSMS, ID: id, To: p.To, From: p.From, Body: p.Body, At: m.now()})
	return SendResult{MessageID: id, Status: StatusQueued, Provider: ProviderMock, Segments: intPtr(1)}, nil
}

func (m *Mock) SendMMS(_ context.Context, p SendMMSParams) (SendResult, error) {
	if err := validateMMS(p); err != nil {
		return SendResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mmsSeq++
	id := fmt.Sprintf("mock-mms-%d", m.mmsSeq)
	media := append([]string(nil), p.MediaURLs...)
	m.records = append(m.records, MockRecord{Op: MockOpMMS, ID: id, To: p.To, From: p.From, Body: p.Body, MediaURLs: media, At: m.now()})
	return SendResult{MessageID: id, Status: StatusQueued, Provider: ProviderMock}, nil
}

func (m *Mock) InitiateCall(_ context.Context, p InitiateCallParams) (InitiateCallResult, error) {
	if err := validateCall(p); err != nil {
		return InitiateCallResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callSeq++
	id := fmt.Sprintf("mock-call-%d", m.callSeq)
	m.records = append(m.records, MockRecord{Op: MockOpCall, ID: id, To: p.To, From: p.From, At: m.now()})
	return InitiateCallResult{CallID: id, Status: CallInitiated, Provider: ProviderMock}, nil
}

// Records returns a copy of every captured operation in call order.
func (m *Mock) Records() []MockRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Reset clears records and restarts every counter at 1.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgSeq, m.mmsSeq, m.callSeq = 0, 0, 0
	m.records = nil
}

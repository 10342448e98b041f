package telephony

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// EventKind tags the variants of Event.
type EventKind string

const (
	KindInboundSMS     EventKind = "inbound_sms"
	KindDeliveryStatus EventKind = "delivery_status"
	KindSMSError       EventKind = "sms_error"
)

// Event is a normalized provider event. The set of variants is closed:
// InboundSMS, DeliveryStatus and SMSError.
type Event interface {
	Kind() EventKind

	// UnixMilli is the event time in Unix epoch milliseconds.
	UnixMilli() int64

	sealed()
}

type InboundSMS struct {
	MessageID string   `json:"message_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`

	// Segments is the provider-reported segment count, when present.
	Segments  *int  `json:"segments,omitempty"`
	Timestamp int64 `json:"timestamp"`
}

type DeliveryStatus struct {
	MessageID    string        `json:"message_id"`
	Status       MessageStatus `json:"status"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Timestamp    int64         `json:"timestamp"`
}

type SMSError struct {
	MessageID    string `json:"message_id,omitempty"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Timestamp    int64  `json:"timestamp"`
}

func (InboundSMS) Kind() EventKind     { return KindInboundSMS }
func (DeliveryStatus) Kind() EventKind { return KindDeliveryStatus }
func (SMSError) Kind() EventKind       { return KindSMSError }

func (e InboundSMS) UnixMilli() int64     { return e.Timestamp }
func (e DeliveryStatus) UnixMilli() int64 { return e.Timestamp }
func (e SMSError) UnixMilli() int64       { return e.Timestamp }

func (InboundSMS) sealed()     {}
func (DeliveryStatus) sealed() {}
func (SMSError) sealed()       {}

// MessageIDOf returns the message id carried by ev, if any.
func MessageIDOf(ev Event) string {
	switch e := ev.(type) {
	case InboundSMS:
		return e.MessageID
	case DeliveryStatus:
		return e.MessageID
	case SMSError:
		return e.MessageID
	default:
		return ""
	}
}

// VerificationResult reports whether a webhook is authentic. Reason is diagnostic only and
// must not be echoed to the caller.
type VerificationResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func verified() VerificationResult { return VerificationResult{OK: true} }

func rejected(format string, args ...any) VerificationResult {
	return VerificationResult{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// ParseResult carries the normalized events plus the acknowledgement the ingress server
// returns to the provider. A zero StatusCode means 200.
type ParseResult struct {
	Events     []Event
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Status returns the acknowledgement status code, defaulting to 200.
func (r ParseResult) Status() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

// flexString decodes a JSON string or number into a string. Providers are inconsistent
// about quoting error codes and counters.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// parseCount parses a provider counter such as "2". Empty or invalid yields nil.
func parseCount(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// fallbackMessageID synthesizes a stable id for inbound records that lack one.
func fallbackMessageID(name ProviderName, wc *WebhookContext) string {
	return fmt.Sprintf("%s-in-%d", name, wc.ReceivedAt.UnixMilli())
}

// splitList splits a comma-separated field, trimming entries and dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

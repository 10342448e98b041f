package telephony

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Telnyx posts JSON envelopes: {"data":{"id","event_type","occurred_at","payload":{...}}}.
// Ref: https://developers.telnyx.com/docs/messaging/messages/receiving-webhooks

type telnyxEnvelope struct {
	Data struct {
		ID         string        `json:"id"`
		EventType  string        `json:"event_type"`
		OccurredAt string        `json:"occurred_at"`
		Payload    telnyxPayload `json:"payload"`
	} `json:"data"`
}

type telnyxPayload struct {
	ID   string `json:"id"`
	From struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"from"`
	To []struct {
		PhoneNumber string `json:"phone_number"`
		Status      string `json:"status"`
	} `json:"to"`
	Text  string `json:"text"`
	Parts int    `json:"parts"`
	Media []struct {
		URL string `json:"url"`
	} `json:"media"`
	Errors []struct {
		Code   flexString `json:"code"`
		Title  string     `json:"title"`
		Detail string     `json:"detail"`
	} `json:"errors"`
}

type telnyxShape int

const (
	telnyxShapeUnknown telnyxShape = iota
	telnyxShapeDeliveryStatus
	telnyxShapeInboundMessage
)

var telnyxDeliveryEvents = map[string]MessageStatus{
	"message.sent":      StatusSent,
	"message.delivered": StatusDelivered,
	"message.failed":    StatusFailed,
}

func isTelnyxDeliveryEvent(eventType string) bool {
	_, ok := telnyxDeliveryEvents[eventType]
	return ok
}

func isTelnyxInboundMessage(eventType string) bool {
	return eventType == "message.received"
}

func classifyTelnyx(eventType string) telnyxShape {
	switch {
	case isTelnyxDeliveryEvent(eventType):
		return telnyxShapeDeliveryStatus
	case isTelnyxInboundMessage(eventType):
		return telnyxShapeInboundMessage
	default:
		return telnyxShapeUnknown
	}
}

func parseTelnyxWebhook(wc *WebhookContext) ParseResult {
	var env telnyxEnvelope
	if err := json.Unmarshal(wc.Body, &env); err != nil {
		return ParseResult{StatusCode: http.StatusBadRequest}
	}

	res := ParseResult{StatusCode: http.StatusOK}
	ts := telnyxTimestamp(env.Data.OccurredAt, wc.ReceivedAt)
	pl := env.Data.Payload

	messageID := pl.ID
	if messageID == "" {
		messageID = env.Data.ID
	}

	switch classifyTelnyx(env.Data.EventType) {
	case telnyxShapeDeliveryStatus:
		ev := DeliveryStatus{
			MessageID: messageID,
			Status:    telnyxDeliveryEvents[env.Data.EventType],
			Timestamp: ts,
		}
		if len(pl.Errors) > 0 {
			ev.ErrorCode = string(pl.Errors[0].Code)
			ev.ErrorMessage = pl.Errors[0].Title
			if ev.ErrorMessage == "" {
				ev.ErrorMessage = pl.Errors[0].Detail
			}
		}
		res.Events = append(res.Events, ev)
	case telnyxShapeInboundMessage:
		if messageID == "" {
			messageID = fallbackMessageID(ProviderTelnyx, wc)
		}
		ev := InboundSMS{
			MessageID: messageID,
			From:      strings.TrimSpace(pl.From.PhoneNumber),
			Body:      pl.Text,
			Timestamp: ts,
		}
		if len(pl.To) > 0 {
			ev.To = strings.TrimSpace(pl.To[0].PhoneNumber)
		}
		for _, m := range pl.Media {
			if m.URL != "" {
				ev.MediaURLs = append(ev.MediaURLs, m.URL)
			}
		}
		if pl.Parts > 0 {
			ev.Segments = intPtr(pl.Parts)
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

// telnyxTimestamp prefers the provider's occurred_at over the receive time.
func telnyxTimestamp(occurredAt string, received time.Time) int64 {
	if occurredAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, occurredAt); err == nil {
			return t.UnixMilli()
		}
	}
	return received.UnixMilli()
}

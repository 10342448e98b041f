package telephony

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Twilio posts application/x-www-form-urlencoded records.
// Ref: https://www.twilio.com/docs/messaging/guides/webhook-request

type twilioShape int

const (
	twilioShapeUnknown twilioShape = iota
	twilioShapeStatusCallback
	twilioShapeInboundMessage
	twilioShapeError
)

// isTwilioStatusCallback: a status field and no Body parameter at all.
func isTwilioStatusCallback(v url.Values) bool {
	return (v.Has("MessageStatus") || v.Has("SmsStatus")) && !v.Has("Body")
}

func isTwilioInboundMessage(v url.Values) bool {
	return twilioMessageSID(v) != ""
}

func isTwilioError(v url.Values) bool {
	return v.Get("ErrorCode") != ""
}

func classifyTwilio(v url.Values) twilioShape {
	switch {
	case isTwilioStatusCallback(v):
		return twilioShapeStatusCallback
	case isTwilioInboundMessage(v):
		return twilioShapeInboundMessage
	case isTwilioError(v):
		return twilioShapeError
	default:
		return twilioShapeUnknown
	}
}

func twilioMessageSID(v url.Values) string {
	if sid := v.Get("MessageSid"); sid != "" {
		return sid
	}
	return v.Get("SmsSid")
}

func parseTwilioWebhook(wc *WebhookContext) ParseResult {
	v, err := url.ParseQuery(string(wc.Body))
	if err != nil {
		return xmlAck(http.StatusBadRequest)
	}

	res := xmlAck(http.StatusOK)
	ts := wc.ReceivedAt.UnixMilli()

	switch classifyTwilio(v) {
	case twilioShapeStatusCallback:
		status := v.Get("MessageStatus")
		if status == "" {
			status = v.Get("SmsStatus")
		}
		res.Events = append(res.Events, DeliveryStatus{
			MessageID:    twilioMessageSID(v),
			Status:       mapTwilioStatus(status),
			ErrorCode:    v.Get("ErrorCode"),
			ErrorMessage: v.Get("ErrorMessage"),
			Timestamp:    ts,
		})
	case twilioShapeInboundMessage:
		res.Events = append(res.Events, InboundSMS{
			MessageID: twilioMessageSID(v),
			From:      strings.TrimSpace(v.Get("From")),
			To:        strings.TrimSpace(v.Get("To")),
			Body:      v.Get("Body"),
			MediaURLs: twilioMediaURLs(v),
			Segments:  parseCount(v.Get("NumSegments")),
			Timestamp: ts,
		})
	case twilioShapeError:
		res.Events = append(res.Events, SMSError{
			MessageID:    twilioMessageSID(v),
			ErrorCode:    v.Get("ErrorCode"),
			ErrorMessage: v.Get("ErrorMessage"),
			Timestamp:    ts,
		})
	}
	return res
}

// twilioMediaURLs collects MediaUrl0..MediaUrl{NumMedia-1}.
func twilioMediaURLs(v url.Values) []string {
	n, err := strconv.Atoi(v.Get("NumMedia"))
	if err != nil || n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if u := v.Get("MediaUrl" + strconv.Itoa(i)); u != "" {
			out = append(out, u)
		}
	}
	return out
}

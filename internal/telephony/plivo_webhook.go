package telephony

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Plivo posts either JSON or form-encoded records depending on the application settings.
// Ref: https://www.plivo.com/docs/messaging/concepts/callbacks

// plivoRecord is a flattened view of one callback, keyed by Plivo's parameter names.
type plivoRecord map[string]string

func (r plivoRecord) get(key string) string { return strings.TrimSpace(r[key]) }

type plivoShape int

const (
	plivoShapeUnknown plivoShape = iota
	plivoShapeDeliveryReport
	plivoShapeInboundMessage
)

// isPlivoDeliveryReport: Type=dlr, or a message id with no text.
func isPlivoDeliveryReport(r plivoRecord) bool {
	if strings.EqualFold(r.get("Type"), "dlr") {
		return true
	}
	return r["Text"] == "" && r.get("MessageUUID") != ""
}

func isPlivoInboundMessage(r plivoRecord) bool {
	return r.get("MessageUUID") != "" || r["Text"] != ""
}

func classifyPlivo(r plivoRecord) plivoShape {
	switch {
	case isPlivoDeliveryReport(r):
		return plivoShapeDeliveryReport
	case isPlivoInboundMessage(r):
		return plivoShapeInboundMessage
	default:
		return plivoShapeUnknown
	}
}

// decodePlivoRecord branches on Content-Type. JSON scalars are stringified.
func decodePlivoRecord(wc *WebhookContext) (plivoRecord, error) {
	if wc.IsJSON() {
		var raw map[string]any
		if err := json.Unmarshal(wc.Body, &raw); err != nil {
			return nil, err
		}
		rec := make(plivoRecord, len(raw))
		for k, v := range raw {
			switch tv := v.(type) {
			case nil:
			case string:
				rec[k] = tv
			case json.Number:
				rec[k] = tv.String()
			case float64:
				rec[k] = formatJSONNumber(tv)
			case bool:
				rec[k] = fmt.Sprint(tv)
			case []any:
				parts := make([]string, 0, len(tv))
				for _, item := range tv {
					parts = append(parts, fmt.Sprint(item))
				}
				rec[k] = strings.Join(parts, ",")
			}
		}
		return rec, nil
	}

	v, err := url.ParseQuery(string(wc.Body))
	if err != nil {
		return nil, err
	}
	rec := make(plivoRecord, len(v))
	for k := range v {
		rec[k] = v.Get(k)
	}
	return rec, nil
}

func formatJSONNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(f)
}

// parsePlivoWebhook always answers with the empty XML ack, whatever the record kind.
func parsePlivoWebhook(wc *WebhookContext) ParseResult {
	rec, err := decodePlivoRecord(wc)
	if err != nil {
		return xmlAck(http.StatusBadRequest)
	}

	res := xmlAck(http.StatusOK)
	ts := wc.ReceivedAt.UnixMilli()

	switch classifyPlivo(rec) {
	case plivoShapeDeliveryReport:
		res.Events = append(res.Events, DeliveryStatus{
			MessageID:    rec.get("MessageUUID"),
			Status:       mapPlivoStatus(rec.get("Status")),
			ErrorCode:    plivoErrorCode(rec.get("ErrorCode")),
			ErrorMessage: rec.get("ErrorMessage"),
			Timestamp:    ts,
		})
	case plivoShapeInboundMessage:
		id := rec.get("MessageUUID")
		if id == "" {
			id = fallbackMessageID(ProviderPlivo, wc)
		}
		res.Events = append(res.Events, InboundSMS{
			MessageID: id,
			From:      rec.get("From"),
			To:        rec.get("To"),
			Body:      rec["Text"],
			MediaURLs: splitList(rec["MediaUrls"]),
			Segments:  parseCount(rec.get("Units")),
			Timestamp: ts,
		})
	}
	return res
}

// Plivo reports ErrorCode "000" for success.
func plivoErrorCode(code string) string {
	if strings.Trim(code, "0") == "" {
		return ""
	}
	return code
}

package main

import (
	"context"

	"telephony-gateway/internal/ingress"
	"telephony-gateway/internal/telephony"
	"telephony-gateway/pkg/logger"
)

// logEvents is the default event handler: every normalized event is logged, bodies excluded.
func logEvents() ingress.Handler {
	return func(ctx context.Context, ev telephony.Event) error {
		log := logger.From(ctx)
		attrs := []any{
			"kind", string(ev.Kind()),
			"message_id", telephony.MessageIDOf(ev),
			"timestamp_ms", ev.UnixMilli(),
		}
		switch e := ev.(type) {
		case telephony.InboundSMS:
			attrs = append(attrs, "from", e.From, "to", e.To, "body_len", len(e.Body), "media", len(e.MediaURLs))
		case telephony.DeliveryStatus:
			attrs = append(attrs, "status", string(e.Status))
			if e.ErrorCode != "" {
				attrs = append(attrs, "error_code", e.ErrorCode)
			}
		case telephony.SMSError:
			attrs = append(attrs, "error_code", e.ErrorCode, "error_message", e.ErrorMessage)
			log.Warn("telephony event", attrs...)
			return nil
		}
		log.Info("telephony event", attrs...)
		return nil
	}
}

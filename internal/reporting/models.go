package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ActivitySummaryRequest requests aggregated gateway activity from the audit trail.
type ActivitySummaryRequest struct {
	Range    TimeRange `json:"range"`
	Provider string    `json:"provider,omitempty"`
}

// ActivitySummary counts audited operator actions and webhook rejections in a range.
type ActivitySummary struct {
	Range    TimeRange `json:"range"`
	Provider string    `json:"provider,omitempty"`

	MessagesSent   int `json:"messages_sent"`
	MessagesFailed int `json:"messages_failed"`
	SegmentsSent   int `json:"segments_sent"`

	CallsInitiated int `json:"calls_initiated"`
	CallsFailed    int `json:"calls_failed"`

	WebhooksRejected int `json:"webhooks_rejected"`

	// SendFailureRate is MessagesFailed over all message attempts, 0 when there were none.
	SendFailureRate float64 `json:"send_failure_rate"`

	ByProvider map[string]int `json:"by_provider"`
}

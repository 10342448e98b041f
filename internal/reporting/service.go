// Package reporting aggregates the audit trail into operator-facing summaries.
package reporting

import (
	"context"
	"errors"
	"time"

	"telephony-gateway/internal/audit"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository reads immutable audit events. Implemented by audit.MemoryRepo and audit.PostgresRepo.
type Repository interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]audit.Event, error)
}

// DefaultWindow is the range used when a request leaves both bounds empty.
const DefaultWindow = 24 * time.Hour

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// ResolveRange fills empty bounds: To defaults to now, From to To minus DefaultWindow.
func (s *Service) ResolveRange(r TimeRange) (TimeRange, error) {
	if r.To.IsZero() {
		r.To = s.clock().UTC()
	}
	if r.From.IsZero() {
		r.From = r.To.Add(-DefaultWindow)
	}
	if !r.To.After(r.From) {
		return TimeRange{}, ErrInvalidRequest
	}
	return r, nil
}

func (s *Service) ActivitySummary(ctx context.Context, req ActivitySummaryRequest) (ActivitySummary, error) {
	rng, err := s.ResolveRange(req.Range)
	if err != nil {
		return ActivitySummary{}, err
	}
	if s.repo == nil {
		return ActivitySummary{}, errors.New("reporting: repository not configured")
	}

	events, err := s.repo.ListEvents(ctx, rng.From, rng.To)
	if err != nil {
		return ActivitySummary{}, err
	}

	out := ActivitySummary{Range: rng, Provider: req.Provider, ByProvider: map[string]int{}}
	for _, e := range events {
		if req.Provider != "" && e.Provider != req.Provider {
			continue
		}
		out.ByProvider[e.Provider]++

		switch e.Type {
		case audit.EventTypeMessageSent:
			out.MessagesSent++
			out.SegmentsSent += max(e.Segments, 1)
		case audit.EventTypeMessageFailed:
			out.MessagesFailed++
		case audit.EventTypeCallInitiated:
			out.CallsInitiated++
		case audit.EventTypeCallFailed:
			out.CallsFailed++
		case audit.EventTypeWebhookRejected:
			out.WebhooksRejected++
		}
	}
	if attempts := out.MessagesSent + out.MessagesFailed; attempts > 0 {
		out.SendFailureRate = float64(out.MessagesFailed) / float64(attempts)
	}
	return out, nil
}

package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records operator sends, calls and webhook rejections.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock overrides the timestamp source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.clock = now
	}
	return s
}

var (
	ErrInvalidEvent = errors.New("audit: invalid event")
	ErrNoRepository = errors.New("audit: repository not configured")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return ErrNoRepository
	}
	if e.Type == "" || e.Provider == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogMessage records one outbound message (or segment) attempt. sendErr selects the failure type.
func (s *Service) LogMessage(ctx context.Context, actor Actor, provider, destination, messageID string, segments int, sendErr error) error {
	e := Event{
		Type:        EventTypeMessageSent,
		Provider:    provider,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		RequestID:   actor.RequestID,
		MessageID:   messageID,
		Destination: destination,
		Segments:    segments,
	}
	if sendErr != nil {
		e.Type = EventTypeMessageFailed
		e.Reason = truncateReason(sendErr.Error())
	}
	return s.Append(ctx, e)
}

func (s *Service) LogCall(ctx context.Context, actor Actor, provider, destination, callID string, callErr error) error {
	e := Event{
		Type:        EventTypeCallInitiated,
		Provider:    provider,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		RequestID:   actor.RequestID,
		CallID:      callID,
		Destination: destination,
	}
	if callErr != nil {
		e.Type = EventTypeCallFailed
		e.Reason = truncateReason(callErr.Error())
	}
	return s.Append(ctx, e)
}

// LogWebhookRejected records a webhook that failed signature verification.
func (s *Service) LogWebhookRejected(ctx context.Context, provider, reason, ip, requestID string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeWebhookRejected,
		Provider:  provider,
		IPAddress: ip,
		RequestID: requestID,
		Reason:    truncateReason(reason),
	})
}

const maxReasonLen = 512

func truncateReason(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxReasonLen {
		return s
	}
	return s[:maxReasonLen]
}

// Package outbound sends application messages and calls through the active provider.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"telephony-gateway/internal/audit"
	"telephony-gateway/internal/config"
	"telephony-gateway/internal/sms"
	"telephony-gateway/internal/telephony"
)

var (
	ErrInvalidRequest   = errors.New("outbound: invalid request")
	ErrCallsUnsupported = errors.New("outbound: provider does not support calls")
	ErrConcurrencyLimit = errors.New("outbound: send concurrency limit reached")
)

type Service struct {
	provider telephony.Provider
	chunking sms.ChunkOptions
	limiter  Limiter
	audit    *audit.Service
	log      *slog.Logger
}

type Option func(*Service)

func WithChunkOptions(o sms.ChunkOptions) Option {
	return func(s *Service) { s.chunking = o }
}

func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithAudit(a *audit.Service) Option {
	return func(s *Service) { s.audit = a }
}

func New(provider telephony.Provider, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		provider: provider,
		chunking: sms.DefaultChunkOptions(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkOptionsFrom converts configured chunking defaults.
func ChunkOptionsFrom(cfg config.ChunkingConfig) (sms.ChunkOptions, error) {
	mode, err := sms.ParseMode(cfg.Mode)
	if err != nil {
		return sms.ChunkOptions{}, err
	}
	out := sms.ChunkOptions{Mode: mode, MaxLength: cfg.MaxLength, SegmentNumbering: true}
	if cfg.SegmentNumbering != nil {
		out.SegmentNumbering = *cfg.SegmentNumbering
	}
	if out.MaxLength <= 0 {
		out.MaxLength = sms.DefaultMaxLength
	}
	return out, nil
}

func (s *Service) Provider() telephony.ProviderName { return s.provider.Name() }

// ChunkOptions returns the defaults used when a request carries no override.
func (s *Service) ChunkOptions() sms.ChunkOptions { return s.chunking }

type MessageRequest struct {
	To                string   `json:"to"`
	From              string   `json:"from,omitempty"`
	Body              string   `json:"body"`
	MediaURLs         []string `json:"media_urls,omitempty"`
	StatusCallbackURL string   `json:"status_callback_url,omitempty"`

	// Chunking overrides the service defaults for this message.
	Chunking *sms.ChunkOptions `json:"chunking,omitempty"`
}

type MessageResult struct {
	Provider telephony.ProviderName `json:"provider"`
	Encoding sms.Encoding           `json:"encoding,omitempty"`
	Results  []telephony.SendResult `json:"results"`
}

// SegmentError reports a send that failed part way through a segmented message.
type SegmentError struct {
	Index int
	Total int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("outbound: segment %d/%d: %v", e.Index+1, e.Total, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// SendMessage sends a text message as ordered SMS segments, or a media message as a single
// MMS. On failure the results of the segments already sent are returned with the error.
func (s *Service) SendMessage(ctx context.Context, actor audit.Actor, req MessageRequest) (MessageResult, error) {
	res := MessageResult{Provider: s.provider.Name(), Results: []telephony.SendResult{}}

	if err := validateMessage(req); err != nil {
		return res, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return res, err
	}
	defer release()

	base := telephony.SendSMSParams{
		To:                req.To,
		From:              req.From,
		StatusCallbackURL: req.StatusCallbackURL,
	}

	if len(req.MediaURLs) > 0 {
		base.Body = req.Body
		r, err := s.provider.SendMMS(ctx, telephony.SendMMSParams{SendSMSParams: base, MediaURLs: req.MediaURLs})
		s.auditMessage(ctx, actor, req.To, r, err)
		if err != nil {
			return res, err
		}
		res.Results = append(res.Results, r)
		return res, nil
	}

	opts := s.chunking
	if req.Chunking != nil {
		opts = *req.Chunking
	}
	segments, enc := sms.ChunkEncoded(req.Body, opts)
	res.Encoding = enc

	for i, seg := range segments {
		p := base
		p.Body = seg
		r, err := s.provider.SendSMS(ctx, p)
		s.auditMessage(ctx, actor, req.To, r, err)
		if err != nil {
			s.log.Warn("segment send failed",
				"provider", string(s.provider.Name()),
				"segment", i+1,
				"total", len(segments),
				"error", err.Error(),
			)
			return res, &SegmentError{Index: i, Total: len(segments), Err: err}
		}
		res.Results = append(res.Results, r)
	}

	s.log.Info("message sent",
		"provider", string(s.provider.Name()),
		"segments", len(res.Results),
		"encoding", string(res.Encoding),
	)
	return res, nil
}

// InitiateCall places an outbound call when the provider supports it.
func (s *Service) InitiateCall(ctx context.Context, actor audit.Actor, p telephony.InitiateCallParams) (telephony.InitiateCallResult, error) {
	caller, ok := s.provider.(telephony.CallInitiator)
	if !ok {
		return telephony.InitiateCallResult{}, ErrCallsUnsupported
	}
	if strings.TrimSpace(p.To) == "" {
		return telephony.InitiateCallResult{}, fmt.Errorf("%w: to is required", ErrInvalidRequest)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return telephony.InitiateCallResult{}, err
	}
	defer release()

	r, err := caller.InitiateCall(ctx, p)
	if s.audit != nil {
		if aerr := s.audit.LogCall(ctx, actor, string(s.provider.Name()), p.To, r.CallID, err); aerr != nil {
			s.log.Warn("audit append failed", "error", aerr.Error())
		}
	}
	if err != nil {
		return r, err
	}
	s.log.Info("call initiated", "provider", string(s.provider.Name()), "call_id", r.CallID)
	return r, nil
}

// Preview is the chunking outcome for a text without sending it.
type Preview struct {
	Encoding sms.Encoding     `json:"encoding"`
	Options  sms.ChunkOptions `json:"options"`
	Count    int              `json:"count"`
	Segments []string         `json:"segments"`
}

func (s *Service) Preview(text string, override *sms.ChunkOptions) Preview {
	opts := s.chunking
	if override != nil {
		opts = *override
	}
	return PreviewText(text, opts)
}

func PreviewText(text string, opts sms.ChunkOptions) Preview {
	segments, enc := sms.ChunkEncoded(text, opts)
	return Preview{
		Encoding: enc,
		Options:  opts,
		Count:    len(segments),
		Segments: segments,
	}
}

func validateMessage(req MessageRequest) error {
	var problems []string
	if strings.TrimSpace(req.To) == "" {
		problems = append(problems, "to is required")
	}
	if strings.TrimSpace(req.Body) == "" && len(req.MediaURLs) == 0 {
		problems = append(problems, "body or media_urls is required")
	}
	if req.Chunking != nil {
		if _, err := sms.ParseMode(string(req.Chunking.Mode)); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.limiter == nil {
		return func() {}, nil
	}
	key := SlotKey(s.provider.Name())
	ok, err := s.limiter.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("outbound: acquire send slot: %w", err)
	}
	if !ok {
		return nil, ErrConcurrencyLimit
	}
	return func() {
		// Release must run even when the request context is already cancelled.
		if err := s.limiter.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("release send slot failed", "key", key, "error", err.Error())
		}
	}, nil
}

func (s *Service) auditMessage(ctx context.Context, actor audit.Actor, to string, r telephony.SendResult, sendErr error) {
	if s.audit == nil {
		return
	}
	segments := 1
	if r.Segments != nil {
		segments = *r.Segments
	}
	if err := s.audit.LogMessage(ctx, actor, string(s.provider.Name()), to, r.MessageID, segments, sendErr); err != nil {
		s.log.Warn("audit append failed", "error", err.Error())
	}
}

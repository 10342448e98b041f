// Package ingress serves provider webhooks: read, verify, parse, dispatch, acknowledge.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"telephony-gateway/internal/config"
	"telephony-gateway/internal/telephony"
	"telephony-gateway/pkg/logger"
)

const (
	DefaultMaxBodyBytes = 512 * 1024
	DefaultReadTimeout  = 30 * time.Second

	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// Handler receives each normalized event individually. Errors and panics are logged and
// never affect sibling events or the provider acknowledgement.
type Handler func(ctx context.Context, ev telephony.Event) error

// Rejection describes a webhook that failed verification.
type Rejection struct {
	Provider   telephony.ProviderName
	Reason     string
	Path       string
	RemoteAddr string
	RequestID  string
}

// RejectionHook observes verification failures (e.g. to write an audit record).
type RejectionHook func(ctx context.Context, r Rejection)

type Option func(*Server)

func WithRejectionHook(h RejectionHook) Option {
	return func(s *Server) { s.onReject = h }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server is the webhook listener. Routes are fixed: GET /health plus POST under the webhook
// and status path prefixes.
type Server struct {
	cfg      config.ServerConfig
	provider telephony.Provider
	handle   Handler
	onReject RejectionHook
	log      *slog.Logger
	now      func() time.Time

	engine *gin.Engine
	srv    *http.Server
}

func New(cfg config.ServerConfig, provider telephony.Provider, handle Handler, log *slog.Logger, opts ...Option) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	if handle == nil {
		handle = func(context.Context, telephony.Event) error { return nil }
	}

	s := &Server{
		cfg:      cfg,
		provider: provider,
		handle:   handle,
		log:      log.With("component", "ingress", "provider", string(provider.Name())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(recovery(s.log))
	r.Use(logger.Middleware(s.log))

	r.GET("/health", s.health)
	r.NoRoute(s.route)
	s.engine = r

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Addr() string { return s.srv.Addr }

// ListenAndServe does not log; the caller announces the listener.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Serve accepts connections on l with the same timeouts as ListenAndServe.
func (s *Server) Serve(l net.Listener) error {
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.provider.Name()})
}

// route handles everything except /health: webhook prefixes accept POST only.
func (s *Server) route(c *gin.Context) {
	path := c.Request.URL.Path
	if !underPrefix(path, s.cfg.WebhookPath) && !underPrefix(path, s.cfg.StatusPath) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}
	s.webhook(c)
}

// underPrefix matches the prefix itself or any sub-path, never a sibling such as
// "/telephony/webhooks" for "/telephony/webhook".
func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (s *Server) webhook(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			log.Warn("webhook body too large", "limit_bytes", tooLarge.Limit)
			c.Header("Connection", "close")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		case isTimeout(err):
			log.Warn("webhook body read timed out", "timeout", s.cfg.ReadTimeout.String())
			// Drop the connection without a response.
			panic(http.ErrAbortHandler)
		default:
			log.Warn("webhook body read failed", "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		}
		return
	}

	wc := telephony.NewWebhookContext(c.Request, body, s.now())

	if v := s.provider.VerifyWebhook(wc); !v.OK {
		log.Warn("webhook verification failed", "reason", v.Reason, "remote_addr", wc.RemoteAddr)
		if s.onReject != nil {
			s.onReject(ctx, Rejection{
				Provider:   s.provider.Name(),
				Reason:     v.Reason,
				Path:       c.Request.URL.Path,
				RemoteAddr: wc.RemoteAddr,
				RequestID:  logger.RequestID(c),
			})
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	res := s.provider.ParseInbound(wc)
	for i, ev := range res.Events {
		s.dispatch(ctx, log, i, ev)
	}

	contentType := "text/plain; charset=utf-8"
	for k, v := range res.Headers {
		if strings.EqualFold(k, "Content-Type") {
			contentType = v
			continue
		}
		c.Header(k, v)
	}
	log.Debug("webhook processed", "events", len(res.Events), "status", res.Status())
	c.Data(res.Status(), contentType, []byte(res.Body))
}

// dispatch isolates one event: handler errors and panics are logged and swallowed.
func (s *Server) dispatch(ctx context.Context, log *slog.Logger, index int, ev telephony.Event) {
	attrs := []any{"index", index, "kind", string(ev.Kind()), "message_id", telephony.MessageIDOf(ev)}
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", append(attrs, "panic", fmt.Sprint(r))...)
		}
	}()
	if err := s.handle(ctx, ev); err != nil {
		log.Error("event handler failed", append(attrs, "err", err)...)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

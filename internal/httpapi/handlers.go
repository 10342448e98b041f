package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telephony-gateway/internal/audit"
	"telephony-gateway/internal/auth"
	"telephony-gateway/internal/outbound"
	"telephony-gateway/internal/reporting"
	"telephony-gateway/internal/sms"
	"telephony-gateway/internal/telephony"
	"telephony-gateway/pkg/logger"
)

// Handlers groups operator API handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Outbound  *outbound.Service
	Reporting *reporting.Service
	Started   time.Time
}

// Health reports liveness and the active provider.
func (h Handlers) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.Outbound != nil {
		body["provider"] = h.Outbound.Provider()
	}
	if !h.Started.IsZero() {
		body["uptime_seconds"] = int64(time.Since(h.Started).Seconds())
	}
	c.JSON(http.StatusOK, body)
}

// SendMessage segments and sends a text message, or sends one MMS when media is attached.
// RBAC: operator or admin.
func (h Handlers) SendMessage(c *gin.Context) {
	if h.Outbound == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "outbound not configured"})
		return
	}
	var req outbound.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Outbound.SendMessage(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		status := statusFor(err)
		logger.FromGin(c).Warn("send failed", "status", status, "error", err.Error())
		c.AbortWithStatusJSON(status, gin.H{
			"error":    err.Error(),
			"provider": res.Provider,
			"results":  res.Results,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

// InitiateCall places an outbound call. RBAC: admin.
func (h Handlers) InitiateCall(c *gin.Context) {
	if h.Outbound == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "outbound not configured"})
		return
	}
	var req telephony.InitiateCallParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Outbound.InitiateCall(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		status := statusFor(err)
		logger.FromGin(c).Warn("call failed", "status", status, "error", err.Error())
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

type segmentsRequest struct {
	Text             string `json:"text"`
	Mode             string `json:"mode,omitempty"`
	MaxLength        *int   `json:"max_length,omitempty"`
	SegmentNumbering *bool  `json:"segment_numbering,omitempty"`
}

// Segments previews chunking without sending. RBAC: any operator role.
func (h Handlers) Segments(c *gin.Context) {
	var req segmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	opts := sms.DefaultChunkOptions()
	if h.Outbound != nil {
		opts = h.Outbound.ChunkOptions()
	}
	if req.Mode != "" {
		mode, err := sms.ParseMode(req.Mode)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts.Mode = mode
	}
	if req.MaxLength != nil {
		opts.MaxLength = *req.MaxLength
	}
	if req.SegmentNumbering != nil {
		opts.SegmentNumbering = *req.SegmentNumbering
	}

	c.JSON(http.StatusOK, outbound.PreviewText(req.Text, opts))
}

// Activity summarizes audited activity. Query: from, to (RFC 3339), provider.
// RBAC: admin or viewer.
func (h Handlers) Activity(c *gin.Context) {
	if h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "reporting not configured"})
		return
	}
	var rng reporting.TimeRange
	for _, q := range []struct {
		name string
		dst  *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": q.name + " must be RFC 3339"})
			return
		}
		*q.dst = ts
	}

	out, err := h.Reporting.ActivitySummary(c.Request.Context(), reporting.ActivitySummaryRequest{
		Range:    rng,
		Provider: c.Query("provider"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		logger.FromGin(c).Error("activity summary failed", "error", err.Error())
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "activity summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func actorFrom(c *gin.Context) audit.Actor {
	id, _ := auth.OperatorID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{
		ID:        id,
		Role:      role,
		IP:        c.ClientIP(),
		RequestID: logger.RequestID(c),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, outbound.ErrInvalidRequest),
		errors.Is(err, telephony.ErrInvalidParams),
		errors.Is(err, telephony.ErrMissingSender):
		return http.StatusBadRequest
	case errors.Is(err, outbound.ErrConcurrencyLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, outbound.ErrCallsUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

package main

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"telephony-gateway/internal/auth"
	"telephony-gateway/internal/httpapi"
	"telephony-gateway/internal/outbound"
	"telephony-gateway/internal/rbac"
	"telephony-gateway/internal/reporting"
	"telephony-gateway/pkg/logger"
)

func operatorEngine(log *slog.Logger, out *outbound.Service, rep *reporting.Service, m *auth.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerOperatorRoutes(r, httpapi.Handlers{Outbound: out, Reporting: rep, Started: time.Now()}, auth.RequireOperatorToken(m, nil))
	return r
}

// registerOperatorRoutes wires operator routes to handlers.
// Keep this file free of business logic.
func registerOperatorRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.POST("/messages", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleAdmin), h.SendMessage)
		v1.POST("/calls", rbac.RequireAnyRole(rbac.RoleAdmin), h.InitiateCall)
		v1.POST("/segments", rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleAdmin, rbac.RoleViewer), h.Segments)
		v1.GET("/activity", rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleViewer), h.Activity)
	}
}

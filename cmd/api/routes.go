package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/auth"
	"expertassist/internal/calls"
	"expertassist/internal/config"
	"expertassist/internal/experts"
	"expertassist/internal/httpapi"
	"expertassist/internal/reporting"
	"expertassist/internal/telephony"
	"expertassist/internal/users"
	"expertassist/pkg/logger"
	"expertassist/pkg/metrics"
	"expertassist/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	db      *sql.DB
	rdb     *redis.Client

	auth    *auth.Manager
	users   *users.Service
	experts *experts.Service
	calls   *calls.Service
	reports *reporting.Service
	audit   *audit.Service
	gateway telephony.Gateway
	record  telephony.RecordingStore
}

// newRouter wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromGin(c).Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
	}))
	r.Use(logger.Middleware(d.log))
	r.Use(d.metrics.Middleware())
	r.Use(cors.New(corsConfig(d.cfg.App.CORSAllowedOrigins)))

	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := utils.HealthCheck(ctx, d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	// Provider webhooks (public, optionally signature-checked).
	wh := telephony.WebhookHandler{
		Recordings: d.record,
		Observer:   d.metrics,
	}
	if d.cfg.Twilio.ValidateWebhooks {
		wh.Verifier = telephony.NewSignatureVerifier(d.cfg.Twilio.AuthToken, d.cfg.App.PublicBaseURL)
	}
	wh.Register(r)

	h := httpapi.Handlers{
		Auth:     d.auth,
		Users:    d.users,
		Experts:  d.experts,
		Calls:    d.calls,
		Reports:  d.reports,
		Provider: d.gateway,
		Audit:    d.audit,
		Twilio:   d.cfg.Twilio,
	}
	h.Mount(r.Group("/api"), auth.RequireUser(d.auth, d.users))
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", "X-Request-Id")
	c.ExposeHeaders = []string{"X-Request-Id"}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

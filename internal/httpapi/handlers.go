package httpapi

import (
	"context"
	"net/http"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/auth"
	"expertassist/internal/calls"
	"expertassist/internal/config"
	"expertassist/internal/experts"
	"expertassist/internal/reporting"
	"expertassist/internal/telephony"
	"expertassist/internal/users"

	"github.com/gin-gonic/gin"
)

// ProviderStatusFetcher reads the provider's live view of a placed call.
type ProviderStatusFetcher interface {
	FetchStatus(ctx context.Context, sid string) (telephony.ProviderStatus, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Users    *users.Service
	Experts  *experts.Service
	Calls    *calls.Service
	Reports  *reporting.Service
	Provider ProviderStatusFetcher
	Audit    *audit.Service
	Twilio   config.TwilioConfig

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Mount registers every /api route on api. requireUser guards everything
// except registration, login and refresh.
func (h Handlers) Mount(api *gin.RouterGroup, requireUser gin.HandlerFunc) {
	RegisterValidators()

	a := api.Group("/auth")
	a.POST("/register", h.Register)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.GET("/me", requireUser, h.Me)

	e := api.Group("/experts", requireUser)
	e.POST("", h.CreateExpert)
	e.GET("", h.ListExperts)
	e.GET("/:expertId", h.GetExpert)
	e.PUT("/:expertId", h.UpdateExpert)
	e.DELETE("/:expertId", h.DeleteExpert)

	c := api.Group("/calls", requireUser)
	c.POST("/initiate", h.InitiateCall)
	c.GET("", h.ListCalls)
	c.GET("/:callId", h.GetCall)
	c.GET("/:callId/transcript", h.GetTranscript)
	c.GET("/:callId/recording", h.GetRecording)
	c.GET("/:callId/provider-status", h.GetProviderStatus)
	c.POST("/:callId/end", h.EndCall)
	c.POST("/:callId/retry", h.RetryCall)

	api.GET("/dashboard", requireUser, h.Dashboard)
	api.GET("/config/demo-status", h.DemoStatus)
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// currentUser returns the authenticated user id or aborts with 401.
func currentUser(c *gin.Context) (string, bool) {
	id, err := auth.UserID(c.Request.Context())
	if err != nil || id == "" {
		fail(c, http.StatusUnauthorized, "Authentication failed. No token provided.")
		return "", false
	}
	return id, true
}

func (h Handlers) Dashboard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	d, err := h.Reports.Dashboard(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, d)
}

// DemoStatus reports whether calls are simulated. It never exposes secrets.
func (h Handlers) DemoStatus(c *gin.Context) {
	ok200(c, telephony.DescribeConfig(h.Twilio))
}

func ok200(c *gin.Context, data any) { ok(c, http.StatusOK, data) }

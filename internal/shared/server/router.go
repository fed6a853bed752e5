package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/account"
	"keyword-backend/internal/analyses"
	googleauth "keyword-backend/internal/auth"
	"keyword-backend/internal/services/health"
	"keyword-backend/internal/shared/config"
	"keyword-backend/internal/shared/metrics"
	"keyword-backend/internal/shared/server/middleware"
	"keyword-backend/internal/shared/server/respond"
	"keyword-backend/internal/usage"
	"keyword-backend/internal/users"
	"keyword-backend/internal/websites"
)

// RouterDeps carries the handlers wired by bootstrap.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	AccountHandler  *account.Handler
	AnalysisHandler *analyses.Handler
	WebsiteHandler  *websites.Handler
	UsageHandler    *usage.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			respond.JSON(c, http.StatusOK, deps.Health.Status())
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	} else {
		registerMeRoutes(api)
	}
	if deps.WebsiteHandler != nil {
		deps.WebsiteHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/authgate/internal/app"
	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/handlers"
	"github.com/charlesng35/authgate/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(engine *iauth.Engine, sessions *iauth.SessionService, cfg *app.Config) (*gin.Engine, error) {
	if engine == nil {
		return nil, fmt.Errorf("auth engine must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/healthz", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(engine, sessions)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.POST("/login", authHandler.Login)
		auth.POST("/otp", authHandler.RequestOTP)
		auth.POST("/logout", authHandler.Logout)
	}

	// Magic-link landing endpoint, hit from email clients.
	r.GET("/auth/otp/validate", authHandler.ValidateOTP)

	// Protected routes
	requireAuth := middleware.Auth(sessions)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/password", authHandler.ResetPassword)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

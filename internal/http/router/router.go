// Package router assembles the gin engine: shared middleware, the internal
// probe and metrics endpoints, and the routes of every module.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "manuell_oppgave_backend/internal/http"
	"manuell_oppgave_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	requestsPerSecond = 20
	requestBurst      = 40
	readinessTimeout  = 2 * time.Second
)

// New builds the HTTP engine for app.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(httpkit.RequestLogger(app.Logger))
	if app.Metrics != nil {
		engine.Use(app.Metrics.Middleware())
	}
	engine.Use(cors.New(corsConfig(app.Config)))

	internal := engine.Group("/internal")
	internal.GET("/is_alive", func(c *gin.Context) {
		if app.State != nil && !app.State.Alive() {
			c.String(http.StatusInternalServerError, "I'm dead x_x")
			return
		}
		c.String(http.StatusOK, "I'm alive! :)")
	})
	internal.GET("/is_ready", func(c *gin.Context) {
		if !ready(c.Request.Context(), app) {
			c.String(http.StatusInternalServerError, "Please wait! I'm not ready :(")
			return
		}
		c.String(http.StatusOK, "I'm ready! :)")
	})
	if app.Metrics != nil {
		internal.GET("/prometheus", gin.WrapH(app.Metrics.Handler()))
	}

	limiter := httpkit.NewIPRateLimiter(rate.Limit(requestsPerSecond), requestBurst, app.Logger)
	authMiddleware := httpkit.AuthRequired(app.Verifier, app.Logger)

	v1 := engine.Group("/api/v1")
	v1.Use(limiter.RateLimit())
	protected := v1.Group("")
	protected.Use(authMiddleware)
	admin := protected.Group("/admin")
	admin.Use(httpkit.RequireRole(app.Config.GetAdminRole()))

	rc := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Protected:      protected,
		Admin:          admin,
		AuthMiddleware: authMiddleware,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Info("module routes registered", "module", m.Name())
	}

	return engine
}

func ready(ctx context.Context, app *apphttp.App) bool {
	if app.State != nil && !app.State.Ready() {
		return false
	}
	if app.Health == nil {
		return true
	}
	pingCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return app.Health.Ping(pingCtx) == nil
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Nav-Enhet", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.GetCORSOrigins()
	}
	return c
}

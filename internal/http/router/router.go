// Package router assembles the gin engine from the application modules.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apphttp "leadpilot_backend/internal/http"
	"leadpilot_backend/platform/httpkit"
)

// New builds the engine: shared middleware first, then the health probe,
// then every module's routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	limiter := httpkit.NewIPRateLimiter(app.Config, app.Logger)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		if err := app.Health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	widget := v1.Group("/widget")
	widget.Use(app.WidgetAuth)
	if app.SessionBudget != nil {
		widget.Use(app.SessionBudget)
	}

	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(app.Config))

	ctx := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Widget:         widget,
		Protected:      protected,
		Config:         app.Config,
		AuthMiddleware: httpkit.AuthRequired(app.Config),
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("routes_registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = app.Config.GetCORSOrigins()
	}
	return cors.New(cfg)
}

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tomtev/page.fun/internal/middleware"
	"github.com/tomtev/page.fun/internal/modules/content/page"
	"github.com/tomtev/page.fun/internal/modules/tokengate"
	"github.com/tomtev/page.fun/internal/pkg/response"
	"go.uber.org/zap"
)

const apiPrefix = "/api"

func (a *App) registerRoutes(svc *page.Service) {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "page.fun",
		"version": "1.0.0",
	}

	// Identity runs first so the rate limiter can skip authenticated callers.
	api := r.Group(apiPrefix)
	api.Use(middleware.Identity(a.verifier, a.cfg.Identity.CookieName))
	api.Use(middleware.RateLimit(a.rc.Raw(), a.cfg.RateLimit.Max, a.cfg.RateLimit.Window, a.logger.Named("RateLimit")))

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		up := time.Since(processStart)
		c.JSON(http.StatusOK, gin.H{
			"timestamp": up.Milliseconds(),
			"humanize":  humanizeDuration(up),
		})
	})
	api.GET("/health", a.health)

	page.NewHandler(svc).RegisterRoutes(api)
	tokengate.NewHandler(
		svc.Store(),
		tokengate.NewVerifier(a.ledger),
		a.signer,
		a.cfg.TokenGate.DefaultThreshold,
		a.logger.Named("TokenGate"),
	).RegisterRoutes(api)
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, redisState := http.StatusOK, "ok"
	if err := a.rc.Ping(ctx); err != nil {
		a.logger.Warn("health check: redis unreachable", zap.Error(err))
		status, redisState = http.StatusServiceUnavailable, "unreachable"
	}
	c.JSON(status, gin.H{
		"ok":    status == http.StatusOK,
		"redis": redisState,
		"jobs":  a.sched.List(),
	})
}

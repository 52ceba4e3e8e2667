package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tomtev/page.fun/internal/config"
	"github.com/tomtev/page.fun/internal/middleware"
	"github.com/tomtev/page.fun/internal/modules/content/page"
	"github.com/tomtev/page.fun/internal/modules/tokengate"
	pkgcron "github.com/tomtev/page.fun/internal/pkg/cron"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	pkgjwt "github.com/tomtev/page.fun/internal/pkg/jwt"
	pkgredis "github.com/tomtev/page.fun/internal/pkg/redis"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	rc       *pkgredis.Client
	ownRedis bool
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler

	verifier identity.Verifier
	ledger   tokengate.Ledger
	signer   tokengate.Signer
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*App)

// WithRedis uses rc instead of dialing cfg.RedisURL. The caller keeps
// ownership of rc.
func WithRedis(rc *pkgredis.Client) Option { return func(a *App) { a.rc = rc } }

func WithVerifier(v identity.Verifier) Option { return func(a *App) { a.verifier = v } }

func WithLedger(l tokengate.Ledger) Option { return func(a *App) { a.ledger = l } }

func WithSigner(s tokengate.Signer) Option { return func(a *App) { a.signer = s } }

// New initializes the application: runtime settings → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.rc == nil {
		rc, err := pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rc = rc
		a.ownRedis = true
	}
	if a.verifier == nil {
		a.verifier = buildVerifier(cfg, logger)
	}
	if a.ledger == nil {
		a.ledger = tokengate.NewHeliusLedger(tokengate.HeliusOptions{
			Endpoint: cfg.Ledger.Endpoint(),
			Timeout:  cfg.Ledger.Timeout,
			Limit:    cfg.Ledger.PageLimit,
			MaxPages: cfg.Ledger.MaxPages,
		})
	}
	if a.signer == nil {
		signer, err := tokengate.NewS3Signer(cfg.Blob, cfg.TokenGate.SignedURLTTL)
		switch {
		case errors.Is(err, tokengate.ErrSigningDisabled):
			logger.Warn("private content bucket is not configured, unlocking gated content will fail")
		case err != nil:
			a.closeRedis()
			return nil, fmt.Errorf("blob signer: %w", err)
		default:
			a.signer = signer
		}
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
		gin.DebugPrintRouteFunc = func(string, string, string, int) {}
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))
	a.router = router

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.sched = pkgcron.New(logger.Named("CronService"))

	store := page.NewStore(a.rc, page.NewValidator())
	index := page.NewWalletIndex(a.rc, store)
	svc := page.NewService(store, index, logger.Named("PageService"))
	registerCronJobs(a.sched, page.NewReconciler(a.rc, store, index, logger.Named("Reconciler")), cfg)
	go a.sched.Start(ctx)

	a.registerRoutes(svc)
	return a, nil
}

// buildVerifier returns a verifier that reports ErrUnavailable when no
// verification key is configured, so authenticated routes answer 500.
func buildVerifier(cfg *config.AppConfig, logger *zap.Logger) identity.Verifier {
	parser, err := pkgjwt.NewVerifier(cfg.Identity.VerificationKey, cfg.Identity.Issuer, cfg.Identity.AppID)
	if err != nil {
		logger.Warn("identity verification disabled", zap.Error(err))
		return unavailableVerifier{cause: err}
	}
	return identity.NewTokenVerifier(parser, cfg.Identity.ChainType)
}

type unavailableVerifier struct{ cause error }

func (u unavailableVerifier) Verify(context.Context, string) (*identity.Identity, error) {
	return nil, fmt.Errorf("%w: %v", identity.ErrUnavailable, u.cause)
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-Match", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "ETag", "Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Scheduler exposes the background job scheduler.
func (a *App) Scheduler() *pkgcron.Scheduler { return a.sched }

// Shutdown stops background jobs and releases Redis when New dialed it.
func (a *App) Shutdown() {
	a.cancel()
	a.closeRedis()
}

func (a *App) closeRedis() {
	if a.ownRedis && a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}

var processStart = time.Now()

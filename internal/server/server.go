package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/teleload/internal/config"
	dashboarddomain "github.com/smallbiznis/teleload/internal/dashboard/domain"
	"github.com/smallbiznis/teleload/internal/observability"
	obsmiddleware "github.com/smallbiznis/teleload/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/teleload/internal/observability/metrics"
	obstracing "github.com/smallbiznis/teleload/internal/observability/tracing"
	"github.com/smallbiznis/teleload/internal/ratelimit"
	"github.com/smallbiznis/teleload/internal/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	webhookPath     = telegram.WebhookPath
	shutdownTimeout = 10 * time.Second
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     []string{"/health", "/metrics", webhookPath},
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	dashboard    dashboarddomain.Service
	runner       *telegram.Runner
	adminLimiter *ratelimit.KeyLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Dashboard  dashboarddomain.Service
	Runner     *telegram.Runner    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		dashboard:    p.Dashboard,
		runner:       p.Runner,
		adminLimiter: newAdminLimiter(),
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/stats", s.GetStats)
	api.GET("/downloads/activity", s.ListActivity)
	api.GET("/users", s.ListUsers)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api", s.AdminRequired())

	admin.POST("/users/:telegramId/pro", s.SetUserPro)
	admin.GET("/reports/usage.pdf", s.DownloadUsageReport)
}

func (s *Server) registerWebhookRoutes() {
	if s.runner == nil || s.runner.Mode() != config.BotModeWebhook {
		return
	}
	s.engine.POST(webhookPath, gin.WrapH(s.runner.WebhookHandler()))
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/docs"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/api/handlers"
	mw "github.com/sunes26/SummaryGenie-Page-sub000/internal/app/api/middleware"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/reconcile"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/webhook"
	cfgpkg "github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Engine    *gin.Engine
	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	Webhook   *webhook.Service
	Reconcile *reconcile.Service
	Retry     *retry.Queue
	Prom      *metrics.Prometheus
}

func registerRoutes(d routeDeps) {
	r, log := d.Engine, d.Log
	r.Use(d.Prom.HandlerFunc())
	if d.Cfg.MetricsAddr == "" {
		r.GET(d.Prom.MetricsPath, gin.WrapH(d.Prom.Handler()))
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	// signed by the provider, no bearer
	handlers.RegisterWebhookRoutes(apiV1.Group("/webhook"), d.Webhook, log)

	sub := apiV1.Group("/subscription", mw.AuthMiddleware(d.Cfg, log))
	handlers.RegisterSubscriptionRoutes(sub, d.Reconcile, log)

	admin := apiV1.Group("/admin", mw.AuthMiddleware(d.Cfg, log), mw.RequireRole(d.Cfg.Auth.OperatorRole))
	handlers.RegisterAdminRoutes(admin, d.Reconcile, d.Retry, log)
}

func newPrometheus(log *zap.SugaredLogger) *metrics.Prometheus {
	return metrics.NewPrometheus(metrics.NewPrometheusOptions{Subsystem: "http", Logger: log})
}

func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting "+name+" server", "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping " + name + " server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serve(lc, log, "HTTP", &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second})
}

func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, p *metrics.Prometheus) {
	if cfg.MetricsAddr == "" {
		return
	}
	serve(lc, log, "metrics", p.NewServer(cfg.MetricsAddr))
}

var Module = fx.Options(
	fx.Provide(newEngine, newPrometheus),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
	fx.Invoke(runMetricsServer),
)

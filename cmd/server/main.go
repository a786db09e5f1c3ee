package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/munreg/internal/app"
	"github.com/iliyamo/munreg/internal/config"
	"github.com/iliyamo/munreg/internal/handler"
	"github.com/iliyamo/munreg/internal/logger"
	"github.com/iliyamo/munreg/internal/middleware"
	"github.com/iliyamo/munreg/internal/queue"
	"github.com/iliyamo/munreg/internal/router"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logger.For("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer a.Close()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.WithError(err).Warn("redis unavailable: no response cache, per-process rate limits")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	if cfg.Queue.Enabled {
		consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Queue, cfg.Queue.LogFile)
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("assignment log consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.For("http").WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Info("request")
			return nil
		},
	}))
	e.Use(middleware.ClientContext())
	e.Use(middleware.Metrics())

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(cacheCfg, rdb)

	committees := handler.NewCommitteeHandler(a.Seats, cfg.RequestTimeout)
	committees.OnChange = func(ctx context.Context) {
		if err := middleware.InvalidateCache(ctx, cacheCfg, rdb); err != nil {
			log.WithError(err).Warn("cache invalidation failed")
		}
	}
	registrations := handler.NewRegistrationHandler(a.Registrations, cfg.RequestTimeout)

	router.RegisterRoutes(e)
	if cfg.Storage.Driver == "local" {
		router.RegisterFiles(e, cfg.Storage.LocalDir)
	}
	router.RegisterAuth(e, handler.NewAuthHandler(a.Auth, cfg.RequestTimeout), cfg.JWTSecret, limit)
	router.RegisterPublic(e, committees, registrations, cache, limit)
	router.RegisterAdmin(e, router.Admin{
		Committees:    committees,
		Users:         handler.NewUserHandler(a.Users, cfg.RequestTimeout),
		Registrations: registrations,
		Audit:         handler.NewAuditHandler(a.RequestLogs, a.Assignments, cfg.RequestTimeout),
	}, cfg.JWTSecret, limit)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

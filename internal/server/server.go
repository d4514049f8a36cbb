// Package server assembles the HTTP application: global middleware, the
// record API group and the operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/uhra/uhra/internal/config"
	"github.com/uhra/uhra/internal/domain/records"
	"github.com/uhra/uhra/internal/platform/auth"
	"github.com/uhra/uhra/internal/platform/db"
	"github.com/uhra/uhra/internal/platform/metrics"
	"github.com/uhra/uhra/internal/platform/middleware"
)

const Version = "0.1.0"

// Deps are the collaborators the server is built from. Metrics and Pool
// are optional.
type Deps struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Service *records.Service
	Metrics *metrics.Metrics
	Pool    *pgxpool.Pool
}

// New builds the echo application.
func New(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(d.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.Logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderContentType, middleware.RequestIDHeader,
			auth.HeaderUserID, auth.HeaderUserRole,
		},
	}))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}

	// API group
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}

	api := e.Group("/api")
	api.Use(auth.HeaderIdentity())
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	api.Use(middleware.Audit(d.Logger))

	records.NewHandler(d.Service, d.Logger).RegisterRoutes(api)

	e.GET("/health", healthHandler(d))
	if d.Metrics != nil && cfg.MetricsEnabled {
		e.GET("/metrics", d.Metrics.Handler())
	}

	return e
}

type healthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Source  string        `json:"source"`
	Error   string        `json:"error,omitempty"`
	Pool    *db.PoolStats `json:"pool,omitempty"`
}

func healthHandler(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:  "ok",
			Version: Version,
			Source:  d.Service.Source(),
		}
		if d.Pool != nil {
			stats := db.Stats(d.Pool)
			resp.Pool = &stats
		}

		if err := d.Service.Ping(ctx); err != nil {
			d.Logger.Warn().Err(err).Str("source", resp.Source).Msg("health check failed")
			resp.Status = "unavailable"
			resp.Error = "dataset source unreachable"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

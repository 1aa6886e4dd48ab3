// Package stats provides the analytics bounded context module: resolution
// of lead/deal record sets and on-demand computation of funnel, conversion,
// quality and timing statistics.
package stats

import (
	"leadstats_backend/internal/calendar"
	apphttp "leadstats_backend/internal/http"
	"leadstats_backend/internal/mirror"
	"leadstats_backend/internal/stats/handler"
	"leadstats_backend/internal/stats/service"
	"leadstats_backend/platform/cache"
	"leadstats_backend/platform/logger"
	"leadstats_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the stats bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the stats module with all its dependencies.
func NewModule(pool *pgxpool.Pool, remote service.RemoteClient, cal calendar.Calendar, statsCache *cache.Cache, val *validator.Validator, log *logger.Logger) *Module {
	repo := mirror.New(pool)
	svc := service.New(repo, remote, cal, statsCache, log)

	return &Module{
		handler: handler.New(svc, val),
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "stats"
}

// Service exposes the stats service for non-HTTP consumers (scheduler CLI).
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts the stats routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/stats")
	if ctx.StatsRateLimiter != nil {
		group.Use(ctx.StatsRateLimiter.RateLimit())
	}
	m.handler.RegisterRoutes(group)
}

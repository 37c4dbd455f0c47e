// Package lookups provides the lookup bounded context module: submission
// of phone numbers, their lifecycle state and the outbound call dispatch
// hand-off.
package lookups

import (
	"nummerwacht_backend/internal/events"
	apphttp "nummerwacht_backend/internal/http"
	"nummerwacht_backend/internal/lookups/handler"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/lookups/service"
	"nummerwacht_backend/platform/logger"
	"nummerwacht_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the lookups bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the lookups module.
func NewModule(pool *pgxpool.Pool, dispatcher service.CallDispatcher, profileResetter service.ProfileResetter, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, dispatcher, profileResetter, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "lookups"
}

// Repository exposes the shared data access layer for sibling modules
// (webhook pipeline, status aggregator, scheduler worker).
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lookup routes on the provided router context.
// Creation is rate limited: every lookup triggers an outbound AI call.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/lookups", ctx.LookupRateLimiter.RateLimit(), m.handler.HandleCreate)
	ctx.V1.GET("/lookups/:id", m.handler.HandleGet)

	ctx.Admin.POST("/lookups/reset", m.handler.HandleReset)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

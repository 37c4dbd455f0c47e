package status

import (
	"nummerwacht_backend/internal/events"
	apphttp "nummerwacht_backend/internal/http"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/platform/cache"
	"nummerwacht_backend/platform/config"
	"nummerwacht_backend/platform/logger"
)

// Module is the status bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the status module.
func NewModule(repo repository.Repository, profileReader ProfileReader, snapshotCache cache.Cache, cfg config.StatusConfig, ttls config.CacheConfig, log *logger.Logger) *Module {
	service := NewService(repo, profileReader, snapshotCache, cfg, ttls, log)
	return &Module{handler: NewHandler(service), service: service}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "status"
}

// RegisterHandlers subscribes snapshot cache invalidation to the bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.service.RegisterHandlers(bus)
}

// RegisterRoutes mounts status routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/lookups/:id/status", m.handler.HandleGetStatus)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

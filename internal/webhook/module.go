// Package webhook provides the voice-AI webhook ingestion bounded context:
// signature verification, payload normalization, event classification and
// the pipeline that reconciles call attempts, lookups and phone profiles.
package webhook

import (
	"nummerwacht_backend/internal/events"
	apphttp "nummerwacht_backend/internal/http"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/platform/config"
	"nummerwacht_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the webhook module. An empty webhook
// secret disables signature verification; that is a development-only mode
// and gets a loud warning.
func NewModule(cfg config.WebhookConfig, repo repository.Repository, profileSvc ProfileApplier, bus events.Bus, log *logger.Logger) *Module {
	verifier := NewVerifier(cfg.GetWebhookSecret())
	if !verifier.Enabled() {
		log.Warn("webhook signature verification disabled: no secret configured", "env", cfg.GetEnv())
	}

	service := NewService(repo, profileSvc, bus, log)
	handler := NewHandler(verifier, service, log, cfg.IsProduction())

	return &Module{handler: handler, service: service}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// Service exposes the pipeline service for composition in main.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts webhook routes on the provided router context.
// The endpoint is public; authentication is the signature scheme.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/webhook/voice", m.handler.HandleVoiceWebhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

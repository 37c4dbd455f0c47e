// Package handler exposes the lookups HTTP surface.
package handler

import (
	"net/http"

	"nummerwacht_backend/internal/lookups/service"
	"nummerwacht_backend/internal/lookups/transport"
	"nummerwacht_backend/platform/httpkit"
	"nummerwacht_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles lookup HTTP requests.
type Handler struct {
	service *service.Service
	val     *validator.Validator
}

// New creates a lookups handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{service: svc, val: val}
}

// HandleCreate submits a phone number for lookup.
// POST /api/v1/lookups
func (h *Handler) HandleCreate(c *gin.Context) {
	var req transport.CreateLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	resp, err := h.service.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleGet returns one lookup.
// GET /api/v1/lookups/:id
func (h *Handler) HandleGet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lookup id", nil)
		return
	}

	resp, err := h.service.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// HandleReset wipes all lookup state. Admin-only test tooling.
// POST /api/v1/admin/lookups/reset
func (h *Handler) HandleReset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"reset": true})
}

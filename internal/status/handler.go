package status

import (
	"net/http"

	"nummerwacht_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the status polling endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a status handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleGetStatus returns the lookup status snapshot.
// GET /api/v1/lookups/:id/status
//
// The response is deliberately non-cacheable by intermediaries; only the
// ETag gives polling clients bandwidth savings on unchanged state.
func (h *Handler) HandleGetStatus(c *gin.Context) {
	lookupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lookup id", nil)
		return
	}

	result, err := h.service.GetStatus(c.Request.Context(), lookupID, c.GetHeader("If-None-Match"))
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header("ETag", result.ETag)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Last-Modified", result.LastModified.UTC().Format(http.TimeFormat))

	if result.NotModified {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, result.Snapshot)
}

package webhook

import (
	"io"
	"net/http"

	"nummerwacht_backend/platform/httpkit"
	"nummerwacht_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps how much of a delivery we will read. Transcripts
// are large but bounded; anything past this is abuse.
const maxWebhookBody = 2 << 20

// Handler terminates the vendor webhook endpoint.
type Handler struct {
	verifier   *Verifier
	service    *Service
	log        *logger.Logger
	production bool
}

// NewHandler creates a webhook handler.
func NewHandler(verifier *Verifier, service *Service, log *logger.Logger, production bool) *Handler {
	return &Handler{verifier: verifier, service: service, log: log, production: production}
}

// HandleVoiceWebhook processes an inbound voice-AI delivery.
// POST /api/v1/webhook/voice
//
// The body is verified against the raw bytes before any parsing: an
// unauthenticated payload is never partially processed. Processing
// failures past authentication still return 200 so the vendor does not
// retry-storm us; they surface in logs instead.
func (h *Handler) HandleVoiceWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable request body", nil)
		return
	}

	if err := h.verifier.Verify(c.GetHeader(SignatureHeader), body); err != nil {
		h.log.WebhookRejected("signature verification failed", err)
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	payload, err := ParsePayload(body)
	if err != nil {
		h.log.WebhookRejected("malformed payload", err)
		httpkit.HandleError(c, err)
		return
	}

	result, err := h.service.Process(c.Request.Context(), payload)
	if err != nil {
		h.log.WebhookRejected("processing failed", err)
		if h.production {
			httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "internal error", gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"actionable": result.Actionable,
	})
}

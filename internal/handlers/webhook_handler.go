package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"furniplan/internal/services"
	"furniplan/internal/whatsapp"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	integrations *services.IntegrationService
	ingestor     *services.Ingestor
}

func NewWebhookHandler(integrations *services.IntegrationService, ingestor *services.Ingestor) *WebhookHandler {
	return &WebhookHandler{integrations: integrations, ingestor: ingestor}
}

// @Summary      Подтверждение вебхука WhatsApp
// @Description  Возвращает hub.challenge, если hub.mode=subscribe и токен совпадает
// @Tags         Webhooks
// @Produce      plain
// @Param        hub.mode          query  string  true  "subscribe"
// @Param        hub.verify_token  query  string  true  "токен проверки"
// @Param        hub.challenge     query  string  true  "challenge"
// @Success      200  {string}  string
// @Failure      403  {object}  map[string]string
// @Router       /api/webhooks/whatsapp [get]
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge, err := h.integrations.VerifyHandshake(c.Request.Context(),
		c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if err != nil {
		log.Printf("[wa:webhook][verify] rejected mode=%q", c.Query("hub.mode"))
		respondError(c, "wa:webhook][verify", err)
		return
	}
	c.String(http.StatusOK, challenge)
}

// @Summary      Входящие события WhatsApp
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/webhooks/whatsapp [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		log.Printf("[wa:webhook] read body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	settings, err := h.integrations.Current(c.Request.Context())
	if err != nil && !errors.Is(err, services.ErrIntegrationNotConfigured) {
		respondError(c, "wa:webhook", err)
		return
	}
	if err := services.VerifyWebhookSignature(settings, body, c.GetHeader(whatsapp.SignatureHeader)); err != nil {
		log.Printf("[wa:webhook] signature rejected: %v", err)
		respondError(c, "wa:webhook", err)
		return
	}

	res, err := h.ingestor.Ingest(c.Request.Context(), settings, body)
	if err != nil {
		respondError(c, "wa:webhook", err)
		return
	}
	log.Printf("[wa:webhook] received=%d stored=%d duplicates=%d skipped=%d failed=%d",
		res.Received, res.Stored, res.Duplicates, res.Skipped, res.Failed)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

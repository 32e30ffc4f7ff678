package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furniplan/internal/models"
	"furniplan/internal/services"
)

type IntegrationHandler struct {
	service *services.IntegrationService
}

func NewIntegrationHandler(service *services.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

// @Summary      Настройки WhatsApp
// @Description  Ключи возвращаются замаскированными
// @Tags         Integrations
// @Produce      json
// @Success      200  {object}  models.IntegrationSettings
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /api/whatsapp-integration [get]
func (h *IntegrationHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		respondError(c, "integration", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// @Summary      Сохранить настройки WhatsApp
// @Description  generateNewToken=true заменяет токен вебхука случайным значением
// @Tags         Integrations
// @Accept       json
// @Produce      json
// @Param        settings  body      models.UpsertIntegrationInput  true  "Настройки"
// @Success      200  {object}  models.IntegrationSettings
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Security     BearerAuth
// @Router       /api/whatsapp-integration [post]
func (h *IntegrationHandler) Upsert(c *gin.Context) {
	var in models.UpsertIntegrationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := h.service.Upsert(c.Request.Context(), in)
	if err != nil {
		respondError(c, "integration", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *IntegrationHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context()); err != nil {
		respondError(c, "integration", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "inactive"})
}

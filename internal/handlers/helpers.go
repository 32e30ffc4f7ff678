package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"furniplan/internal/middleware"
	"furniplan/internal/services"
	"furniplan/internal/whatsapp"
)

// более устойчиво к типам (int / int64 / float64 / string)
func getIntFromCtx(c *gin.Context, key string) (int64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getUserAndRole(c *gin.Context) (userID int64, roleID int) {
	if id, ok := getIntFromCtx(c, middleware.CtxUserID); ok {
		userID = id
	}
	if id, ok := getIntFromCtx(c, middleware.CtxRoleID); ok {
		roleID = int(id)
	}
	return
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto the HTTP taxonomy. Anything
// unrecognised is logged and hidden behind a generic 500.
func respondError(c *gin.Context, tag string, err error) {
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrChatNotFound.Error()})
	case errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrSuggestionNotFound),
		errors.Is(err, services.ErrIntegrationNotConfigured):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrInvalidMessageInput),
		errors.Is(err, services.ErrInvalidChatInput),
		errors.Is(err, services.ErrChatArchived),
		errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrInvalidIntegrationInput),
		errors.Is(err, whatsapp.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrChatConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrWebhookRejected),
		errors.Is(err, whatsapp.ErrInvalidSignature):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrIngestFailed):
		log.Printf("[%s] %v", tag, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		log.Printf("[%s][err] %v", tag, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

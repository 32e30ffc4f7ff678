package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"furniplan/internal/middleware"
	"furniplan/internal/realtime"
	"furniplan/internal/services"
)

// StreamHandler upgrades participants of a chat to a websocket feed of new
// messages and read receipts.
type StreamHandler struct {
	chats  *services.ChatService
	hub    *realtime.ChatHub
	secret []byte
}

func NewStreamHandler(chats *services.ChatService, hub *realtime.ChatHub, secret []byte) *StreamHandler {
	return &StreamHandler{chats: chats, hub: hub, secret: secret}
}

// Stream authenticates with the Authorization header or, for browsers, ?token=.
func (h *StreamHandler) Stream(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		token = c.Query("token")
	}
	claims, err := middleware.ParseToken(h.secret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	chatID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.chats.GetChat(c.Request.Context(), chatID, claims.UserID); err != nil {
		respondError(c, "ws", err)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, chatID, claims.UserID); err != nil {
		log.Printf("[ws] upgrade chat=%d user=%d: %v", chatID, claims.UserID, err)
	}
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furniplan/internal/authz"
	"furniplan/internal/handlers"
	"furniplan/internal/middleware"
	"furniplan/internal/observability"
)

func SetupRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	webhookHandler *handlers.WebhookHandler,
	integrationHandler *handlers.IntegrationHandler,
	streamHandler *handlers.StreamHandler,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", observability.MetricsHandler())
	r.POST("/login", authHandler.Login)

	// WhatsApp Cloud API вызывает без JWT
	r.GET("/api/webhooks/whatsapp", webhookHandler.Verify)
	r.POST("/api/webhooks/whatsapp", webhookHandler.Receive)

	// токен в query, поэтому вне AuthMiddleware
	r.GET("/ws/chat/:id", streamHandler.Stream)

	// ---- protected
	api := r.Group("/api", middleware.AuthMiddleware(jwtSecret), middleware.ReadOnlyGuard())

	integration := api.Group("/whatsapp-integration", middleware.RequireRoles(authz.IntegrationManagers...))
	{
		integration.GET("", integrationHandler.Get)
		integration.POST("", integrationHandler.Upsert)
		integration.DELETE("", integrationHandler.Deactivate)
	}

	chat := api.Group("/chat")
	{
		chat.GET("", chatHandler.ListChats)
		chat.POST("", chatHandler.CreateChat)
		chat.GET("/:id", chatHandler.GetChat)
		chat.PATCH("/:id", chatHandler.UpdateChat)
		chat.DELETE("/:id", chatHandler.ArchiveChat)
		chat.GET("/:id/transcript", chatHandler.Transcript)
		chat.GET("/:id/messages", chatHandler.ListMessages)
		chat.POST("/:id/messages", chatHandler.SendMessage)
		chat.PATCH("/:id/messages", chatHandler.PatchMessages)
	}

	return r
}

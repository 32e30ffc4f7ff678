package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "furniplan/docs"
	"furniplan/internal/config"
	"furniplan/internal/db"
	"furniplan/internal/events"
	"furniplan/internal/handlers"
	"furniplan/internal/middleware"
	"furniplan/internal/notify"
	"furniplan/internal/observability"
	"furniplan/internal/pdf"
	"furniplan/internal/realtime"
	"furniplan/internal/repositories"
	"furniplan/internal/routes"
	"furniplan/internal/services"
)

const shutdownTimeout = 15 * time.Second

// Run wires the service and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	shutdownTracer, err := observability.InitTracer(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Printf("[otel] tracing disabled: %v", err)
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("[otel] shutdown: %v", err)
		}
	}()

	// === DB ===
	database, err := db.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("[db] close: %v", err)
		}
	}()
	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(database)
	leadRepo := repositories.NewLeadRepository(database)
	chatRepo := repositories.NewChatRepository(database)
	messageRepo := repositories.NewMessageRepository(database)
	integrationRepo := repositories.NewIntegrationRepository(database)

	// === Infra ===
	publisher := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("[amqp] close: %v", err)
		}
	}()
	log.Printf("[amqp] mode=%s", events.Mode(publisher))

	hub := realtime.NewChatHub()
	alerts := buildNotifier(cfg)
	senders := services.NewSenderFactory(cfg.WhatsApp.GraphBaseURL, &http.Client{Timeout: cfg.WhatsApp.ForwardTimeout})
	transcripts := pdf.NewGenerator(cfg.Files.FontPath)

	// === Services ===
	jwtSecret := []byte(cfg.Server.JWTSecret)
	authService := services.NewAuthService(userRepo, jwtSecret, cfg.Server.TokenTTL)
	chatService := services.NewChatService(chatRepo, messageRepo, userRepo, leadRepo, hub, transcripts)
	integrationService := services.NewIntegrationService(integrationRepo)
	dispatcher := services.NewDispatcher(chatRepo, messageRepo, integrationRepo, senders, hub, publisher, alerts, cfg.WhatsApp.ForwardTimeout)
	ingestor := services.NewIngestor(chatRepo, messageRepo, leadRepo, dispatcher, senders, hub, publisher, alerts,
		cfg.WhatsApp.SystemUserID, cfg.WhatsApp.DefaultAssigneeIDs)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatService, dispatcher)
	webhookHandler := handlers.NewWebhookHandler(integrationService, ingestor)
	integrationHandler := handlers.NewIntegrationHandler(integrationService)
	streamHandler := handlers.NewStreamHandler(chatService, hub, jwtSecret)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	routes.SetupRoutes(router, jwtSecret, authHandler, chatHandler, webhookHandler, integrationHandler, streamHandler)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Сервер запущен на %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// buildNotifier joins whichever alert channels are configured; delivery is async.
func buildNotifier(cfg *config.Config) services.Alerter {
	var channels notify.Multi
	if cfg.Email.SMTPHost != "" && len(cfg.Email.AlertTo) > 0 {
		channels = append(channels, notify.NewEmailNotifier(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPUser, cfg.Email.SMTPPassword, cfg.Email.FromEmail, cfg.Email.AlertTo))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.AlertChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID)
		if err != nil {
			log.Printf("[notify] telegram disabled: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		return notify.Noop{}
	}
	return notify.Async{Next: channels}
}

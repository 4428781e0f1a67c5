package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/userdir"
)

func main() {
	cfg, err := config.Load(os.Getenv("MSG_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Fatal("MSG_JWT_SECRET must be set")
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()

	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", "messaging-service", cfg.Environment, logger)
	users := userdir.NewClient(cfg.UserDirURL, cfg.UserDirTimeout)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	participantRepo := repositories.NewParticipantRepo(database)

	directory := services.NewConversationDirectory(conversationRepo, publisher, logger)
	messageLog := services.NewMessageLog(messageRepo, directory, publisher, logger)
	readTracker := services.NewReadTracker(participantRepo, logger)
	viewBuilder := services.NewConversationViewBuilder(directory, messageLog, readTracker, users, logger)

	subjects := services.NewSubjectResolver()
	subjects.Register(models.SubjectConversation, func(ctx context.Context, id int) (any, error) {
		conv, err := directory.Conversation(ctx, id)
		return conv, err
	})
	subjects.Register(models.SubjectMessage, func(ctx context.Context, id int) (any, error) {
		msg, err := messageRepo.GetMessage(ctx, id)
		return msg, err
	})

	conversationHandler := handlers.NewConversationHandler(directory, viewBuilder, readTracker, audit, logger)
	messageHandler := handlers.NewMessageHandler(messageLog, readTracker, users, logger)
	userHandler := handlers.NewUserHandler(users, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware("messaging-service"))

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.Auth([]byte(cfg.JWTSecret))

	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.POST("/conversations/group", authMiddleware, conversationHandler.CreateGroup)
	router.GET("/conversations/:conversation_id", authMiddleware, conversationHandler.Get)
	router.DELETE("/conversations/:conversation_id", authMiddleware, conversationHandler.Delete)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.List)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.Post)
	router.PATCH("/conversations/:conversation_id/messages/:message_id", authMiddleware, messageHandler.Edit)
	router.POST("/conversations/:conversation_id/participants", authMiddleware, conversationHandler.AddParticipant)
	router.DELETE("/conversations/:conversation_id/participants/me", authMiddleware, conversationHandler.Leave)
	router.DELETE("/conversations/:conversation_id/participants/:user_id", authMiddleware, conversationHandler.RemoveParticipant)
	router.POST("/conversations/:conversation_id/read", authMiddleware, conversationHandler.MarkRead)
	router.PUT("/conversations/:conversation_id/mute", authMiddleware, conversationHandler.Mute)
	router.GET("/users/search", authMiddleware, userHandler.Search)

	handlers.RegisterDebugRoutes(router, audit, subjects, cfg.DebugRoutes)

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func buildLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

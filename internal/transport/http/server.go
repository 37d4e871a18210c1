package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"lexibot/internal/ai"
	appsvc "lexibot/internal/app"
	"lexibot/internal/bootstrap"
	"lexibot/internal/cache"
	"lexibot/internal/extract"
	"lexibot/internal/platform/rabbitmq"
	"lexibot/internal/repository"
	"lexibot/internal/transport/http/handler"
	"lexibot/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	documentRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)

	llmClient := ai.NewOpenAICompatibleClient()
	chatCfg := ai.ChatConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.Model,
	}
	embCfg := ai.EmbeddingConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.EmbeddingModel,
	}

	var pageOCR extract.OCRClient
	if app.OCR != nil {
		pageOCR = app.OCR
	}
	extractor := extract.New(pageOCR, app.Log, extract.Options{
		MinPageText:  app.Config.OCR.MinPageText,
		RasterDPI:    app.Config.OCR.RasterDPI,
		ImageUpscale: float64(app.Config.OCR.ImageUpscale),
		PdftoppmPath: app.Config.OCR.PdftoppmPath,
	})

	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	answerService := appsvc.NewAnswerService(
		chunkRepo, llmClient, chatCfg, embCfg, app.Config.RAG.TopK, app.Log,
	)
	ingestService := appsvc.NewIngestService(
		documentRepo, chunkRepo, extractor, llmClient, embCfg,
		app.Config.RAG.ChunkSize, app.Config.RAG.ChunkOverlap, app.Config.RAG.EmbedWorkers,
		app.Log,
	)
	chatService := appsvc.NewChatService(
		sessionRepo, messageRepo, publisher, historyCache, answerService,
		app.Outcome, llmClient, chatCfg, app.Config.LLM.MaxContextMessage, app.Log,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	documentHandler := handler.NewDocumentHandler(ingestService)
	predictHandler := handler.NewPredictHandler(chatService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.PUT("/sessions/:id", chatHandler.RenameSession)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	docGroup.POST("", documentHandler.Upload)
	docGroup.GET("", documentHandler.List)
	docGroup.DELETE("/:id", documentHandler.Delete)

	v1.POST("/predict", middleware.AuthJWT(app.Config.Auth.JWTSecret), predictHandler.Predict)

	return router
}

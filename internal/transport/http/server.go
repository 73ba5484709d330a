package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "ragdesk/internal/app"
	"ragdesk/internal/bootstrap"
	"ragdesk/internal/cache"
	"ragdesk/internal/repository"
	"ragdesk/internal/transport/http/handler"
	"ragdesk/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewChatSessionRepository(app.MySQL)
	turnRepo := repository.NewTurnRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)

	historyCache := cache.NewHistoryCache(app.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	rewriter := appsvc.NewRewriter(app.LLM, cfg.Retrieve.HistoryWindow, time.Duration(cfg.Timeout.RewriteSeconds)*time.Second)
	retriever := appsvc.NewRetriever(app.LLM, app.Index, time.Duration(cfg.Timeout.EmbedSeconds)*time.Second)
	reranker := appsvc.NewReranker(app.Rerank, time.Duration(cfg.Timeout.RerankSeconds)*time.Second)
	generator := appsvc.NewLLMGenerator(app.LLM, time.Duration(cfg.Timeout.GenerateSeconds)*time.Second)
	chatService := appsvc.NewChatService(
		sessionRepo,
		turnRepo,
		historyCache,
		rewriter,
		retriever,
		reranker,
		generator,
		cfg.Retrieve.HistoryWindow,
		cfg.Retrieve.TopK,
		cfg.Retrieve.RerankTopN,
	)

	authHandler := handler.NewAuthHandler(authService)
	documentHandler := handler.NewDocumentHandler(app.Ingest)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(cfg.Auth.JWTSecret), authHandler.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
	docGroup.POST("/pdf", documentHandler.UploadPDF)
	docGroup.POST("/web", documentHandler.SubmitWeb)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id/status", documentHandler.Status)
	docGroup.POST("/:id/reingest", documentHandler.Reingest)
	docGroup.DELETE("/:id", documentHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(cfg.Auth.JWTSecret))
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.GET("/sessions/:id/turns", chatHandler.ListTurns)
	chatGroup.POST("/ask", chatHandler.Ask)

	return router
}

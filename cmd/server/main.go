// Package main runs the DocAmy API server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docamy/backend/config"
	"github.com/docamy/backend/internal/auth"
	"github.com/docamy/backend/internal/conversations"
	"github.com/docamy/backend/internal/middleware"
	"github.com/docamy/backend/internal/tavus"
	"github.com/docamy/backend/internal/worker"
	"github.com/docamy/backend/pkg/database"
	"github.com/docamy/backend/pkg/queue"
	"github.com/docamy/backend/pkg/redis"
	"github.com/docamy/backend/pkg/response"
	"github.com/docamy/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.AccessKeyID != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			VideosBucket:         cfg.AWS.VideosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 archival disabled", zap.Error(err))
		}
	}

	tavusClient := tavus.NewClient(cfg.Tavus.APIKey, cfg.Tavus.BaseURL, logger)
	if tavusClient.Ping(ctx) {
		logger.Info("Tavus API connection verified")
	} else {
		logger.Warn("Tavus API connection failed")
	}
	webhookAuth := tavus.NewWebhookAuthenticator(cfg.Tavus.WebhookSecret)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	var archiver conversations.ArchiveEnqueuer
	if s3Client != nil {
		archiver = jobQueue
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	verifier := auth.NewVerifier(jwtService, authRepo, authRepo)

	// Conversations
	convRepo := conversations.NewRepository(pool)
	poller := conversations.NewPoller(tavusClient, convRepo, archiver,
		time.Duration(cfg.Poller.IntervalSeconds)*time.Second, cfg.Poller.MaxAttempts, logger)
	convHandler := conversations.NewHandler(convRepo, tavusClient, poller, s3Client, logger)
	processor := conversations.NewProcessor(convRepo, archiver, logger)
	webhookHandler := conversations.NewWebhookHandler(webhookAuth, processor, logger)

	// Background archive worker (shares the process with the API; cmd/worker
	// runs it standalone when scaled out).
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		archiveProcessor := worker.NewArchiveProcessor(convRepo, s3Client, jobQueue, logger)
		go archiveProcessor.Run(workerCtx)
		logger.Info("archive worker started")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		services := gin.H{
			"database":  healthStatus(pool.Ping(c.Request.Context()) == nil),
			"redis":     healthStatus(rdb.Ping(c.Request.Context()).Err() == nil),
			"tavus_api": healthStatus(tavusClient.Ping(c.Request.Context())),
		}
		status := "healthy"
		for _, v := range services {
			if v != "healthy" {
				status = "degraded"
				break
			}
		}
		response.OK(c, gin.H{"status": status, "services": services, "timestamp": time.Now().UTC()})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT or API key)
	api := router.Group("/api/v2")
	api.Use(middleware.Auth(verifier))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(rdb.Client, cfg.RateLimit.RequestsPerMinute, logger))
	}
	{
		api.POST("/api-keys", authHandler.CreateAPIKey)
		api.GET("/api-keys", authHandler.ListAPIKeys)
		api.DELETE("/api-keys/:id", authHandler.RevokeAPIKey)

		api.POST("/conversations", convHandler.Create)
		api.GET("/conversations", convHandler.List)
		api.GET("/conversations/:id", convHandler.GetByID)
		api.DELETE("/conversations/:id", convHandler.Delete)
		api.POST("/conversations/:id/messages", convHandler.SendMessage)
		api.GET("/conversations/:id/messages", convHandler.ListMessages)
		api.GET("/conversations/:id/archive-url", convHandler.ArchiveURL)

		api.GET("/replicas", convHandler.ListReplicas)
		api.GET("/personas", convHandler.ListPersonas)
		api.GET("/stats", convHandler.GetStats)
	}

	// Webhooks (no user auth; HMAC-verified in the handler)
	webhook := router.Group("/api/v2/webhooks")
	if cfg.RateLimit.Enabled {
		webhook.Use(middleware.RateLimit(rdb.Client, cfg.RateLimit.WebhookPerMinute, logger))
	}
	webhook.POST("/tavus", webhookHandler.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func healthStatus(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

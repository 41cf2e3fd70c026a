package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/internal/app"
	"github.com/vcscsvcscs/rarecare-backend/internal/audit"
	"github.com/vcscsvcscs/rarecare-backend/internal/config"
	"github.com/vcscsvcscs/rarecare-backend/internal/handler"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"github.com/vcscsvcscs/rarecare-backend/internal/pdf"
	"github.com/vcscsvcscs/rarecare-backend/internal/security"
	"github.com/vcscsvcscs/rarecare-backend/internal/service"
	"github.com/vcscsvcscs/rarecare-backend/pkg/api"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := app.NewLogger(cfg.Logging, cfg.Server.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		applied, err := app.Migrate(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Migrations applied", zap.Strings("versions", applied))
	}

	pool, err := app.OpenDatabase(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Optional external services
	model, err := app.NewModel(cfg.Azure.OpenAI, logger)
	if err != nil {
		logger.Fatal("Failed to initialize model", zap.Error(err))
	}
	archive, err := app.NewArchive(ctx, cfg.Azure.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize import archive", zap.Error(err))
	}
	statsCache, redisClient := app.NewStatsCache(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	key, err := security.ParseKey(cfg.Security.IDEncryptionKey)
	if err != nil {
		logger.Fatal("Invalid ID encryption key", zap.Error(err))
	}
	encryptor, err := security.NewEncryptor(key)
	if err != nil {
		logger.Fatal("Failed to initialize ID encryption", zap.Error(err))
	}

	doc, err := api.LoadSpec(ctx)
	if err != nil {
		logger.Fatal("Failed to load OpenAPI document", zap.Error(err))
	}

	// Initialize repositories
	repos := app.NewRepositories(pool, logger)
	auditLogger := audit.NewLogger(pool, logger)

	// Initialize services
	generator := service.NewInsightGenerator(model, cfg.Azure.OpenAI.Timeout, logger)
	trackingService := service.NewTrackingService(
		repos.Tracking,
		statsCache,
		archive,
		generator,
		auditLogger,
		cfg.Insights.CacheTTL,
		logger,
	)
	reportService := service.NewReportService(trackingService, pdf.NewPDFGenerator(logger), auditLogger, logger)
	noteService := service.NewNoteService(repos.Notes, auditLogger, logger)
	messageService := service.NewMessageService(repos.Messages, auditLogger, logger)
	rarescopeService := service.NewRarescopeService(repos.Rarescope, auditLogger, logger)
	patientService := service.NewPatientDataService(
		service.PatientDataStores{
			Data:      repos.PatientData,
			Tracking:  repos.Tracking,
			Notes:     repos.Notes,
			Messages:  repos.Messages,
			Rarescope: repos.Rarescope,
		},
		archive,
		statsCache,
		auditLogger,
		auditLogger,
		logger,
	)

	var cacheCheck handler.Check
	if redisClient != nil {
		cacheCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	// Initialize handlers
	handlers := handler.Handlers{
		Tracking:  handler.NewTrackingHandler(trackingService, reportService, cfg.Server.MaxImportBytes, logger),
		Notes:     handler.NewNoteHandler(noteService, logger),
		Messages:  handler.NewMessageHandler(messageService, logger),
		Rarescope: handler.NewRarescopeHandler(rarescopeService, logger),
		Patient:   handler.NewPatientHandler(patientService, logger),
		System:    handler.NewSystemHandler(pool.Ping, cacheCheck, model != nil, version, doc, logger),
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	handler.RegisterRoutes(r, handlers, encryptor, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

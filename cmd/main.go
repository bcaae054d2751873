package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"retention-analytics-service/internal/config"
	"retention-analytics-service/internal/events"
	"retention-analytics-service/internal/handlers"
	"retention-analytics-service/internal/middleware"
	"retention-analytics-service/internal/models"
	"retention-analytics-service/internal/repository"
	"retention-analytics-service/internal/services"
	"retention-analytics-service/internal/workers"
)

// @title Retention Analytics API
// @version 1.0.0
// @description Customer retention analytics over the order ledger: status snapshots, churn risk, cohort retention and at-risk alerting.
// @BasePath /api/v1
func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := config.New()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment != "production" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Initialize database
	db, err := initDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto-migrate models
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis client (optional - graceful degradation if Redis unavailable)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse Redis URL, continuing without summary caching")
		} else {
			redisClient = redis.NewClient(opt)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				logger.WithError(err).Warn("Failed to connect to Redis, continuing without summary caching")
				redisClient = nil
			} else {
				logger.Info("Connected to Redis for summary caching")
			}
		}
	} else {
		logger.Info("REDIS_URL not configured, summary caching disabled")
	}

	// Initialize NATS alert publisher (optional - decisions persist either way)
	var publisher events.AlertPublisherInterface
	if p, err := events.NewAlertPublisher(cfg.NatsURL, logger); err != nil {
		logger.WithError(err).Warn("Failed to initialize alert publisher, alert events disabled")
	} else {
		publisher = p
		defer p.Close()
		logger.Info("Alert publisher initialized")
	}

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db)
	metricsRepo := repository.NewMetricsRepository(db, redisClient)

	// Initialize services
	pipelineConfig := services.PipelineConfig{
		StatusThresholds: cfg.StatusThresholds,
		RiskConfig:       cfg.RiskConfig,
		AlertConfig:      cfg.AlertConfig,
	}
	if err := pipelineConfig.Validate(); err != nil {
		log.Fatalf("Invalid pipeline configuration: %v", err)
	}
	pipelineService := services.NewPipelineService(orderRepo, metricsRepo, publisher, pipelineConfig, logger)
	cohortService := services.NewCohortService(orderRepo, metricsRepo, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	retentionHandler := handlers.NewRetentionHandler(metricsRepo, pipelineService, cohortService, logger)
	exportHandler := handlers.NewExportHandler(metricsRepo, orderRepo, logger)

	// Initialize background worker
	pipelineWorker := workers.NewPipelineWorker(pipelineService, cohortService, cfg.PipelineInterval, logger)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(logger))

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and observability endpoints
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		retention := v1.Group("/retention")
		{
			retention.GET("/snapshots", retentionHandler.ListSnapshots)
			retention.GET("/summary", retentionHandler.GetSummary)
		}

		churn := v1.Group("/churn")
		{
			churn.GET("/assessments", retentionHandler.ListAssessments)
		}

		v1.GET("/cohorts", retentionHandler.ListCohorts)

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", retentionHandler.ListAlerts)
			alerts.GET("/latest", retentionHandler.GetLatestAlert)
		}

		exports := v1.Group("/exports")
		{
			exports.GET("/cohorts.xlsx", exportHandler.ExportCohortsXLSX)
			exports.GET("/cohorts.csv", exportHandler.ExportCohortsCSV)
			exports.GET("/churn.xlsx", exportHandler.ExportChurnXLSX)
			exports.GET("/churn.csv", exportHandler.ExportChurnCSV)
		}
	}

	// Internal endpoints for service-to-service calls and CronJobs
	internal := router.Group("/internal")
	{
		internal.POST("/pipeline/run", retentionHandler.RunPipeline)
		internal.POST("/cohorts/rebuild", retentionHandler.RebuildCohorts)
	}

	// Start background worker
	pipelineWorker.Start()

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		logger.WithField("port", cfg.Port).Info("Starting retention-analytics-service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down retention-analytics-service")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipelineWorker.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// initDatabase sets up the database connection
func initDatabase(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// autoMigrate runs database migrations
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Customer{},
		&models.Order{},
		&models.CustomerFacts{},
		&models.RetentionSnapshot{},
		&models.StatusRollup{},
		&models.ChurnAssessment{},
		&models.CohortRecord{},
		&models.AlertDecision{},
	)
}

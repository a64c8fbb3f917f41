package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"moexboard/internal/config"
	"moexboard/internal/database"
	"moexboard/internal/handlers"
	"moexboard/internal/logger"
	"moexboard/internal/middleware"
	"moexboard/internal/moex"
	"moexboard/internal/scheduler"
	"moexboard/internal/services"
	syncpipe "moexboard/internal/sync"
	"moexboard/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom binding validators
	validator.Register()

	// Exchange client and fetchers
	httpClient := &http.Client{Timeout: appConfig.RequestTimeout}
	client := moex.NewClient(httpClient, appConfig.MoexBaseURL, appConfig.MoexLang)
	fetchers := moex.NewFetchers(client, log)

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	securityService := services.NewSecurityService(db)
	flowService := services.NewFundsFlowService(db)
	favoriteService := services.NewFavoriteService(db)
	notificationService := services.NewNotificationService(db)

	// Synchronization pipeline
	pipeline := syncpipe.New(
		fetchers,
		securityService,
		flowService,
		favoriteService,
		notificationService,
		log,
		appConfig.NotifyThresholdPct,
		appConfig.NotificationRetention,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	securityHandler := handlers.NewSecurityHandler(securityService, fetchers)
	flowHandler := handlers.NewFundsFlowHandler(flowService)
	favoriteHandler := handlers.NewFavoriteHandler(favoriteService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	syncHandler := handlers.NewSyncHandler(pipeline)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Sync-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Security routes
	securities := protected.Group("/securities")
	securities.GET("", securityHandler.ListSecurities)
	securities.GET("/stats", securityHandler.GetCategoryStats)
	securities.GET("/trending", securityHandler.GetTrending)
	securities.GET("/sectors", securityHandler.GetSectors)
	securities.GET("/index/:index", securityHandler.GetIndexComposition)
	securities.GET("/:secid", securityHandler.GetSecurity)

	// Funds-flow routes
	protected.GET("/funds-flow/trend", flowHandler.GetTrend)

	// Favorite routes
	favorites := protected.Group("/favorites")
	favorites.POST("", favoriteHandler.AddFavorite)
	favorites.GET("", favoriteHandler.ListFavorites)
	favorites.DELETE("/:secid", favoriteHandler.RemoveFavorite)

	// Notification routes
	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.ListNotifications)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)

	// Sync trigger routes (shared-secret, machine-to-machine)
	syncGroup := v1.Group("/sync")
	syncGroup.Use(middleware.SyncAuthMiddleware(appConfig.SyncAPIKey))
	syncGroup.POST("/securities/:category", syncHandler.SyncSecurities)
	syncGroup.POST("/funds-flow", syncHandler.SyncFundsFlow)
	syncGroup.POST("/cleanup", syncHandler.CleanupNotifications)

	// Recurring jobs
	if appConfig.SchedulerEnabled {
		sched, err := scheduler.New(pipeline, log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Stop the scheduler cleanly on SIGINT/SIGTERM.
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting moexboard backend server on port %s", appConfig.Port)
		errCh <- router.Run(":" + appConfig.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infof("Received %s, shutting down", sig)
		return nil
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ErfanAalam/MyFootFirst2-sub000/config"
	"github.com/ErfanAalam/MyFootFirst2-sub000/controllers"
	"github.com/ErfanAalam/MyFootFirst2-sub000/metrics"
	"github.com/ErfanAalam/MyFootFirst2-sub000/middleware"
	"github.com/ErfanAalam/MyFootFirst2-sub000/services"
)

const sweepInterval = time.Minute

func main() {
	// Basic logging
	log.Println("Starting foot scan API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	if err := config.ConnectDatabase(cfg.GetDatabaseURL(), cfg.LogLevel); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	scans := services.NewGormScanStore(config.GetDB())
	if err := scans.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := services.InitBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	var verifier services.TokenVerifier
	if cfg.AuthMode == config.AuthModeAuth0 {
		verifier = services.NewAuth0Service(cfg)
	}

	registry := controllers.NewSessionRegistry()
	sessions := controllers.NewSessionController(controllers.SessionControllerOptions{
		Registry:   registry,
		Validator:  services.NewSheetDetector(cfg.DetectorURL, cfg.DetectorTimeout),
		Photos:     services.NewLocalPhotoService(cfg.MaxPhotoEdge),
		Verifier:   verifier,
		Thresholds: cfg.Thresholds,
		CaptureDir: cfg.CaptureDir,
		Pipeline: services.NewUploadPipeline(services.UploadPipelineOptions{
			Blobs:      blobs,
			Scans:      scans,
			Next:       &services.QuestionnaireHandoff{BaseURL: cfg.QuestionnaireURL},
			PurgeOrder: cfg.PurgeOrder,
		}),
	})

	router := setupRouter(cfg, middleware.Authenticate(cfg), sessions, controllers.NewScanController(scans, blobs))

	go registry.RunSweeper(ctx, sweepInterval, cfg.SessionIdleTimeout)

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("Server is running on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	registry.CloseAll()
}

// setupRouter wires the public and authenticated routes
func setupRouter(cfg *config.Config, auth gin.HandlerFunc, sessions *controllers.SessionController, scans *controllers.ScanController) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", metrics.Handler())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)
	}

	protected := v1.Group("")
	protected.Use(auth)
	if cfg.RequiredScope != "" {
		protected.Use(middleware.RequireScope(cfg.RequiredScope))
	}
	sessions.RegisterRoutes(protected)
	scans.RegisterRoutes(protected)

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Foot scan API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not connected",
			},
		})
		return
	}

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}

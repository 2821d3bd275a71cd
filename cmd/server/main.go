package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"stepchat-backend/internal/config"
	"stepchat-backend/internal/database"
	"stepchat-backend/internal/handlers"
	"stepchat-backend/internal/middleware"
	"stepchat-backend/internal/services"
	"stepchat-backend/internal/supabase"
	"stepchat-backend/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database connection string
	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		log.Println("Warning: DATABASE_URL not set. Migrations will be skipped.")
		log.Println("Please set DATABASE_URL environment variable with your Supabase PostgreSQL connection string")
	}

	// Initialize worker client
	workerClient := worker.NewClient(cfg.WorkerBaseURL, cfg.WorkerAPIKey)

	// Initialize Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	// Create database client for direct queries
	var dbClient *supabase.DatabaseClient
	if dbURL != "" {
		var err error
		dbClient, err = supabase.NewDatabaseClient(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize database client: %v", err)
			log.Println("Database operations will be limited. Please configure DATABASE_URL properly.")
		} else {
			defer dbClient.Close()

			// Run migrations
			migrator, err := database.NewMigrator(dbURL)
			if err != nil {
				log.Printf("Warning: Failed to initialize migrator: %v", err)
			} else {
				defer migrator.Close()
				if err := migrator.Run(); err != nil {
					log.Printf("Warning: Migration failed: %v", err)
				} else {
					log.Println("Migrations completed successfully")
				}
			}
		}
	}

	// Initialize admission gate (only if dbClient is available)
	var admission *services.AdmissionService
	if dbClient != nil {
		admission = services.NewAdmissionService(dbClient, workerClient, realtimeClient,
			cfg.BaseURL+"/api/v1/webhooks/worker")
	}

	// Initialize handlers (dbClient might be nil, handlers should handle this)
	projectsHandler := handlers.NewProjectsHandler(dbClient, storageClient, admission)
	advanceHandler := handlers.NewAdvanceHandler(dbClient, admission)
	stepsHandler := handlers.NewStepsHandler(dbClient, admission)
	messagesHandler := handlers.NewMessagesHandler(dbClient)
	attachmentsHandler := handlers.NewAttachmentsHandler(dbClient, storageClient)
	statusHandler := handlers.NewStatusHandler(dbClient)
	var webhookStore handlers.StepEventStore
	if dbClient != nil {
		webhookStore = dbClient
	}
	webhookHandler := handlers.NewWebhookHandler(cfg, webhookStore, realtimeClient)

	// Setup router
	router := gin.Default()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Project routes
	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.PATCH("/projects/:project_id", projectsHandler.UpdateProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)

	// Workflow advancement
	api.POST("/projects/:project_id/advance", advanceHandler.Advance)
	api.GET("/projects/:project_id/steps", stepsHandler.ListSteps)
	api.POST("/steps/:step_result_id/select", stepsHandler.SelectOption)
	api.POST("/steps/:step_result_id/approve", stepsHandler.Approve)
	api.POST("/steps/:step_result_id/regenerate", stepsHandler.Regenerate)

	// Conversation read model and attachments
	api.GET("/projects/:project_id/messages", messagesHandler.GetMessages)
	api.POST("/projects/:project_id/attachments", attachmentsHandler.Upload)
	api.GET("/projects/:project_id/status", statusHandler.GetStatus)

	// Worker callback (no user auth, uses shared token)
	router.POST("/api/v1/webhooks/worker", webhookHandler.HandleStepEvent)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

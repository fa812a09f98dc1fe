package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"quarry/internal/auth"
	"quarry/internal/config"
	"quarry/internal/filterquery"
	"quarry/internal/handler"
	"quarry/internal/middleware"
	"quarry/internal/repository/postgres"
	"quarry/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create JWT verifier
	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	filterRepo := postgres.NewFilterRepository(repoConfig)
	favoriteRepo := postgres.NewFavoriteRepository(repoConfig)
	authRepo := postgres.NewAuthorizationRepository(repoConfig)
	issueFinder := postgres.NewIssueFinder(repoConfig)

	// Initialize the query parameter catalog
	catalog, err := filterquery.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load query parameter catalog: %v", err)
	}
	logger.Info("query parameter catalog initialized")

	// Create services
	filterService := service.NewFilterService(
		filterRepo,
		favoriteRepo,
		authRepo,
		issueFinder,
		filterquery.NewSerializer(),
		catalog,
		logger,
	)

	// Create handlers
	filterHandler := handler.NewFilterHandler(filterService, logger)
	issueHandler := handler.NewIssueHandler(filterService, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", filterHandler.HealthCheck)

	// Filter collection routes. Fixed segments must come before {id} routes.
	mux.HandleFunc("GET /api/filters", filterHandler.ListFilters)
	mux.HandleFunc("POST /api/filters", filterHandler.CreateFilter)
	mux.HandleFunc("GET /api/filters/shared", filterHandler.ListSharedFilters)
	mux.HandleFunc("GET /api/filters/favorites", filterHandler.ListFavoriteFilters)
	mux.HandleFunc("GET /api/filters/can-share", filterHandler.CanShare)

	// Filter routes
	mux.HandleFunc("GET /api/filters/{id}", filterHandler.GetFilter)
	mux.HandleFunc("PATCH /api/filters/{id}", filterHandler.UpdateFilter)
	mux.HandleFunc("PUT /api/filters/{id}/query", filterHandler.UpdateFilterQuery)
	mux.HandleFunc("DELETE /api/filters/{id}", filterHandler.DeleteFilter)
	mux.HandleFunc("POST /api/filters/{id}/copy", filterHandler.CopyFilter)
	mux.HandleFunc("POST /api/filters/{id}/favorite", filterHandler.ToggleFavorite)
	mux.HandleFunc("GET /api/filters/{id}/issues", issueHandler.ExecuteFilter)

	// Issue search routes
	mux.HandleFunc("POST /api/issues/search", issueHandler.SearchIssues)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	root = middleware.Auth(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

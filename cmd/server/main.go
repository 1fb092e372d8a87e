// Package main is the entry point for the fabrica API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fabrica/internal/core/auth"
	"fabrica/internal/core/config"
	"fabrica/internal/domain/allocate"
	"fabrica/internal/domain/commit"
	"fabrica/internal/domain/policy"
	"fabrica/internal/domain/registers/stock"
	"fabrica/internal/domain/resolve"
	v1 "fabrica/internal/infrastructure/http/v1"
	"fabrica/internal/infrastructure/http/v1/handlers"
	"fabrica/internal/infrastructure/storage/postgres"
	"fabrica/internal/infrastructure/storage/postgres/catalog_repo"
	"fabrica/internal/infrastructure/storage/postgres/document_repo"
	"fabrica/internal/infrastructure/storage/postgres/register_repo"
	"fabrica/pkg/logger"
	"fabrica/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting fabrica server")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)

	// --- Engine flags ---
	flags := config.FromEnv()
	log.Infow("engine flags",
		"auto_production", flags.AutoProduction,
		"allow_negative", flags.NegativeAvailable,
		"lots", flags.Lots,
	)

	// --- Repositories ---
	itemRepo := catalog_repo.NewItemRepo(txm)
	locationRepo := catalog_repo.NewLocationRepo(txm)
	recipeRepo := catalog_repo.NewRecipeRepo(txm)
	stockRepo := register_repo.NewStockRepo(txm, flags)
	operationRepo := document_repo.NewOperationRepo(txm)

	// --- Services ---
	stockSvc := stock.NewService(stockRepo, locationRepo, flags)
	numbers := numerator.New(pool)

	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// Production policy: CEL expressions over item attributes. Empty
	// expressions allow everything.
	var veto resolve.Veto
	targetExpr := getEnv("FABRICA_POLICY_TARGET", "")
	ingredientExpr := getEnv("FABRICA_POLICY_INGREDIENT", "")
	if targetExpr != "" || ingredientExpr != "" {
		engine, err := policy.New(itemRepo, targetExpr, ingredientExpr)
		if err != nil {
			log.Fatalw("failed to compile production policy", "error", err)
		}
		veto = engine
	}

	allocator := allocate.New(flags, itemRepo, stockSvc)
	backend := postgres.NewResolverBackend(stockSvc, recipeRepo, itemRepo, operationRepo, numbers, allocator)
	resolver := resolve.New(backend, backend, flags, veto)

	engine := commit.NewEngine(operationRepo, resolver, allocator, stockSvc, numbers, auditSvc, txm)

	// --- Auth ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(
		getEnv("JWT_SECRET", "change-me-in-production"),
	))
	var authHandler *handlers.AuthHandler
	if user := getEnv("API_USER", ""); user != "" {
		authHandler = handlers.NewAuthHandler(handlers.NewBaseHandler(), jwtService, []handlers.Credentials{
			{Username: user, Password: mustEnv("API_PASSWORD"), Roles: []string{"operator"}},
		})
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		AuthHandler:  authHandler,
		Engine:       engine,
		Items:        itemRepo,
		Locations:    locationRepo,
		Recipes:      recipeRepo,
		Documents:    operationRepo,
		Stock:        stockSvc,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

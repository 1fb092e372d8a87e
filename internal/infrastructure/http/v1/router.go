// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/domain/catalogs/location"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/domain/commit"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/registers/stock"
	"fabrica/internal/infrastructure/http/v1/handlers"
	"fabrica/internal/infrastructure/http/v1/middleware"
	"fabrica/internal/infrastructure/storage/postgres"
	"fabrica/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	// JWTValidator for token validation; AuthUsers for the token endpoint.
	JWTValidator middleware.JWTValidator
	AuthHandler  *handlers.AuthHandler

	Engine    *commit.Engine
	Items     item.Repository
	Locations location.Repository
	Recipes   recipe.Repository
	Documents documents.Repository
	Stock     *stock.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters).
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required).
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	apiV1 := router.Group("/api/v1")
	{
		if cfg.AuthHandler != nil {
			cfg.AuthHandler.RegisterRoutes(apiV1)
		}

		protected := apiV1.Group("")
		if cfg.JWTValidator != nil {
			protected.Use(middleware.Auth(cfg.JWTValidator))
		}

		handlers.NewItemHandler(base, cfg.Items).RegisterRoutes(protected)
		handlers.NewLocationHandler(base, cfg.Locations).RegisterRoutes(protected)
		handlers.NewRecipeHandler(base, cfg.Recipes).RegisterRoutes(protected)
		handlers.NewOperationHandler(base, cfg.Engine, cfg.Documents).RegisterRoutes(protected)
		handlers.NewStockHandler(base, cfg.Stock).RegisterRoutes(protected)
	}

	return router
}

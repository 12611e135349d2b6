package server

import (
	"github.com/abduss/cryptovault/internal/auth"
	"github.com/abduss/cryptovault/internal/blob"
	"github.com/abduss/cryptovault/internal/config"
	"github.com/abduss/cryptovault/internal/logger"
	"github.com/abduss/cryptovault/internal/metrics"
	"github.com/abduss/cryptovault/internal/share"
	"github.com/abduss/cryptovault/internal/vault"
	"github.com/gin-gonic/gin"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	DB           pinger
	BlobStore    blob.Store
	AuthService  *auth.Service
	VaultService *vault.Service
	ShareService *share.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))
		auth.RegisterProtectedRoutes(protected, deps.AuthService)

		if deps.VaultService != nil {
			vault.RegisterRoutes(protected, deps.VaultService)
		}
		if deps.ShareService != nil {
			share.RegisterRoutes(protected, deps.ShareService)
		}
	}

	return router
}

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailvault/mailvault/api/handlers"
	"github.com/mailvault/mailvault/api/middleware"
	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/internal/tracing"
	"github.com/mailvault/mailvault/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, cfg *config.Config, s *services.Services, repos *repository.Repositories) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// liveness probe, no auth
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILVAULT-API-KEY",
		ValidAPIKey: cfg.AppConfig.APIKey,
	})

	v1 := r.Group("/v1")
	v1.Use(apiKeyMiddleware)
	{
		accounts := v1.Group("/accounts")
		{
			accounts.GET("", handlers.ListAccounts(repos.AccountRepository))
			accounts.POST("", handlers.UpsertAccount(repos.AccountRepository, s.ListingCache, s.OAuthService))
			accounts.DELETE("/:email", handlers.RemoveAccount(repos.AccountRepository, s.ListingCache, s.OAuthService, s.ConnectionPool))
			accounts.GET("/:email/emails", handlers.ListEmails(s.EmailService))
			accounts.GET("/:email/emails/:uid", handlers.GetEmail(s.EmailService))
			accounts.POST("/:email/check", handlers.CheckAccountHealth(s.HealthService))
			accounts.DELETE("/:email/cache", handlers.InvalidateAccountCache(s.ListingCache))
		}

		emails := v1.Group("/emails")
		{
			emails.POST("/batch", handlers.BatchListEmails(s.EmailService))
		}

		sync := v1.Group("/sync")
		{
			sync.POST("/push", handlers.PushBackup(s.SyncService, cfg.FetchConfig.SyncConflictPolicy))
			sync.POST("/pull", handlers.PullBackup(s.SyncService, s.ListingCache, cfg.FetchConfig.SyncConflictPolicy))
		}

		health := v1.Group("/health")
		{
			health.POST("/sweep", handlers.RunHealthSweep(s.HealthService))
		}

		cache := v1.Group("/cache")
		{
			cache.DELETE("", handlers.ClearCache(s.ListingCache))
		}
	}
}

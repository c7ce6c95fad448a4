package services

import (
	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/repository"
	"github.com/mailvault/mailvault/services/cache"
	"github.com/mailvault/mailvault/services/events"
	"github.com/mailvault/mailvault/services/fetch"
	"github.com/mailvault/mailvault/services/health"
	"github.com/mailvault/mailvault/services/imap"
	"github.com/mailvault/mailvault/services/oauth"
	"github.com/mailvault/mailvault/services/sync"
)

type Services struct {
	OAuthService   interfaces.OAuthService
	SessionFactory interfaces.SessionFactory
	ConnectionPool interfaces.ConnectionPool
	ListingCache   interfaces.ListingCache
	EmailService   interfaces.EmailService
	HealthService  interfaces.HealthService
	SyncService    interfaces.SyncService
	EventPublisher interfaces.EventPublisher
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		var err error
		publisher, err = events.NewRabbitPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
	}

	oauthService := oauth.NewOAuthService(cfg.OAuthConfig, log, repos.AccountRepository)
	factory := imap.NewSessionFactory(cfg.IMAPConfig, log)
	pool := imap.NewConnectionPool(cfg.FetchConfig, log, factory)
	listingCache := cache.NewListingCache(cfg.FetchConfig)

	return &Services{
		OAuthService:   oauthService,
		SessionFactory: factory,
		ConnectionPool: pool,
		ListingCache:   listingCache,
		EmailService:   fetch.NewEmailService(cfg.FetchConfig, log, repos.AccountRepository, oauthService, pool, listingCache),
		HealthService:  health.NewHealthService(log, repos.AccountRepository, oauthService, factory, repos.HealthCheckRepository, publisher),
		SyncService:    sync.NewSyncService(log, repos.AccountRepository, repos.BackupStore, publisher, cfg.Tracing.ServiceName),
		EventPublisher: publisher,
	}, nil
}

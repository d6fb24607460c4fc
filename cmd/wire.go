package cmd

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/italosilva18/cte-mdfe-api-sub000/config"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/cache"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/database"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/messaging"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/repository"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/search"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/service"
)

// buildService wires the full ingestion pipeline from config. The cache,
// search and messaging collaborators degrade to nil when disabled or
// unreachable, the pipeline itself keeps working without them.
func buildService(cfg config.Config, logger *logrus.Logger) (service.Service, *gorm.DB, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}

	repo := repository.NewRepository(db)

	cacheClient, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize Redis cache, continuing without report caching")
		cacheClient = nil
	}

	var searchClient search.Client
	if cfg.Elastic.Enabled {
		searchClient, err = search.NewElasticClient(cfg.Elastic)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Elasticsearch client, continuing without search indexing")
			searchClient = nil
		}
	}

	var publisher messaging.Publisher
	if cfg.ServiceBus.Enabled {
		publisher, err = messaging.NewServiceBusPublisher(cfg.ServiceBus)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Service Bus publisher, continuing without notifications")
			publisher = nil
		}
	}

	svc := service.NewService(repo, cacheClient, searchClient, publisher, logger)
	return svc, db, nil
}

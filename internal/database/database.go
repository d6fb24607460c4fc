package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/italosilva18/cte-mdfe-api-sub000/config"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
)

// Connect establishes a connection to the database
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	logLevel := logger.Error
	if cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxConn)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Document{},
		&models.Identification{},
		&models.Party{},
		&models.Freight{},
		&models.FreightComponent{},
		&models.Tax{},
		&models.Cargo{},
		&models.CargoQuantity{},
		&models.TransportedDocument{},
		&models.Insurance{},
		&models.RoadModal{},
		&models.Vehicle{},
		&models.Driver{},
		&models.AuthorizedViewer{},
		&models.TechResponsible{},
		&models.Protocol{},
		&models.Supplement{},
		&models.Totals{},
		&models.DocumentEvent{},
	)
}

// IsRecordNotFoundError checks if an error is a record not found error
func IsRecordNotFoundError(err error) bool {
	return err == gorm.ErrRecordNotFound
}

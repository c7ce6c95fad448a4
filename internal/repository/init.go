package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/models"
)

type Repositories struct {
	AccountRepository     interfaces.AccountRepository
	BackupStore           interfaces.BackupStore
	HealthCheckRepository interfaces.HealthCheckRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AccountRepository:     NewAccountRepository(db),
		BackupStore:           NewBackupRepository(db),
		HealthCheckRepository: NewHealthCheckRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Account{},
		&models.AccountBackup{},
		&models.AccountHealthCheck{},
	)

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}

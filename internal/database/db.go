package database

import (
	"fmt"
	"time"

	"salesledger/internal/config"
	"salesledger/internal/logger"
	"salesledger/internal/model"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection opens the GORM pool, installs tracing and migrates the ledger schema
func NewConnection(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns >= 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
		logger.Get().Warnf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the ledger schema. Parents come before children
// so foreign keys resolve.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.CustomerGroup{},
		&model.Customer{},
		&model.Product{},
		&model.StockLog{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.OrderReturn{},
		&model.OrderReturnItem{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}

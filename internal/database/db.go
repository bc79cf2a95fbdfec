package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"control-advisor/internal/models"
)

const (
	maxAttempts  = 10
	retryTimeout = 2 * time.Second
)

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// Open подключается к БД, повторяя попытки, пока база поднимается.
func Open(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	d, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for i := 1; i <= maxAttempts; i++ {
		log.Info("trying to connect to DB", zap.Int("attempt", i), zap.Int("max", maxAttempts))

		db, err = gorm.Open(d, &gorm.Config{
			Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
		})
		if err == nil {
			log.Info("connected to DB successfully", zap.String("driver", driver))
			return db, nil
		}

		log.Warn("failed to connect to DB", zap.Error(err))
		if i < maxAttempts {
			time.Sleep(retryTimeout)
		}
	}
	return nil, fmt.Errorf("failed to connect to db after %d attempts: %w", maxAttempts, err)
}

// миграции
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Organization{},
		&models.Process{},
		&models.Risk{},
		&models.MaturityAssessment{},
		&models.StandardControl{},
		&models.AsIsControl{},
		&models.Gap{},
		&models.ToBeControl{},
		&models.MaturitySelection{},
		&models.GapAnalysisSnapshot{},
		&models.RiskControl{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

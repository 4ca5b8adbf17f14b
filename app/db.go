package app

import (
	"context"

	"github.com/fiffu/timetablewatch/config"
	"github.com/fiffu/timetablewatch/lib/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormLog := logger.Default.LogMode(logger.Warn)
	if cfg.IsProduction() {
		gormLog = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}
	log.Sugar().Infow("Database started", "path", cfg.DatabasePath)

	log.Info("Starting migrations")
	if err := store.Migrate(db); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func NewStore(cfg *config.Config, log *zap.Logger, db *gorm.DB, reg prometheus.Registerer) store.Store {
	return store.NewGormStore(db, log, cfg.Scraper.BatchSize, reg)
}

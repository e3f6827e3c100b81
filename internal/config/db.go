package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDb connects to the database selected by DB_TYPE.
func OpenDb(cfg *Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	if cfg.Production() {
		gormConfig.Logger = logger.Default.LogMode(logger.Error)
	}

	switch cfg.DbType {
	case DbSqlite:
		dsn := cfg.DbDSN
		if !strings.Contains(dsn, "_busy_timeout") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_busy_timeout=5000"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case DbPostgres:
		return gorm.Open(postgres.Open(cfg.DbDSN), gormConfig)
	}

	return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DbType)
}

// GetDb is OpenDb for command entry points; it exits on failure.
func GetDb(cfg *Config) *gorm.DB {
	db, err := OpenDb(cfg)
	if err != nil {
		logrus.Fatalf("error connecting to %s database: %v", cfg.DbType, err)
	}
	return db
}

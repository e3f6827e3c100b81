package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresEnv points the tests at a disposable postgres database instead of sqlite.
const PostgresEnv = "DIGIDOC_TEST_POSTGRES_DSN"

// NewTestDB opens a fresh migrated database that lives as long as the test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	_ = os.Setenv("ENV", "test")

	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	if dsn := os.Getenv(PostgresEnv); dsn != "" {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		require.NoError(t, err)
		resetPostgres(t, db)
	} else {
		path := filepath.Join(t.TempDir(), "digidoc.db")
		db, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), cfg)
		require.NoError(t, err)

		sqlDB, err := db.DB()
		require.NoError(t, err)
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	require.NoError(t, model.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func resetPostgres(t testing.TB, db *gorm.DB) {
	for _, table := range []string{"documents", "audit_events", "access_requests", "approval_policies", "retention_policies", "settings"} {
		require.NoError(t, db.Exec("DROP TABLE IF EXISTS "+table).Error)
	}
}

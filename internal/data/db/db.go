package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
	"github.com/kravdesk/kravdesk-backend/internal/platform/envutil"
)

// Open connects to Postgres using DATABASE_URL and migrates the schema.
func Open() (*gorm.DB, error) {
	dsn := envutil.String("DATABASE_URL", "")
	if dsn == "" {
		return nil, fmt.Errorf("missing DATABASE_URL")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&domain.Requirement{},
		&domain.CategoryMapping{},
		&domain.ImportRun{},
	)
}

// Package gormstore implements the repositories on a relational database
// through gorm. Postgres in deployment, sqlite in tests.
package gormstore

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	pkgerrors "devconsole/pkg/errors"
)

// OpenPostgres connects to dsn and migrates the schema
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), logger)
}

// Open connects through any gorm dialector and migrates the schema
func Open(dialector gorm.Dialector, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("open database", err)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, pkgerrors.NewDatabaseError("migrate schema", err)
	}

	logger.Info("Database connected and migrated", zap.String("dialect", dialector.Name()))
	return db, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"socialfeed/internal/config"
	"socialfeed/internal/observability"
)

// item is one row of local storage.
type item struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (item) TableName() string { return "local_storage_items" }

// gormLogger routes GORM logs through slog and ignores ErrRecordNotFound.
type gormLogger struct {
	logger *slog.Logger
	Config logger.Config
}

func newGormLogger() *gormLogger {
	return &gormLogger{
		logger: observability.Logger,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.Config.LogLevel = level
	return &newLogger
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed and slow statements. Values are never logged: the rows hold tokens.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.Config.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		_, rows := fc()
		l.logger.ErrorContext(ctx, "local storage query error",
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= logger.Warn:
		_, rows := fc()
		l.logger.WarnContext(ctx, "local storage slow query",
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// SQLStorage keeps local storage in a gorm-managed table.
type SQLStorage struct {
	db      *gorm.DB
	backend string
}

var _ Storage = (*SQLStorage)(nil)

// OpenSQL connects with the sqlite (file path) or postgres (DSN) dialect and
// migrates the storage table.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStorage, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.StorageSQLite:
		dialector = sqlite.Open(dsn)
	case config.StoragePostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s storage: %w", driver, err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	s := NewSQLStorage(db, driver)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}

	observability.Logger.Info("Local storage connected", slog.String("driver", driver))
	return s, nil
}

// NewSQLStorage wraps an existing connection. Call Migrate before first use
// on a fresh database.
func NewSQLStorage(db *gorm.DB, backend string) *SQLStorage {
	return &SQLStorage{db: db, backend: backend}
}

func (s *SQLStorage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&item{}); err != nil {
		return fmt.Errorf("migrating local storage: %w", err)
	}
	return nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) (string, error) {
	var it item
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "get").Inc()
		return "", fmt.Errorf("reading %q: %w", key, err)
	}
	return it.Value, nil
}

func (s *SQLStorage) Set(ctx context.Context, key, value string) error {
	it := item{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&it).Error
	if err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "set").Inc()
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (s *SQLStorage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&item{}).Error; err != nil {
		observability.StorageErrors.WithLabelValues(s.backend, "remove").Inc()
		return fmt.Errorf("removing keys: %w", err)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Package repo implements the data persistence layer for attendance records
// and event receipts, backed by GORM on pure-Go SQLite. This file contains
// database bootstrapping and schema migration.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-attendance-bot/internal/domain"
)

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

const slowQueryThreshold = 250 * time.Millisecond

// Option tunes OpenSQLite.
type Option func(*openOptions)

type openOptions struct {
	log      zerolog.Logger
	maxConns int
}

// WithLogger routes GORM's slow-query and error lines to l.
func WithLogger(l zerolog.Logger) Option { return func(o *openOptions) { o.log = l } }

// WithMaxConns caps open connections (default 10).
func WithMaxConns(n int) Option { return func(o *openOptions) { o.maxConns = n } }

// OpenSQLite opens (or creates) the database at path and installs the
// OpenTelemetry tracing plugin so every query becomes a span under the
// caller's context.
func OpenSQLite(path string, opts ...Option) (*gorm.DB, error) {
	o := openOptions{log: zerolog.Nop(), maxConns: 10}
	for _, opt := range opts {
		opt(&o)
	}

	// Fail early if the parent directory is missing; sqlite reports it as
	// "out of memory (14)" on some platforms.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: logger.New(gormWriter{o.log}, logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.maxConns)
	sqlDB.SetMaxIdleConns(o.maxConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	return path + sep + strings.Join(params, "&")
}

// gormWriter adapts zerolog to GORM's logger.Writer. GORM only prints at the
// configured Warn level, so every line is a warning.
type gormWriter struct{ log zerolog.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// AutoMigrate creates or updates the attendance and receipt tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.AttendanceRecord{},
		&domain.EventReceipt{},
	)
}

// Package keystore persists P25 key material received via the session's
// key-response callback (§3 KeysetItem/KeyItem, §4.10 KMM ModifyKey) so a
// restarted peer does not need a fresh key request for already-provisioned
// algorithms. It adapts the teacher's pkg/database (a GORM/sqlite DMR-ID
// cache) to this module's key-cache domain: same driver, same migration
// and WAL-mode setup, same logger wiring.
package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dbehnke/fne-peer/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gorm.io/driver/sqlite"
	_ "modernc.org/sqlite"
)

// Config holds key-store configuration.
type Config struct {
	Path string // Path to SQLite database file
}

// Store wraps the GORM database connection holding cached keysets.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open creates or opens the key-store database at cfg.Path, running
// migrations for the keyset/key-item tables.
func Open(cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "fne-peer-keys.db"
	}
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	log = log.WithComponent("keystore")

	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("keystore: failed to create directory: %w", err)
		}
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to get database instance: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("keystore: failed to enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("keystore: failed to set synchronous mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("keystore: failed to set busy timeout: %w", err)
	}

	if err := db.AutoMigrate(&keysetRecord{}, &keyItemRecord{}); err != nil {
		return nil, fmt.Errorf("keystore: failed to run migrations: %w", err)
	}

	log.Info("key store initialized", logger.String("path", cfg.Path))

	return &Store{db: db, logger: log}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

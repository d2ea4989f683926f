package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/logger"
)

// dsnOptions are applied to every pooled connection by the sqlite3 driver.
const dsnOptions = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"

// PathLoader resolves store locations. It is called again on Reconnect.
type PathLoader func() config.Paths

// Options configures a ConnectionManager.
type Options struct {
	// Paths overrides the resolved locations; empty fields fall back to Loader.
	Paths config.Paths
	// Loader resolves locations from the environment. Defaults to config.ResolvePaths.
	Loader PathLoader
	// CreateIfMissing lets SQLite create absent database files.
	CreateIfMissing bool
	// Metrics receives statement counters. May be nil.
	Metrics *Metrics
}

// ConnectionManager owns the Calibre and Talebook connections. An open
// failure leaves that store nil and unavailable rather than failing Init.
type ConnectionManager struct {
	opts Options

	mu       sync.RWMutex
	paths    config.Paths
	calibre  *gorm.DB
	talebook *gorm.DB
}

// NewConnectionManager creates a manager; no connection is opened until Init.
func NewConnectionManager(opts Options) *ConnectionManager {
	if opts.Loader == nil {
		explicit := opts.Paths
		opts.Loader = func() config.Paths { return config.ResolvePaths(explicit) }
	}
	return &ConnectionManager{opts: opts}
}

// Init opens both stores. Stores that are already open are left alone.
func (m *ConnectionManager) Init(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked(ctx)
}

func (m *ConnectionManager) initLocked(ctx context.Context) {
	if m.calibre != nil && m.talebook != nil {
		return
	}
	m.paths = m.opts.Loader()

	if m.calibre == nil {
		m.calibre = m.open(ctx, StoreCalibre, m.paths.Calibre)
	}
	if m.talebook == nil {
		m.talebook = m.open(ctx, StoreTalebook, m.paths.Talebook)
	}
}

func (m *ConnectionManager) open(ctx context.Context, store Store, path string) *gorm.DB {
	db, err := openSQLite(ctx, store, path, m.opts.CreateIfMissing)
	if err != nil {
		log.Warn().Err(err).Str("store", string(store)).Str("path", path).Msg("database unavailable")
		return nil
	}
	log.Info().Str("store", string(store)).Str("path", path).Msg("database connected")
	return db
}

func openSQLite(ctx context.Context, store Store, path string, create bool) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}
	if create {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: DriverName, DSN: path + dsnOptions}), &gorm.Config{
		Logger: logger.NewGormLogger(string(store)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Reconnect closes both stores and reopens them with freshly loaded paths.
func (m *ConnectionManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.closeLocked()
	m.initLocked(ctx)
	return err
}

// Close closes both stores.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ConnectionManager) closeLocked() error {
	var errs []error
	for _, db := range []*gorm.DB{m.calibre, m.talebook} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.calibre, m.talebook = nil, nil
	return errors.Join(errs...)
}

// Calibre returns the bibliographic connection, or nil when unavailable.
func (m *ConnectionManager) Calibre() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calibre
}

// Talebook returns the extension connection, or nil when unavailable.
func (m *ConnectionManager) Talebook() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.talebook
}

func (m *ConnectionManager) IsCalibreAvailable() bool {
	return m.Calibre() != nil
}

func (m *ConnectionManager) IsTalebookAvailable() bool {
	return m.Talebook() != nil
}

// Paths returns the locations used by the last Init or Reconnect.
func (m *ConnectionManager) Paths() config.Paths {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Metrics returns the statement metrics shared by repositories built on this manager.
func (m *ConnectionManager) Metrics() *Metrics {
	return m.opts.Metrics
}

// Ping checks both stores and returns a status per store name.
func (m *ConnectionManager) Ping(ctx context.Context) map[Store]error {
	result := map[Store]error{}
	for store, db := range map[Store]*gorm.DB{StoreCalibre: m.Calibre(), StoreTalebook: m.Talebook()} {
		if db == nil {
			result[store] = ErrStoreUnavailable
			continue
		}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		result[store] = err
	}
	return result
}

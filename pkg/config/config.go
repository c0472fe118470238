// Package config loads the engine configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"pagedb/pkg/concurrency/lock"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/logging"
	"pagedb/pkg/memory"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/storage/pagefile"
	"pagedb/pkg/storage/sqlitestore"
)

const configComponent = "Config"

// Page store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the engine configuration.
type Config struct {
	// DatabaseVersion selects the on-disk layout. Only page.DatabaseVersion
	// is supported.
	DatabaseVersion uint32 `yaml:"database_version"`

	// DataDir holds the page files, the SQLite page database and the log.
	DataDir string `yaml:"data_dir"`

	Store   StoreConfig    `yaml:"store"`
	WAL     WALConfig      `yaml:"wal"`
	Locks   LocksConfig    `yaml:"locks"`
	Scan    ScanConfig     `yaml:"scan"`
	Logging logging.Config `yaml:"logging"`
}

// StoreConfig selects where pages are kept.
type StoreConfig struct {
	// Driver is "file" (one file per table) or "sqlite".
	Driver string `yaml:"driver"`

	// SQLitePath is the SQLite database file, relative to DataDir.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	// CachePages is how many page buffers are kept in memory in front of
	// the store. Zero disables the cache.
	CachePages int `yaml:"cache_pages"`
}

// WALConfig configures the transaction log.
type WALConfig struct {
	// Path of the log file, relative to DataDir.
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"buffer_size"`
}

// LocksConfig bounds how long callers wait for locks.
type LocksConfig struct {
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ScanConfig tunes multi-page scans.
type ScanConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DatabaseVersion: page.DatabaseVersion,
		DataDir:         "data",
		Store: StoreConfig{
			Driver:     DriverFile,
			SQLitePath: "pages.db",
			CachePages: 256,
		},
		WAL: WALConfig{
			Path:       "transactions.log",
			BufferSize: 64 * 1024,
		},
		Locks: LocksConfig{
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Scan: ScanConfig{Workers: storage.DefaultScanWorkers},
		Logging: logging.Config{
			Level:  logging.LevelInfo,
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "Load", configComponent).WithDetail("path %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeConfigInvalid,
			"invalid configuration: %v", err).In("Parse", configComponent)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseVersion != page.DatabaseVersion:
		return invalid("database_version %d is not supported, expected %d", c.DatabaseVersion, page.DatabaseVersion)
	case c.DataDir == "":
		return invalid("data_dir cannot be empty")
	case c.Store.Driver != DriverFile && c.Store.Driver != DriverSQLite:
		return invalid("store.driver must be %q or %q, got %q", DriverFile, DriverSQLite, c.Store.Driver)
	case c.Store.Driver == DriverSQLite && c.Store.SQLitePath == "":
		return invalid("store.sqlite_path cannot be empty with the sqlite driver")
	case c.Store.CachePages < 0:
		return invalid("store.cache_pages cannot be negative, got %d", c.Store.CachePages)
	case c.WAL.Path == "":
		return invalid("wal.path cannot be empty")
	case c.WAL.BufferSize <= 0:
		return invalid("wal.buffer_size must be positive, got %d", c.WAL.BufferSize)
	case c.Locks.ReadTimeout <= 0 || c.Locks.WriteTimeout <= 0:
		return invalid("lock timeouts must be positive")
	case c.Scan.Workers <= 0:
		return invalid("scan.workers must be positive, got %d", c.Scan.Workers)
	}
	return nil
}

// LockTimeouts returns the lock wait bounds.
func (c *Config) LockTimeouts() lock.Timeouts {
	return lock.Timeouts{Read: c.Locks.ReadTimeout, Write: c.Locks.WriteTimeout}
}

// WALPath returns the location of the transaction log.
func (c *Config) WALPath() primitives.Filepath {
	return c.resolve(c.WAL.Path)
}

// OpenStore opens the configured page store, behind a page cache unless
// store.cache_pages is zero.
func (c *Config) OpenStore() (storage.PageStore, error) {
	store, err := c.openDriver()
	if err != nil {
		return nil, err
	}
	if c.Store.CachePages == 0 {
		return store, nil
	}
	return memory.NewCachedStore(store, c.Store.CachePages), nil
}

func (c *Config) openDriver() (storage.PageStore, error) {
	if c.Store.Driver == DriverSQLite {
		path := c.resolve(c.Store.SQLitePath)
		if err := path.MkdirAll(0o750); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeIOFailure, "OpenStore", configComponent)
		}
		store, err := sqlitestore.Open(path.String())
		if err != nil {
			return nil, dberr.Wrap(err, dberr.CodeIOFailure, "OpenStore", configComponent)
		}
		return store, nil
	}

	store, err := pagefile.Open(primitives.Filepath(c.DataDir))
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (c *Config) resolve(p string) primitives.Filepath {
	if filepath.IsAbs(p) {
		return primitives.Filepath(p)
	}
	return primitives.Filepath(c.DataDir).Join(p)
}

func invalid(format string, args ...any) error {
	return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeConfigInvalid, format, args...).In("Validate", configComponent)
}

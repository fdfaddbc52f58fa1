// Package config loads om's settings from a YAML file with environment
// overrides. A loaded Config is treated as read-only.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all settings of the om binary.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Content  ContentConfig  `yaml:"content"`
	Search   SearchConfig   `yaml:"search"`
	Log      LogConfig      `yaml:"log"`

	// IncludeArchived is the default for listing and search commands. It is
	// passed per query, never held as process state.
	IncludeArchived bool `yaml:"include_archived" env:"ONEMODEL_INCLUDE_ARCHIVED"`
}

// DatabaseConfig selects the relational engine.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"ONEMODEL_DB_DRIVER"` // sqlite | postgres
	Path   string `yaml:"path" env:"ONEMODEL_SQLITE_PATH"`
	DSN    string `yaml:"dsn" env:"ONEMODEL_POSTGRES_DSN"`
}

// ContentConfig selects where file-attribute content lives.
type ContentConfig struct {
	Driver string   `yaml:"driver" env:"ONEMODEL_CONTENT_DRIVER"` // db | fs | s3
	Dir    string   `yaml:"dir" env:"ONEMODEL_CONTENT_DIR"`
	S3     S3Config `yaml:"s3"`
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket" env:"ONEMODEL_S3_BUCKET"`
	Region    string `yaml:"region" env:"ONEMODEL_S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"ONEMODEL_S3_ENDPOINT"`
	PathStyle bool   `yaml:"path_style" env:"ONEMODEL_S3_PATH_STYLE"`
}

// SearchConfig tunes the graph search.
type SearchConfig struct {
	Depth int `yaml:"depth" env:"ONEMODEL_SEARCH_DEPTH"`
}

// LogConfig sets the CLI log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level" env:"ONEMODEL_LOG_LEVEL"`
}

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ContentDB = "db"
	ContentFS = "fs"
	ContentS3 = "s3"
)

// DefaultSearchDepth matches the store's default graph search depth.
const DefaultSearchDepth = 20

// Defaults returns the configuration used when no file or variable says
// otherwise.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   defaultDatabasePath(),
		},
		Content: ContentConfig{Driver: ContentDB},
		Search:  SearchConfig{Depth: DefaultSearchDepth},
		Log:     LogConfig{Level: "info"},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "onemodel.db"
	}
	return filepath.Join(home, ".onemodel", "onemodel.db")
}

// Load reads the YAML file at path over the defaults, then applies
// ONEMODEL_* environment variables. A missing file is not an error when
// path is empty.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Content.Driver = strings.ToLower(strings.TrimSpace(cfg.Content.Driver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Content.Driver {
	case ContentDB:
	case ContentFS:
		if c.Content.Dir == "" {
			errs = append(errs, errors.New("content.dir is required for the fs content driver"))
		}
	case ContentS3:
		if c.Content.S3.Bucket == "" {
			errs = append(errs, errors.New("content.s3.bucket is required for the s3 content driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown content driver %q", c.Content.Driver))
	}

	if c.Search.Depth <= 0 {
		errs = append(errs, fmt.Errorf("search.depth must be positive, got %d", c.Search.Depth))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level for log/slog.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// DatabaseDSN returns the connection string for the configured driver.
func (d DatabaseConfig) DatabaseDSN() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// Package config loads gradebook settings from a YAML file, a .env file and
// GRADEBOOK_* environment variables, in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRADEBOOK_"

// Config holds the full gradebook configuration.
type Config struct {
	DB         DBConfig       `yaml:"db"`
	Extract    ExtractConfig  `yaml:"extract"`
	UploadsDir string         `yaml:"uploads_dir" validate:"required"`
	Queue      QueueConfig    `yaml:"queue"`
	Log        LogConfig      `yaml:"log"`
	Accounts   AccountsConfig `yaml:"accounts"`
}

// DBConfig selects the database.
type DBConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// ExtractConfig bounds document extraction.
type ExtractConfig struct {
	MaxFileMB int `yaml:"max_file_mb" validate:"gt=0,lte=2048"`
}

// QueueConfig tunes the ingestion job queue.
type QueueConfig struct {
	Visibility   time.Duration `yaml:"visibility" validate:"gt=0"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	MaxAttempts  int           `yaml:"max_attempts" validate:"gte=1,lte=100"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AccountsConfig controls student account provisioning.
type AccountsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BcryptCost int  `yaml:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// Default returns sane defaults.
func Default() *Config {
	return &Config{
		DB:         DBConfig{Driver: "sqlite", DSN: "data/gradebook.db"},
		Extract:    ExtractConfig{MaxFileMB: 50},
		UploadsDir: "data/uploads",
		Queue: QueueConfig{
			Visibility:   5 * time.Minute,
			PollInterval: time.Second,
			MaxAttempts:  3,
		},
		Log:      LogConfig{Level: "info", Format: "text"},
		Accounts: AccountsConfig{Enabled: true, BcryptCost: 10},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// Environment variables are read after the .env files (missing ones are
// ignored) have been applied.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overrides fields from GRADEBOOK_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DB_DRIVER":   &c.DB.Driver,
		"DB_DSN":      &c.DB.DSN,
		"UPLOADS_DIR": &c.UploadsDir,
		"LOG_LEVEL":   &c.Log.Level,
		"LOG_FORMAT":  &c.Log.Format,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_FILE_MB":        &c.Extract.MaxFileMB,
		"QUEUE_MAX_ATTEMPTS": &c.Queue.MaxAttempts,
		"BCRYPT_COST":        &c.Accounts.BcryptCost,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durs := map[string]*time.Duration{
		"QUEUE_VISIBILITY":    &c.Queue.Visibility,
		"QUEUE_POLL_INTERVAL": &c.Queue.PollInterval,
	}
	for key, dst := range durs {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup(EnvPrefix + "ACCOUNTS_ENABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sACCOUNTS_ENABLED: %w", EnvPrefix, err)
		}
		c.Accounts.Enabled = b
	}
	return nil
}

var validate = validator.New()

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MaxFileBytes returns the extraction size limit in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.Extract.MaxFileMB) * 1024 * 1024 }

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file written by init and read by default.
const FileName = "stmtimport.yaml"

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Environment variables that override the file.
const (
	EnvDatabaseDSN    = "STMTIMPORT_DATABASE_DSN"
	EnvDatabaseDriver = "STMTIMPORT_DATABASE_DRIVER"
	EnvLogLevel       = "STMTIMPORT_LOG_LEVEL"
)

// Config represents the top-level stmtimport.yaml configuration.
type Config struct {
	Database     DatabaseConfig `yaml:"database"`
	Import       ImportConfig   `yaml:"import"`
	Rules        RulesConfig    `yaml:"rules"`
	Logging      LoggingConfig  `yaml:"logging"`
	Server       ServerConfig   `yaml:"server"`
	BankAccounts []BankAccount  `yaml:"bank_accounts,omitempty"`
}

// DatabaseConfig selects the ledger store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"` // file path for sqlite, URL for postgres
	MaxConns int    `yaml:"max_conns,omitempty"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	MaxSourceBytes int64         `yaml:"max_source_bytes"`
	ProgressEvery  int           `yaml:"progress_every"`
	CommitTimeout  time.Duration `yaml:"commit_timeout"`
	InboxDir       string        `yaml:"inbox_dir"`
	LogDir         string        `yaml:"log_dir"`
}

// RulesConfig locates the categorization rules file.
type RulesConfig struct {
	File string `yaml:"file"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BankAccount is an account statements can be imported into.
type BankAccount struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	LastFour string `yaml:"last_four,omitempty"`
}

// Load reads a stmtimport.yaml file from disk. Fields missing from the file
// keep their defaults. A .env file next to the config is loaded first, and the
// STMTIMPORT_* variables override file values.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadDotEnv sets variables from a .env file without overriding ones already
// present in the environment.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvDatabaseDriver); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "ledger.db",
		},
		Import: ImportConfig{
			MaxSourceBytes: 10 << 20,
			ProgressEvery:  100,
			CommitTimeout:  2 * time.Minute,
			InboxDir:       "import",
			LogDir:         "logs",
		},
		Rules: RulesConfig{
			File: "rules/categorization-rules.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Validate checks that the configuration is usable and reports every problem
// found.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be %q or %q", c.Database.Driver, DriverSQLite, DriverPostgres))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Database.MaxConns < 0 {
		errs = append(errs, "database.max_conns must be non-negative")
	}

	if c.Import.MaxSourceBytes <= 0 {
		errs = append(errs, "import.max_source_bytes must be positive")
	}
	if c.Import.ProgressEvery <= 0 {
		errs = append(errs, "import.progress_every must be positive")
	}
	if c.Import.CommitTimeout <= 0 {
		errs = append(errs, "import.commit_timeout must be positive")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}

	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}

	seen := make(map[string]bool, len(c.BankAccounts))
	for i, a := range c.BankAccounts {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("bank_accounts[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("bank_accounts[%d].id %q is duplicated", i, a.ID))
		}
		seen[a.ID] = true
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// KnowsAccount reports whether id may be imported into. With no bank accounts
// configured every id is accepted.
func (c *Config) KnowsAccount(id string) bool {
	if len(c.BankAccounts) == 0 {
		return true
	}
	for _, a := range c.BankAccounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Resolve returns p relative to the project root unless it is absolute.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Package config loads service configuration.
//
// Values are layered: built-in defaults, then an optional YAML file
// (DISPATCH_CONFIG or --config), then environment variables. A .env file
// in the working directory or up to two parents is loaded into the
// environment first.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arnavshah/dispatch-api-go/pkg/matching"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Database selects and locates the persistence backend.
	Database DatabaseConfig `yaml:"database"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Auth configures operator tokens.
	Auth AuthConfig `yaml:"auth"`

	// Matching tunes the recommendation engine.
	Matching MatchingConfig `yaml:"matching"`

	// Ledger configures commit behaviour.
	Ledger LedgerConfig `yaml:"ledger"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port to listen on.
	// Default: 8000
	Port string `yaml:"port"`

	// GinMode is passed to gin.SetMode.
	// Default: release
	GinMode string `yaml:"gin_mode"`
}

// DatabaseConfig selects the persistence backend. When URL is set
// PostgreSQL is used; otherwise a SQLite file at Path.
type DatabaseConfig struct {
	URL string `yaml:"url"`

	// Path of the SQLite database file.
	// Default: dispatch.db
	Path string `yaml:"path"`

	// Disabled keeps all state in memory.
	Disabled bool `yaml:"disabled"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is json or text.
	// Default: json
	Format string `yaml:"format"`
}

// AuthConfig configures operator tokens. Tokens only attribute actions to
// an actor; they never gate access unless RequireToken is set.
type AuthConfig struct {
	// JWTSecret signs and verifies operator tokens. Empty disables
	// token verification.
	JWTSecret string `yaml:"jwt_secret"`

	// RequireToken rejects mutating calls without a valid token.
	RequireToken bool `yaml:"require_token"`
}

// MatchingConfig tunes the recommendation engine.
type MatchingConfig struct {
	// Weights balance proximity, specialization, reliability and load.
	// Zero weights fall back to the engine defaults.
	Weights matching.ScoreWeights `yaml:"weights"`

	// TopK is the number of primary candidates returned.
	// Default: 2
	TopK int `yaml:"top_k"`

	// ProximityHalfLife is the ETA at which the proximity signal halves.
	// Default: 20m
	ProximityHalfLife time.Duration `yaml:"proximity_half_life"`

	// AverageSpeedKmh feeds the great-circle ETA estimate.
	// Default: 40
	AverageSpeedKmh float64 `yaml:"average_speed_kmh"`
}

// LedgerConfig configures commit behaviour.
type LedgerConfig struct {
	// LockTimeout bounds the wait for a per-entity lock.
	// Default: 2s
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// RequireApproval only allows commits against approved requests.
	RequireApproval bool `yaml:"require_approval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8000", GinMode: "release"},
		Database: DatabaseConfig{Path: "dispatch.db"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Matching: MatchingConfig{
			Weights:           matching.DefaultWeights,
			TopK:              matching.DefaultTopK,
			ProximityHalfLife: matching.DefaultHalfLife,
			AverageSpeedKmh:   matching.DefaultSpeedKmh,
		},
		Ledger: LedgerConfig{LockTimeout: 2 * time.Second},
	}
}

// LoadDotEnv loads the first .env found in the working directory or one of
// its two parents.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// DISPATCH_CONFIG when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("DISPATCH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("PORT", &c.Server.Port)
	str("GIN_MODE", &c.Server.GinMode)
	str("DATABASE_URL", &c.Database.URL)
	str("DATA_PATH", &c.Database.Path)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	if err := boolean("REQUIRE_TOKEN", &c.Auth.RequireToken); err != nil {
		return err
	}
	if err := boolean("REQUIRE_APPROVAL", &c.Ledger.RequireApproval); err != nil {
		return err
	}
	if err := boolean("DISABLE_PERSISTENCE", &c.Database.Disabled); err != nil {
		return err
	}
	if v, ok := lookup("LOCK_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LOCK_TIMEOUT: %w", err)
		}
		c.Ledger.LockTimeout = d
	}
	if v, ok := lookup("MATCHING_TOP_K"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MATCHING_TOP_K: %w", err)
		}
		c.Matching.TopK = n
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be debug, release or test, got %q", c.Server.GinMode)
	}
	if c.Matching.TopK < 1 {
		return fmt.Errorf("matching.top_k must be at least 1, got %d", c.Matching.TopK)
	}
	w := c.Matching.Weights
	if w.Proximity < 0 || w.Specialization < 0 || w.Reliability < 0 || w.Load < 0 {
		return fmt.Errorf("matching.weights must not be negative")
	}
	if c.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("ledger.lock_timeout must be positive")
	}
	if c.Auth.RequireToken && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.require_token needs auth.jwt_secret")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the slog logger described by the logging config.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

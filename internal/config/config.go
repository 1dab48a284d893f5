package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Facestab/internal/calc/facestab"
)

// Config holds the service and solver configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Solver  SolverConfig  `yaml:"solver"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	TLSCert         string `yaml:"tls_cert"`
	TLSKey          string `yaml:"tls_key"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// TokenKey enables HS256 bearer verification on /api when set.
	TokenKey  string  `yaml:"token_key"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type StoreConfig struct {
	// Driver is "postgres", "sqlite" or "" for no persistence.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SolverConfig sets the defaults applied to requests that omit them.
type SolverConfig struct {
	Method   string          `yaml:"method"`
	ArchingK float64         `yaml:"arching_k"`
	Search   facestab.Search `yaml:"search"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"` // debug, info, warn, error
	NoColor bool   `yaml:"no_color"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "5s",
			RateLimit:       1,
			RateBurst:       3,
		},
		Solver: SolverConfig{
			Method:   facestab.MethodSimple,
			ArchingK: facestab.DefaultArchingK,
			Search:   facestab.DefaultSearch(),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults. A .env file next to the working directory is loaded first so its
// variables take part in the overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FACESTAB_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TOKEN_KEY"); v != "" {
		c.Server.TokenKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
		if c.Store.Driver == "" {
			c.Store.Driver = "postgres"
		}
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

var validDrivers = []string{"", "postgres", "sqlite"}

func (c *Config) Validate() error {
	ok := false
	for _, d := range validDrivers {
		if c.Store.Driver == d {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid store driver: %s (valid: postgres, sqlite)", c.Store.Driver)
	}
	if c.Store.Driver != "" && c.Store.DSN == "" {
		return fmt.Errorf("store driver %s needs a dsn (set DATABASE_URL)", c.Store.Driver)
	}
	if _, err := facestab.OverburdenByName(c.Solver.Method, c.Solver.ArchingK); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Runner returns a solver runner carrying the configured defaults.
func (c *Config) Runner(log *slog.Logger) facestab.Runner {
	return facestab.Runner{
		Defaults: c.Solver.Search,
		Method:   c.Solver.Method,
		ArchingK: c.Solver.ArchingK,
		Logger:   log,
	}
}

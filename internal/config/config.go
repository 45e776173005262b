// Package config loads the indexer's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"perp-indexer/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PERP_INDEXER_"

// Source types.
const (
	SourceFile = "file"
	SourceWS   = "ws"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendSQLite     = "sqlite"
)

// Config is the top-level indexer configuration.
type Config struct {
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	MetricsAddr string        `yaml:"metrics_addr"`
	APIAddr     string        `yaml:"api_addr"`
	Dedupe      bool          `yaml:"dedupe"`
	Resolutions []string      `yaml:"resolutions"`
	Chains      []ChainConfig `yaml:"chains"`
}

// ChainConfig describes one indexed chain.
type ChainConfig struct {
	Name   string       `yaml:"name"`
	Source SourceConfig `yaml:"source"`
	Store  StoreConfig  `yaml:"store"`
}

// SourceConfig selects where events come from.
type SourceConfig struct {
	Type string `yaml:"type"` // file or ws
	Path string `yaml:"path"` // JSON-lines event log, file sources
	URL  string `yaml:"url"`  // websocket endpoint, ws sources
}

// StoreConfig selects the entity store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// Default returns the configuration used when a field is not set.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		MetricsAddr: ":9090",
		APIAddr:     ":8080",
		Dedupe:      true,
	}
}

// LoadEnvFile loads variables from a .env file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file, expanding ${VAR} references, then applies
// PERP_INDEXER_* overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML the same way Load does.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for i := range cfg.Chains {
		cfg.Chains[i].applyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookupEnv("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookupEnv("API_ADDR"); ok {
		c.APIAddr = v
	}
	if v, ok := lookupEnv("DEDUPE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEDUPE: %w", EnvPrefix, err)
		}
		c.Dedupe = b
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (cc *ChainConfig) applyDefaults() {
	if cc.Source.Type == "" {
		cc.Source.Type = SourceFile
	}
	if cc.Store.Backend == "" {
		cc.Store.Backend = BackendMemory
	}
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return errors.New("config: at least one chain is required")
	}
	if _, err := c.ParsedResolutions(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	seen := make(map[string]bool, len(c.Chains))
	for i, cc := range c.Chains {
		if cc.Name == "" {
			return fmt.Errorf("config: chains[%d]: name is required", i)
		}
		if seen[cc.Name] {
			return fmt.Errorf("config: chains[%d]: duplicate chain %q", i, cc.Name)
		}
		seen[cc.Name] = true

		switch cc.Source.Type {
		case SourceFile:
			if cc.Source.Path == "" {
				return fmt.Errorf("config: chain %q: file source requires path", cc.Name)
			}
		case SourceWS:
			if cc.Source.URL == "" {
				return fmt.Errorf("config: chain %q: ws source requires url", cc.Name)
			}
		default:
			return fmt.Errorf("config: chain %q: unknown source type %q", cc.Name, cc.Source.Type)
		}

		switch cc.Store.Backend {
		case BackendMemory:
		case BackendPostgres, BackendClickhouse, BackendSQLite:
			if cc.Store.DSN == "" {
				return fmt.Errorf("config: chain %q: %s store requires dsn", cc.Name, cc.Store.Backend)
			}
		default:
			return fmt.Errorf("config: chain %q: unknown store backend %q", cc.Name, cc.Store.Backend)
		}
	}
	return nil
}

// ParsedResolutions returns the configured candle resolutions.
// An empty list means all supported resolutions.
func (c *Config) ParsedResolutions() ([]domain.Resolution, error) {
	out := make([]domain.Resolution, 0, len(c.Resolutions))
	for _, s := range c.Resolutions {
		r, err := domain.ParseResolution(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Chain returns the configuration of the named chain.
func (c *Config) Chain(name string) (ChainConfig, bool) {
	for _, cc := range c.Chains {
		if cc.Name == name {
			return cc, true
		}
	}
	return ChainConfig{}, false
}

// Package config loads settings from flags, the environment and an
// optional guardia.yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage backends accepted in Config.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

type Config struct {
	DB                string    `mapstructure:"db"`
	Backend           string    `mapstructure:"backend"`
	DatabaseURL       string    `mapstructure:"database_url"`
	LLM               LLMConfig `mapstructure:"llm"`
	RequireNameOnSeen bool      `mapstructure:"require_name_on_seen"`
	Addr              string    `mapstructure:"addr"`
	Env               string    `mapstructure:"env"`
	Facility          string    `mapstructure:"facility"`
	WriteRetries      int       `mapstructure:"write_retries"`
}

type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":                   "db",
	"backend":              "backend",
	"database-url":         "database_url",
	"base-url":             "llm.base_url",
	"model":                "llm.model",
	"addr":                 "addr",
	"facility":             "facility",
	"require-name-on-seen": "require_name_on_seen",
}

// DefaultDBPath is the sqlite database under the user's home directory.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".guardia-ai", "guardia.db")
}

// Load resolves the configuration. Flags that were set win over GUARDIA_*
// environment variables, which win over guardia.yaml found in searchPaths
// (the working directory and ~/.guardia-ai when none are given).
func Load(flags *pflag.FlagSet, searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("guardia")
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		home, _ := os.UserHomeDir()
		searchPaths = []string{".", filepath.Join(home, ".guardia-ai")}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("GUARDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("db", DefaultDBPath())
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("database_url", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("require_name_on_seen", false)
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("env", "production")
	v.SetDefault("facility", "GUARDIA AI")
	v.SetDefault("write_retries", 3)

	// The API key also comes from the variable every OpenAI client reads.
	v.BindEnv("llm.api_key", "GUARDIA_LLM_API_KEY", "OPENAI_API_KEY")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail later.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFile:
		if c.DB == "" {
			return fmt.Errorf("db path is required for the %s backend", c.Backend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("backend must be sqlite, postgres, file or memory, got %q", c.Backend)
	}
	if c.WriteRetries < 0 {
		return fmt.Errorf("write_retries must not be negative, got %d", c.WriteRetries)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Logger returns a JSON logger on w, or a console logger in development.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if c.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

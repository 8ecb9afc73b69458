// Package config loads service settings from an optional config file and
// ROADMAP_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/h0rv/roadmap/internal/gh"
	"github.com/h0rv/roadmap/internal/store"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ROADMAP_GITHUB_OWNER.
const EnvPrefix = "ROADMAP"

// Config is the fully resolved configuration.
type Config struct {
	GitHub GitHubConfig `mapstructure:"github"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// GitHubConfig selects the board and how to reach it.
type GitHubConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	Token         string `mapstructure:"token"`
	UseGhCli      bool   `mapstructure:"use_gh_cli"`
	Owner         string `mapstructure:"owner"`
	OwnerType     string `mapstructure:"owner_type"`
	ProjectNumber int    `mapstructure:"project_number"`
	PageSize      int    `mapstructure:"page_size"`
	MaxItems      int    `mapstructure:"max_items"`
}

// CacheConfig tunes the refresh policy.
type CacheConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	RefreshToken string        `mapstructure:"refresh_token"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.endpoint", gh.DefaultEndpoint)
	v.SetDefault("github.token", "")
	v.SetDefault("github.use_gh_cli", true)
	v.SetDefault("github.owner", "")
	v.SetDefault("github.owner_type", "organization")
	v.SetDefault("github.project_number", 0)
	v.SetDefault("github.page_size", gh.DefaultPageSize)
	v.SetDefault("github.max_items", gh.DefaultMaxItems)

	v.SetDefault("cache.ttl", store.DefaultTTL)
	v.SetDefault("cache.refresh_timeout", store.DefaultRefreshTimeout)
	v.SetDefault("cache.retry_backoff", store.DefaultRetryBackoff)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.refresh_token", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)

	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind command-line flags onto it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by GitHub tooling and the logger.
	_ = v.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	return v
}

// Read loads the config file at path into v. An empty path searches the
// working directory for roadmap.{yaml,toml,json}; not finding one is fine.
func Read(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("roadmap")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file (if any) into v and decodes v, with its
// environment and bound flags, into a Config.
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := Read(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate reports settings that make the board unreachable. A missing
// token is not checked here; it is reported per request so the service can
// still start and explain the problem to readers.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.GitHub.Owner) == "" {
		problems = append(problems, "github.owner is required")
	}
	if c.GitHub.ProjectNumber <= 0 {
		problems = append(problems, "github.project_number must be a positive project number")
	}
	if _, err := gh.ParseOwnerType(c.GitHub.OwnerType); err != nil {
		problems = append(problems, err.Error())
	}
	if c.GitHub.PageSize <= 0 || c.GitHub.PageSize > gh.DefaultPageSize {
		problems = append(problems, fmt.Sprintf("github.page_size must be between 1 and %d", gh.DefaultPageSize))
	}
	if c.GitHub.MaxItems <= 0 {
		problems = append(problems, "github.max_items must be positive")
	}
	if c.Cache.TTL <= 0 {
		problems = append(problems, "cache.ttl must be positive")
	}
	if c.Cache.RefreshTimeout <= 0 {
		problems = append(problems, "cache.refresh_timeout must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

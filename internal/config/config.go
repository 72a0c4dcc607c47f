// Package config provides centralized configuration management for the
// application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// API backend selection values.
const (
	APIRest    = "rest"
	APIGraphQL = "graphql"
)

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub GitHubConfig

	// Database is the path to the SQLite database file.
	Database string

	// API selects the GitHub API backend, either "rest" or "graphql".
	API string

	// Repositories lists repositories to sync with the --all flag, in the
	// form "owner/name".
	Repositories []string

	// Timeout bounds a whole sync run. Zero means no timeout.
	Timeout time.Duration
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token string
}

// Load reads configuration from the optional config file at path and from
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("database", "issues.sqlite")
	v.SetDefault("api", APIRest)
	v.SetDefault("timeout", time.Duration(0))

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.BindEnv("github.token", "GITHUB_TOKEN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token: v.GetString("github.token"),
		},
		Database:     v.GetString("database"),
		API:          v.GetString("api"),
		Repositories: v.GetStringSlice("repositories"),
		Timeout:      v.GetDuration("timeout"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.API {
	case APIRest, APIGraphQL:
	default:
		return fmt.Errorf("invalid api backend %q, expected %q or %q", cfg.API, APIRest, APIGraphQL)
	}
	if cfg.Database == "" {
		return fmt.Errorf("database path must not be empty")
	}
	return nil
}

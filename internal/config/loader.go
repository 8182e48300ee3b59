package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "ICHAT"
	envConfigDefaultPath = "ICHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()
	defaults := defaultValues(cfg)

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, defaults); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: addr is required")
	case c.DatabasePath == "":
		return errors.New("config: database_path is required")
	case c.JWTSecret == "":
		return errors.New("config: jwt_secret is required")
	case c.JWTTTL <= 0:
		return errors.New("config: jwt_ttl must be positive")
	case c.EvictionTimeout <= 0:
		return errors.New("config: eviction_timeout must be positive")
	case c.HistoryLimit <= 0:
		return errors.New("config: history_limit must be positive")
	}
	return nil
}

// defaultValues flattens cfg into viper keys; durations are rendered as strings
// so the generated file stays readable.
func defaultValues(cfg Config) map[string]any {
	return map[string]any{
		"addr":                  cfg.Addr,
		"read_header_timeout":   cfg.ReadHeaderTimeout.String(),
		"shutdown_timeout":      cfg.ShutdownTimeout.String(),
		"log_level":             cfg.LogLevel,
		"log_format":            cfg.LogFormat,
		"database_path":         cfg.DatabasePath,
		"jwt_secret":            cfg.JWTSecret,
		"jwt_issuer":            cfg.JWTIssuer,
		"jwt_audience":          cfg.JWTAudience,
		"jwt_ttl":               cfg.JWTTTL.String(),
		"eviction_timeout":      cfg.EvictionTimeout.String(),
		"client_buffer":         cfg.ClientBuffer,
		"max_message_bytes":     cfg.MaxMessageBytes,
		"max_content_length":    cfg.MaxContentLength,
		"rate_limit_per_minute": cfg.RateLimitPerMinute,
		"history_limit":         cfg.HistoryLimit,
		"metrics_enabled":       cfg.MetricsEnabled,
	}
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, values map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig holds the console client's configuration
type ClientConfig struct {
	ServerURL       string        `mapstructure:"server_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Language        string        `mapstructure:"language"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	LogFile         string        `mapstructure:"log_file"`
	LogLevel        string        `mapstructure:"log_level"`
}

// LoggerConfig describes the console's JSON log file. It is only used when
// LogFile is set.
func (c *ClientConfig) LoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:    c.LogLevel,
		Format:   "json",
		Output:   "file",
		Filename: c.LogFile,
	}
}

// LoadClient reads GOBAN_* variables and an optional YAML file. An empty
// path falls back to ~/.goban/config.yaml when it exists.
func LoadClient(path string) (*ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("GOBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home := clientHome()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("timeout", "30s")
	v.SetDefault("language", "zh")
	v.SetDefault("credentials_file", filepath.Join(home, "credentials.json"))
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("invalid configuration: server_url is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("invalid configuration: timeout must be positive")
	}

	return &cfg, nil
}

func clientHome() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".goban")
	}
	return ".goban"
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("MONITOR_TICK_INTERVAL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, expected 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, expected sqlite", cfg.Database.Driver)
	}
	if cfg.Monitor.TickInterval != 5*time.Second {
		t.Errorf("Monitor.TickInterval = %v, expected 5s", cfg.Monitor.TickInterval)
	}
	if cfg.Monitor.LoginSessionTTL != 3*time.Minute {
		t.Errorf("Monitor.LoginSessionTTL = %v, expected 3m", cfg.Monitor.LoginSessionTTL)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis.Enabled() = true without a host")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite", Path: "goban.db"},
			Auth:     AuthConfig{Username: "admin", Password: "secret"},
			Server:   ServerConfig{Port: 8080},
			Monitor:  MonitorConfig{TickInterval: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"hash only", func(c *Config) { c.Auth.Password = ""; c.Auth.PasswordHash = "$2a$10$x" }, false},
		{"no password", func(c *Config) { c.Auth.Password = "" }, true},
		{"no username", func(c *Config) { c.Auth.Username = "" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"postgres without host", func(c *Config) { c.Database.Driver = "postgres"; c.Database.Name = "goban" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero tick", func(c *Config) { c.Monitor.TickInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadClient(t *testing.T) {
	t.Run("file and env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "server_url: http://console.local:8080\nlanguage: en\ntimeout: 10s\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("GOBAN_LANGUAGE", "zh")

		cfg, err := LoadClient(path)
		if err != nil {
			t.Fatalf("LoadClient() error = %v", err)
		}
		if cfg.ServerURL != "http://console.local:8080" {
			t.Errorf("ServerURL = %q", cfg.ServerURL)
		}
		if cfg.Language != "zh" {
			t.Errorf("Language = %q, expected the env override zh", cfg.Language)
		}
		if cfg.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, expected 10s", cfg.Timeout)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := LoadClient(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected an error for a missing config file")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		cfg, err := LoadClient("")
		if err != nil {
			t.Fatalf("LoadClient() error = %v", err)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, expected 30s", cfg.Timeout)
		}
		if filepath.Base(cfg.CredentialsFile) != "credentials.json" {
			t.Errorf("CredentialsFile = %q", cfg.CredentialsFile)
		}
		if cfg.LogFile != "" {
			t.Errorf("LogFile = %q, expected none", cfg.LogFile)
		}
	})

	t.Run("log file from env", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("GOBAN_LOG_FILE", "/tmp/goban.log")
		t.Setenv("GOBAN_LOG_LEVEL", "warn")

		cfg, err := LoadClient("")
		if err != nil {
			t.Fatalf("LoadClient() error = %v", err)
		}
		expected := LoggerConfig{Level: "warn", Format: "json", Output: "file", Filename: "/tmp/goban.log"}
		if got := cfg.LoggerConfig(); got != expected {
			t.Errorf("LoggerConfig() = %+v, expected %+v", got, expected)
		}
	})
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Capture   CaptureConfig   `yaml:"capture"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TransportConfig struct {
	// Mode is "stdio" or "http".
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CaptureConfig bounds the waits on external collaborators.
type CaptureConfig struct {
	PermissionTimeout  time.Duration `yaml:"permission_timeout"`
	GeolocationTimeout time.Duration `yaml:"geolocation_timeout"`
	PersistTimeout     time.Duration `yaml:"persist_timeout"`
	DefaultToleranceMs int64         `yaml:"default_tolerance_ms"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "screenmark.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Capture: CaptureConfig{
			PermissionTimeout:  10 * time.Second,
			GeolocationTimeout: 10 * time.Second,
			PersistTimeout:     10 * time.Second,
			DefaultToleranceMs: 250,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "screenmark",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SCREENMARK_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode %q: want stdio or http", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Capture.PermissionTimeout <= 0 || c.Capture.GeolocationTimeout <= 0 || c.Capture.PersistTimeout <= 0 {
		return fmt.Errorf("capture timeouts must be positive")
	}
	if c.Capture.DefaultToleranceMs < 0 {
		return fmt.Errorf("default tolerance must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("SCREENMARK_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("SCREENMARK_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid SCREENMARK_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("SCREENMARK_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("SCREENMARK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if mode := os.Getenv("SCREENMARK_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if err := envBool("SCREENMARK_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return err
	}
	if err := envDuration("SCREENMARK_PERMISSION_TIMEOUT", &cfg.Capture.PermissionTimeout); err != nil {
		return err
	}
	if err := envDuration("SCREENMARK_GEOLOCATION_TIMEOUT", &cfg.Capture.GeolocationTimeout); err != nil {
		return err
	}
	if err := envDuration("SCREENMARK_PERSIST_TIMEOUT", &cfg.Capture.PersistTimeout); err != nil {
		return err
	}
	if raw := os.Getenv("SCREENMARK_DEFAULT_TOLERANCE_MS"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SCREENMARK_DEFAULT_TOLERANCE_MS: %w", err)
		}
		cfg.Capture.DefaultToleranceMs = v
	}
	if err := envBool("SCREENMARK_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled); err != nil {
		return err
	}
	if name := os.Getenv("SCREENMARK_TELEMETRY_SERVICE_NAME"); name != "" {
		cfg.Telemetry.ServiceName = name
	}
	return nil
}

func envBool(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Package middleware exposes an adsclient connection as an HTTP/WebSocket
// gateway: JSON value access, batch operations, PLC control and live
// subscription streaming.
package middleware

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the gateway configuration.
type Config struct {
	Server     ServerConfig  `yaml:"server"`
	PLC        PLCConfig     `yaml:"plc"`
	Gateway    GatewayConfig `yaml:"gateway"`
	Logging    LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string     `yaml:"host"`
	Port int        `yaml:"port"`
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// PLCConfig contains the ADS connection configuration.
type PLCConfig struct {
	TargetNetID    string `yaml:"target_net_id"`
	TargetPort     uint16 `yaml:"target_port"`
	RouterAddress  string `yaml:"router_address"`
	RouterPort     uint16 `yaml:"router_port"`
	LocalNetID     string `yaml:"local_net_id"`
	LocalPort      uint16 `yaml:"local_port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	AllowHalfOpen  bool   `yaml:"allow_half_open"`
	CacheSymbols   bool   `yaml:"cache_symbols"`
}

// GatewayConfig contains gateway-specific limits.
type GatewayConfig struct {
	MaxBatchSize        int `yaml:"max_batch_size"`
	MaxSubscriptions    int `yaml:"max_subscriptions"`
	SubscriptionCycleMs int `yaml:"subscription_cycle_ms"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
			},
		},
		PLC: PLCConfig{
			TargetNetID:    "127.0.0.1.1.1",
			TargetPort:     851,
			RouterAddress:  "127.0.0.1",
			RouterPort:     48898,
			TimeoutSeconds: 2,
			CacheSymbols:   true,
		},
		Gateway: GatewayConfig{
			MaxBatchSize:        100,
			MaxSubscriptions:    1000,
			SubscriptionCycleMs: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads a YAML configuration file, applying defaults for absent
// fields.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("middleware: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("middleware: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("middleware: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("middleware: write config %s: %w", path, err)
	}
	return nil
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Timeout returns the ADS request timeout.
func (c *Config) Timeout() time.Duration {
	if c.PLC.TimeoutSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.PLC.TimeoutSeconds) * time.Second
}

// SubscriptionCycle returns the default subscription cycle time.
func (c *Config) SubscriptionCycle() time.Duration {
	if c.Gateway.SubscriptionCycleMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.Gateway.SubscriptionCycleMs) * time.Millisecond
}

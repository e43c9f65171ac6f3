package robot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/gwillem/ssc32/pkg/ssc32"
	"github.com/gwillem/ssc32/pkg/transport"
)

const (
	DefaultConfigFile      = "ssc32.json"
	DefaultServoConfigFile = "servos.cfg"
)

// Config holds the connection settings for one board.
type Config struct {
	Port        string `json:"port"`
	BaudRate    int    `json:"baud_rate,omitempty"`
	Channels    int    `json:"channels,omitempty"`
	TimeoutMs   int    `json:"timeout_ms,omitempty"`
	ServoConfig string `json:"servo_config,omitempty"`

	// AutocommitMs enables autocommit with this move time when set.
	AutocommitMs *int `json:"autocommit_ms,omitempty"`
}

// IsConfigured returns true if a serial port has been chosen
func (c *Config) IsConfigured() bool {
	return c.Port != ""
}

// SerialConfig returns the transport settings, with defaults for unset fields.
func (c *Config) SerialConfig() transport.SerialConfig {
	cfg := transport.SerialConfig{
		Port:     c.Port,
		BaudRate: c.BaudRate,
		Timeout:  time.Duration(c.TimeoutMs) * time.Millisecond,
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = transport.DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = transport.DefaultTimeout
	}
	return cfg
}

// Options returns the controller options for this config. The servo config
// is only loaded when the file exists, so a fresh setup can still connect.
func (c *Config) Options(log zerolog.Logger) []ssc32.Option {
	opts := []ssc32.Option{ssc32.WithLogger(log)}
	if c.Channels > 0 {
		opts = append(opts, ssc32.WithChannelCount(c.Channels))
	}
	if c.AutocommitMs != nil {
		opts = append(opts, ssc32.WithAutocommit(time.Duration(*c.AutocommitMs)*time.Millisecond))
	}
	if c.ServoConfig != "" && fileExists(c.ServoConfig) {
		opts = append(opts, ssc32.WithConfigFile(c.ServoConfig))
	}
	return opts
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	return fileExists(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

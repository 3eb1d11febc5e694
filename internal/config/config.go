package config

import "time"

// Config holds process configuration. Channel settings live in the settings store, not here.
type Config struct {
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file"`
	SettingsPath    string        `mapstructure:"settings_path" yaml:"settings_path"`
	SettingsBackend string        `mapstructure:"settings_backend" yaml:"settings_backend"`
	DisplayName     string        `mapstructure:"display_name" yaml:"display_name"`
	ConnectionIP    string        `mapstructure:"connection_ip" yaml:"connection_ip"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	Autoconnect     bool          `mapstructure:"autoconnect" yaml:"autoconnect"`
	DedupeRoster    bool          `mapstructure:"dedupe_roster" yaml:"dedupe_roster"`
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	EventBuffer     int           `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel:        "info",
		SettingsPath:    ".chatrconfig",
		SettingsBackend: "file",
		ConnectionIP:    "0.0.0.0",
		Autoconnect:     true,
		ShutdownTimeout: 5 * time.Second,
		EventBuffer:     256,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Booleans are left alone because false cannot be told apart from unset.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.SettingsPath != "" {
		c.SettingsPath = other.SettingsPath
	}
	if other.SettingsBackend != "" {
		c.SettingsBackend = other.SettingsBackend
	}
	if other.DisplayName != "" {
		c.DisplayName = other.DisplayName
	}
	if other.ConnectionIP != "" {
		c.ConnectionIP = other.ConnectionIP
	}
	if other.SettleDelay != 0 {
		c.SettleDelay = other.SettleDelay
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.EventBuffer != 0 {
		c.EventBuffer = other.EventBuffer
	}
}

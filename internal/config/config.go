package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	// Browser session tuning.
	DefaultURL          string        `mapstructure:"default_url" yaml:"default_url"`
	SampleInterval      time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`
	DrainTimeout        time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout"`
	SessionStartTimeout time.Duration `mapstructure:"session_start_timeout" yaml:"session_start_timeout"`
	ViewportWidth       int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight      int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	ChatHistoryLimit    int           `mapstructure:"chat_history_limit" yaml:"chat_history_limit"`
}

// Default returns configuration with reasonable starter defaults. The 100ms
// sample interval gives viewers roughly 10 frames per second.
func Default() Config {
	return Config{
		Addr:                ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
		MaxMessageBytes:     1 << 20,
		DefaultURL:          "https://www.google.com",
		SampleInterval:      100 * time.Millisecond,
		DrainTimeout:        100 * time.Millisecond,
		SessionStartTimeout: 30 * time.Second,
		ViewportWidth:       1280,
		ViewportHeight:      720,
		ChatHistoryLimit:    100,
	}
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadLoggerConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "LOG_SAMPLING"} {
			t.Setenv(key, "")
		}

		cfg := LoadLoggerConfigFromEnv()

		assert.Equal(t, LoggerConfig{Level: "info", Format: "json", Output: "stdout", Sampling: true}, cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "console")
		t.Setenv("LOG_OUTPUT", "/var/log/code-janitor.log")
		t.Setenv("LOG_SAMPLING", "false")

		cfg := LoadLoggerConfigFromEnv()

		assert.Equal(t, LoggerConfig{
			Level:    "debug",
			Format:   "console",
			Output:   "/var/log/code-janitor.log",
			Sampling: false,
		}, cfg)
	})
}

func TestLoggerConfig_Validate(t *testing.T) {
	valid := LoggerConfig{Level: "info", Format: "json", Output: "stdout"}

	tests := []struct {
		name    string
		mutate  func(*LoggerConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*LoggerConfig) {}},
		{name: "every level", mutate: func(c *LoggerConfig) { c.Level = "warn" }},
		{name: "console format", mutate: func(c *LoggerConfig) { c.Format = "console" }},
		{name: "unknown level", mutate: func(c *LoggerConfig) { c.Level = "trace" }, wantErr: "invalid log level: trace"},
		{name: "level is case sensitive", mutate: func(c *LoggerConfig) { c.Level = "INFO" }, wantErr: "invalid log level"},
		{name: "unknown format", mutate: func(c *LoggerConfig) { c.Format = "logfmt" }, wantErr: "invalid log format: logfmt"},
		{name: "empty output", mutate: func(c *LoggerConfig) { c.Output = "" }, wantErr: "LOG_OUTPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoggerConfig_IsProduction(t *testing.T) {
	assert.True(t, LoggerConfig{Level: "info", Format: "json"}.IsProduction())
	assert.True(t, LoggerConfig{Level: "error", Format: "json"}.IsProduction())
	assert.False(t, LoggerConfig{Level: "debug", Format: "json"}.IsProduction())
	assert.False(t, LoggerConfig{Level: "info", Format: "console"}.IsProduction())
}

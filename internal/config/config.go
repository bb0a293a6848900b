package config

import "fmt"

// Config holds application configuration.
type Config struct {
	// Server holds HTTP server configuration.
	Server ServerConfig
	// Logger holds logger configuration.
	Logger LoggerConfig
	// GinMode is the Gin framework mode (debug, release, test).
	GinMode string

	SonarQube SonarQubeConfig
	GitHub    GitHubConfig
	OpenAI    OpenAIConfig
	Janitor   JanitorConfig
	Scanner   ScannerConfig
}

// LoadFromEnv loads all configuration from environment variables.
func LoadFromEnv() Config {
	return Config{
		Server:    LoadServerConfigFromEnv(),
		Logger:    LoadLoggerConfigFromEnv(),
		GinMode:   GetEnv("GIN_MODE", "release"),
		SonarQube: LoadSonarQubeConfigFromEnv(),
		GitHub:    LoadGitHubConfigFromEnv(),
		OpenAI:    LoadOpenAIConfigFromEnv(),
		Janitor:   LoadJanitorConfigFromEnv(),
		Scanner:   LoadScannerConfigFromEnv(),
	}
}

// Validate validates the configuration every command needs.
// Credentials for external systems are checked by ValidateIntegrations.
func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config validation failed: %w", err)
	}

	validGinModes := map[string]bool{
		"debug":   true,
		"release": true,
		"test":    true,
	}
	if !validGinModes[c.GinMode] {
		return fmt.Errorf("invalid GIN_MODE: %s (must be: debug, release, test)", c.GinMode)
	}

	if err := c.Janitor.Validate(); err != nil {
		return fmt.Errorf("janitor config validation failed: %w", err)
	}

	if err := c.Scanner.Validate(); err != nil {
		return fmt.Errorf("scanner config validation failed: %w", err)
	}

	return nil
}

// ValidateIntegrations validates analyzer, source-control and patch generator settings.
func (c Config) ValidateIntegrations() error {
	if err := c.SonarQube.Validate(); err != nil {
		return fmt.Errorf("sonarqube config validation failed: %w", err)
	}
	if err := c.GitHub.Validate(); err != nil {
		return fmt.Errorf("github config validation failed: %w", err)
	}
	if err := c.OpenAI.Validate(); err != nil {
		return fmt.Errorf("openai config validation failed: %w", err)
	}
	return nil
}

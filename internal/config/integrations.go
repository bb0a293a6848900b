package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// SonarQubeConfig holds analyzer connection settings.
type SonarQubeConfig struct {
	// URL is the SonarQube base URL (e.g. https://sonar.example.com).
	URL string
	// Token is the user token sent as a bearer credential.
	Token string
	// ProjectKey is the project whose findings are synced.
	ProjectKey string
	// PageSize is the number of findings requested per page (max 500).
	PageSize int
	// Statuses are the finding statuses included in a sync.
	Statuses []string
	// Timeout bounds a single page request.
	Timeout time.Duration
}

// LoadSonarQubeConfigFromEnv loads analyzer configuration from environment variables.
func LoadSonarQubeConfigFromEnv() SonarQubeConfig {
	return SonarQubeConfig{
		URL:        GetEnv("SONARQUBE_URL", ""),
		Token:      GetEnv("SONARQUBE_TOKEN", ""),
		ProjectKey: GetEnv("SONARQUBE_PROJECT_KEY", ""),
		PageSize:   GetEnvInt("SONARQUBE_PAGE_SIZE", 500),
		Statuses:   GetEnvList("SONARQUBE_STATUSES", []string{"OPEN", "CONFIRMED", "REOPENED"}),
		Timeout:    GetEnvDuration("SONARQUBE_TIMEOUT", 30*time.Second),
	}
}

// Validate validates analyzer configuration.
func (c SonarQubeConfig) Validate() error {
	if c.URL == "" {
		return errors.New("SONARQUBE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return fmt.Errorf("invalid SONARQUBE_URL: %w", err)
	}
	if c.ProjectKey == "" {
		return errors.New("SONARQUBE_PROJECT_KEY is required")
	}
	if c.PageSize <= 0 || c.PageSize > 500 {
		return fmt.Errorf("SONARQUBE_PAGE_SIZE must be between 1 and 500, got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return errors.New("SONARQUBE_TIMEOUT must be greater than 0")
	}
	return nil
}

// GitHubConfig holds source-control settings for the target repository.
type GitHubConfig struct {
	Token         string
	Owner         string
	Repo          string
	DefaultBranch string
	// APIURL overrides the public API endpoint for GitHub Enterprise.
	APIURL string
	// BranchPrefix is prepended to the natural key to build fix branch names.
	BranchPrefix string
	Timeout      time.Duration
}

// LoadGitHubConfigFromEnv loads source-control configuration from environment variables.
func LoadGitHubConfigFromEnv() GitHubConfig {
	return GitHubConfig{
		Token:         GetEnv("GITHUB_TOKEN", ""),
		Owner:         GetEnv("GITHUB_REPO_OWNER", ""),
		Repo:          GetEnv("GITHUB_REPO_NAME", ""),
		DefaultBranch: GetEnv("GITHUB_DEFAULT_BRANCH", "main"),
		APIURL:        GetEnv("GITHUB_API_URL", ""),
		BranchPrefix:  GetEnv("GITHUB_BRANCH_PREFIX", "ai-fix/"),
		Timeout:       GetEnvDuration("GITHUB_TIMEOUT", 30*time.Second),
	}
}

// FullName returns the owner/repo form of the repository name.
func (c GitHubConfig) FullName() string {
	return c.Owner + "/" + c.Repo
}

// Validate validates source-control configuration.
func (c GitHubConfig) Validate() error {
	if c.Token == "" {
		return errors.New("GITHUB_TOKEN is required")
	}
	if c.Owner == "" || c.Repo == "" {
		return errors.New("GITHUB_REPO_OWNER and GITHUB_REPO_NAME are required")
	}
	if c.DefaultBranch == "" {
		return errors.New("GITHUB_DEFAULT_BRANCH must not be empty")
	}
	if c.APIURL != "" {
		if _, err := url.ParseRequestURI(c.APIURL); err != nil {
			return fmt.Errorf("invalid GITHUB_API_URL: %w", err)
		}
	}
	if c.Timeout <= 0 {
		return errors.New("GITHUB_TIMEOUT must be greater than 0")
	}
	return nil
}

// OpenAIConfig holds patch generator settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL points the client at an OpenAI-compatible endpoint when set.
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// LoadOpenAIConfigFromEnv loads patch generator configuration from environment variables.
func LoadOpenAIConfigFromEnv() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      GetEnv("OPENAI_API_KEY", ""),
		Model:       GetEnv("OPENAI_MODEL", "gpt-4"),
		BaseURL:     GetEnv("OPENAI_BASE_URL", ""),
		Temperature: GetEnvFloat("OPENAI_TEMPERATURE", 0.3),
		Timeout:     GetEnvDuration("OPENAI_TIMEOUT", 2*time.Minute),
	}
}

// Validate validates patch generator configuration.
func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Model == "" {
		return errors.New("OPENAI_MODEL must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("OPENAI_TEMPERATURE must be between 0 and 2, got %v", c.Temperature)
	}
	if c.Timeout <= 0 {
		return errors.New("OPENAI_TIMEOUT must be greater than 0")
	}
	return nil
}

// JanitorConfig holds scheduler and auto-fix sweep settings.
type JanitorConfig struct {
	// AutoFix enables the fix sweep in each scheduler cycle.
	AutoFix bool
	// PollInterval is the delay between scheduler cycles.
	PollInterval time.Duration
	// FixBatchSize caps how many NEW issues one sweep attempts.
	FixBatchSize int
	// FixDelay is the minimum spacing between two fix attempts.
	FixDelay time.Duration
	// FixConcurrency caps parallel fix attempts within a sweep.
	FixConcurrency int
}

// LoadJanitorConfigFromEnv loads scheduler configuration from environment variables.
func LoadJanitorConfigFromEnv() JanitorConfig {
	return JanitorConfig{
		AutoFix:        GetEnvBool("AUTO_FIX", false),
		PollInterval:   GetEnvDuration("POLL_INTERVAL", 60*time.Second),
		FixBatchSize:   GetEnvInt("FIX_BATCH_SIZE", 10),
		FixDelay:       GetEnvDuration("FIX_DELAY", 5*time.Second),
		FixConcurrency: GetEnvInt("FIX_CONCURRENCY", 1),
	}
}

// Validate validates scheduler configuration.
func (c JanitorConfig) Validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s, got %s", c.PollInterval)
	}
	if c.FixBatchSize <= 0 {
		return fmt.Errorf("FIX_BATCH_SIZE must be greater than 0, got %d", c.FixBatchSize)
	}
	if c.FixDelay < 0 {
		return errors.New("FIX_DELAY must be non-negative")
	}
	if c.FixConcurrency <= 0 {
		return fmt.Errorf("FIX_CONCURRENCY must be greater than 0, got %d", c.FixConcurrency)
	}
	return nil
}

// ScannerConfig holds settings for the external scan command.
type ScannerConfig struct {
	ScriptPath string
	Timeout    time.Duration
}

// LoadScannerConfigFromEnv loads scanner configuration from environment variables.
func LoadScannerConfigFromEnv() ScannerConfig {
	return ScannerConfig{
		ScriptPath: GetEnv("SCANNER_SCRIPT", "/app/scan_repo.sh"),
		Timeout:    GetEnvDuration("SCANNER_TIMEOUT", 10*time.Minute),
	}
}

// Validate validates scanner configuration.
func (c ScannerConfig) Validate() error {
	if c.ScriptPath == "" {
		return errors.New("SCANNER_SCRIPT must not be empty")
	}
	if c.Timeout <= 0 {
		return errors.New("SCANNER_TIMEOUT must be greater than 0")
	}
	return nil
}

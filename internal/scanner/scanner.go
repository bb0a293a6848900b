// Package scanner runs the external SonarQube scan script for a repository.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	appConfig "github.com/festy23/code_janitor/internal/config"
)

// Result describes a finished scan.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	ProjectURL string `json:"project_url,omitempty"`
	ProjectKey string `json:"project_key,omitempty"`
	IsExternal bool   `json:"is_external"`
}

// Scanner invokes the scan script with repository and SonarQube settings in
// its environment.
type Scanner struct {
	cfg       appConfig.ScannerConfig
	github    appConfig.GitHubConfig
	sonarqube appConfig.SonarQubeConfig
	logger    *zap.SugaredLogger
}

// New creates a Scanner.
func New(cfg appConfig.ScannerConfig, github appConfig.GitHubConfig, sonarqube appConfig.SonarQubeConfig, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		github:    github,
		sonarqube: sonarqube,
		logger:    logger,
	}
}

// ProjectKey derives the SonarQube project key for an arbitrary repository.
func ProjectKey(owner, repo string) string {
	return strings.NewReplacer("/", "-", "_", "-").Replace(owner + "-" + repo)
}

// Scan runs the script for owner/repo. Empty owner and repo scan the
// configured repository. Failures, including timeouts, are reported in the
// Result rather than as an error.
func (s *Scanner) Scan(ctx context.Context, owner, repo string) *Result {
	custom := owner != "" && repo != ""
	if owner == "" {
		owner = s.github.Owner
	}
	if repo == "" {
		repo = s.github.Repo
	}
	external := custom && (owner != s.github.Owner || repo != s.github.Repo)

	projectKey := s.sonarqube.ProjectKey
	if custom {
		projectKey = ProjectKey(owner, repo)
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Infow("Starting SonarQube scan", "repository", owner+"/"+repo, "project_key", projectKey)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cfg.ScriptPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = []string{
		"GITHUB_TOKEN=" + s.github.Token,
		"GITHUB_REPO_OWNER=" + owner,
		"GITHUB_REPO_NAME=" + repo,
		"GITHUB_DEFAULT_BRANCH=" + s.github.DefaultBranch,
		"SONARQUBE_URL=" + s.sonarqube.URL,
		"SONARQUBE_TOKEN=" + s.sonarqube.Token,
		"SONARQUBE_PROJECT_KEY=" + projectKey,
		"PATH=" + os.Getenv("PATH"),
	}

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Errorw("SonarQube scan timed out", "timeout", timeout)
		return &Result{
			Message:    fmt.Sprintf("Scan timed out after %s", timeout),
			Output:     stdout.String(),
			ProjectKey: projectKey,
			IsExternal: external,
		}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Errorw("Error running SonarQube scan", "error", err)
		return &Result{
			Message:    fmt.Sprintf("Error running scan: %v", err),
			ProjectKey: projectKey,
			IsExternal: external,
		}
	}
	if err != nil {
		s.logger.Errorw("SonarQube scan failed", "exit_code", exitErr.ExitCode(), "stderr", stderr.String())
		return &Result{
			Message:    "Scan failed",
			Output:     stdout.String(),
			Error:      stderr.String(),
			ProjectKey: projectKey,
			IsExternal: external,
		}
	}

	s.logger.Infow("SonarQube scan completed", "project_key", projectKey)

	message := fmt.Sprintf("Repository %s/%s scanned successfully", owner, repo)
	if custom {
		message += "\nProject key: " + projectKey
	}
	if external {
		message += "\n\nNote: This is an external repository. You can view issues but cannot create PRs (no write access)."
	}

	return &Result{
		Success:    true,
		Message:    message,
		Output:     stdout.String(),
		ProjectURL: strings.TrimRight(s.sonarqube.URL, "/") + "/dashboard?id=" + projectKey,
		ProjectKey: projectKey,
		IsExternal: external,
	}
}

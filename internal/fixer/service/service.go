// Package service implements the fix orchestrator: analyzer sync, fix
// attempts, the auto-fix sweep and pull request reconciliation.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appConfig "github.com/festy23/code_janitor/internal/config"
	fixModel "github.com/festy23/code_janitor/internal/fixer/model"
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/repository"
	"github.com/festy23/code_janitor/internal/patchgen"
	"github.com/festy23/code_janitor/internal/scanner"
	"github.com/festy23/code_janitor/internal/scm"
	"github.com/festy23/code_janitor/internal/sonarqube"
	"github.com/festy23/code_janitor/internal/telemetry"
)

// Analyzer fetches open findings from the static analyzer.
type Analyzer interface {
	FetchIssues(ctx context.Context, projectKey string, statuses []string) ([]sonarqube.Issue, error)
}

// SourceControl performs repository operations needed to submit a fix.
type SourceControl interface {
	ReadFile(ctx context.Context, path, ref string) (*scm.FileContent, error)
	CreateBranch(ctx context.Context, name, fromRef string) (string, error)
	WriteFile(ctx context.Context, path, content, message, branch, versionToken string) (string, error)
	FindOpenPullRequest(ctx context.Context, headBranch string) (string, bool, error)
	OpenPullRequest(ctx context.Context, title, body, headBranch, baseRef string) (string, error)
	GetPullRequestStatus(ctx context.Context, prRef string) (*scm.PullRequestStatus, error)
}

// PatchGenerator produces a fixed file. It reports failures in the result.
type PatchGenerator interface {
	Generate(ctx context.Context, req patchgen.Request) patchgen.Result
}

// Scanner runs the external analyzer scan.
type Scanner interface {
	Scan(ctx context.Context, owner, repo string) *scanner.Result
}

// Service defines the fix orchestrator operations.
type Service interface {
	// SyncIssues inserts findings not tracked yet and returns how many were added.
	SyncIssues(ctx context.Context) (int, error)

	// AttemptFix drives one NEW issue to an open pull request.
	AttemptFix(ctx context.Context, issueID string) (*fixModel.FixResult, error)

	// FixPending attempts a bounded batch of NEW issues.
	FixPending(ctx context.Context) (*fixModel.SweepResult, error)

	// ReconcilePullRequests closes issues whose pull request was merged and
	// returns how many were merged.
	ReconcilePullRequests(ctx context.Context) (int, error)

	// RecordCIResult stores a CI outcome reported for an issue's pull request.
	RecordCIResult(ctx context.Context, issueID string, passed bool, details string) (*issueModel.Issue, error)

	// ResetInterruptedFixes returns issues left in FIXING by a previous process to NEW.
	ResetInterruptedFixes(ctx context.Context) (int, error)

	// Scan runs the analyzer scan for owner/repo, or the configured repository when both are empty.
	Scan(ctx context.Context, owner, repo string) (*scanner.Result, error)
}

// Options tunes the orchestrator.
type Options struct {
	ProjectKey    string
	Statuses      []string
	DefaultBranch string
	BranchPrefix  string
	BatchSize     int
	FixDelay      time.Duration
	Concurrency   int
}

// OptionsFromConfig builds Options from the application configuration.
func OptionsFromConfig(cfg *appConfig.Config) Options {
	return Options{
		ProjectKey:    cfg.SonarQube.ProjectKey,
		Statuses:      cfg.SonarQube.Statuses,
		DefaultBranch: cfg.GitHub.DefaultBranch,
		BranchPrefix:  cfg.GitHub.BranchPrefix,
		BatchSize:     cfg.Janitor.FixBatchSize,
		FixDelay:      cfg.Janitor.FixDelay,
		Concurrency:   cfg.Janitor.FixConcurrency,
	}
}

// Deps groups the collaborators of the orchestrator.
type Deps struct {
	Repo      repository.Repository
	Analyzer  Analyzer
	SCM       SourceControl
	Generator PatchGenerator
	Scanner   Scanner
	Metrics   *telemetry.Metrics
	Logger    *zap.SugaredLogger
}

type service struct {
	repo      repository.Repository
	analyzer  Analyzer
	scm       SourceControl
	generator PatchGenerator
	scanner   Scanner
	metrics   *telemetry.Metrics
	opts      Options
	logger    *zap.SugaredLogger
}

// New creates a new fix orchestrator instance.
func New(deps Deps, opts Options) Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}
	if opts.BranchPrefix == "" {
		opts.BranchPrefix = "ai-fix/"
	}

	return &service{
		repo:      deps.Repo,
		analyzer:  deps.Analyzer,
		scm:       deps.SCM,
		generator: deps.Generator,
		scanner:   deps.Scanner,
		metrics:   deps.Metrics,
		opts:      opts,
		logger:    deps.Logger,
	}
}

// Scan runs the analyzer scan.
func (s *service) Scan(ctx context.Context, owner, repo string) (*scanner.Result, error) {
	if (owner == "") != (repo == "") {
		return nil, fixModel.ErrInvalidScanRequest
	}
	if s.scanner == nil {
		return nil, fixModel.ErrScannerDisabled
	}
	return s.scanner.Scan(ctx, owner, repo), nil
}

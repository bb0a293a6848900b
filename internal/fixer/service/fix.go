package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	fixModel "github.com/festy23/code_janitor/internal/fixer/model"
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/repository"
	"github.com/festy23/code_janitor/internal/patchgen"
	"github.com/festy23/code_janitor/internal/scm"
	"github.com/festy23/code_janitor/internal/telemetry"
)

// AttemptFix drives one NEW issue through read, generate, commit and pull
// request. Each step is persisted on its own. On any failure the issue goes
// back to NEW with one ERROR event, so the next sweep retries it.
//
// Gateway failures are reported in the result. An error is returned only when
// the issue does not exist or the store fails.
func (s *service) AttemptFix(ctx context.Context, issueID string) (result *fixModel.FixResult, err error) {
	issue, err := s.repo.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status != issueModel.StatusNew {
		s.metrics.ObserveFix(telemetry.OutcomeRejected, 0)
		return rejected(issue), nil
	}

	started := time.Now()
	startEvent := issueModel.NewEvent(issue.ID, issueModel.EventStatusUpdated, "Status changed to FIXING", nil)
	fixing, err := s.repo.Transition(ctx, issue.ID, issueModel.StatusNew, issueModel.StatusFixing,
		repository.Changes{}, &startEvent)
	if err != nil {
		if !errors.Is(err, issueModel.ErrStatusConflict) {
			return nil, err
		}
		// Another attempt claimed the issue first.
		current, getErr := s.repo.GetByID(ctx, issueID)
		if getErr != nil {
			return nil, getErr
		}
		s.metrics.ObserveFix(telemetry.OutcomeRejected, 0)
		return rejected(current), nil
	}

	log := s.logger.With("issue_id", fixing.ID, "issue_key", fixing.SonarQubeIssueKey)
	log.Infow("Attempting fix", "file", fixing.Component, "rule", fixing.Rule)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Fix attempt panicked", "panic", r)
			result, err = s.fail(ctx, fixing, fixModel.StepUnexpected, fmt.Sprintf("Unexpected error: %v", r))
		}
		outcome := telemetry.OutcomeFailure
		if result != nil && result.Success {
			outcome = telemetry.OutcomeSuccess
		}
		s.metrics.ObserveFix(outcome, time.Since(started))
	}()

	return s.runFix(ctx, fixing)
}

func (s *service) runFix(ctx context.Context, issue *issueModel.Issue) (*fixModel.FixResult, error) {
	file, err := s.scm.ReadFile(ctx, issue.Component, s.opts.DefaultBranch)
	s.metrics.GatewayCall("github", "read_file", err)
	if err != nil {
		return s.fail(ctx, issue, fixModel.StepReadFile, fmt.Sprintf("Failed to fetch file from GitHub: %v", err))
	}

	aiEvent := issueModel.NewEvent(issue.ID, issueModel.EventAICalled, "Requesting AI to generate fix", nil)
	if err := s.repo.AppendEvent(ctx, &aiEvent); err != nil {
		return s.fail(ctx, issue, fixModel.StepGeneratePatch, fmt.Sprintf("Failed to record AI call: %v", err))
	}

	patch := s.generator.Generate(ctx, patchgen.Request{
		Description: derefString(issue.Message),
		Rule:        issue.Rule,
		Severity:    issue.Severity,
		FilePath:    issue.Component,
		Content:     file.Content,
		Line:        issue.Line,
	})
	if !patch.Success {
		s.metrics.GatewayCall("openai", "generate", errors.New(patch.Explanation))
		return s.fail(ctx, issue, fixModel.StepGeneratePatch, "AI failed to generate fix: "+patch.Explanation)
	}
	s.metrics.GatewayCall("openai", "generate", nil)

	branch := scm.BranchName(s.opts.BranchPrefix, issue.SonarQubeIssueKey)

	_, err = s.scm.CreateBranch(ctx, branch, s.opts.DefaultBranch)
	s.metrics.GatewayCall("github", "create_branch", err)
	if err != nil {
		return s.fail(ctx, issue, fixModel.StepCreateBranch, fmt.Sprintf("Failed to create branch or commit: %v", err))
	}

	commitMessage := fmt.Sprintf("Fix SonarQube issue %s\n\n%s", issue.SonarQubeIssueKey, patch.Explanation)
	if err := s.writeFix(ctx, issue.Component, patch.FixedContent, commitMessage, branch, file.SHA); err != nil {
		return s.fail(ctx, issue, fixModel.StepWriteFile, fmt.Sprintf("Failed to create branch or commit: %v", err))
	}

	prURL, reused, err := s.scm.FindOpenPullRequest(ctx, branch)
	s.metrics.GatewayCall("github", "find_pull_request", err)
	if err != nil {
		return s.fail(ctx, issue, fixModel.StepOpenPR, fmt.Sprintf("Failed to create pull request: %v", err))
	}
	if !reused {
		prURL, err = s.scm.OpenPullRequest(ctx, pullRequestTitle(issue), pullRequestBody(issue, patch.Explanation),
			branch, s.opts.DefaultBranch)
		s.metrics.GatewayCall("github", "open_pull_request", err)
		if err != nil {
			return s.fail(ctx, issue, fixModel.StepOpenPR, fmt.Sprintf("Failed to create pull request: %v", err))
		}
	}

	notMerged := issueModel.MergeStateNotMerged
	prEvent := issueModel.NewEvent(issue.ID, issueModel.EventPRCreated, "Pull request created: "+prURL,
		map[string]any{"pr_url": prURL, "branch": branch, "reused": reused})
	opened, err := s.repo.Transition(ctx, issue.ID, issueModel.StatusFixing, issueModel.StatusPROpen,
		repository.Changes{PRURL: &prURL, PRBranch: &branch, MergeState: &notMerged}, &prEvent)
	if err != nil {
		return s.fail(ctx, issue, fixModel.StepRecordPR, fmt.Sprintf("Failed to record pull request: %v", err))
	}

	s.logger.Infow("Created pull request", "issue_id", issue.ID, "issue_key", issue.SonarQubeIssueKey,
		"pr_url", prURL, "reused", reused)

	return &fixModel.FixResult{
		Success: true,
		Message: "Fix applied and PR created: " + prURL,
		IssueID: opened.ID,
		Status:  opened.Status,
		PRURL:   opened.PRURL,
	}, nil
}

// writeFix commits content to branch. A branch left by an earlier attempt
// may already hold a changed version of the file, so a stale write is
// retried once against the file's version on that branch.
func (s *service) writeFix(ctx context.Context, path, content, message, branch, versionToken string) error {
	_, err := s.scm.WriteFile(ctx, path, content, message, branch, versionToken)
	s.metrics.GatewayCall("github", "write_file", err)
	if !errors.Is(err, scm.ErrStaleVersion) {
		return err
	}

	onBranch, err := s.scm.ReadFile(ctx, path, branch)
	s.metrics.GatewayCall("github", "read_file", err)
	if err != nil {
		return err
	}
	if onBranch.SHA == versionToken {
		return fmt.Errorf("%w: %s unchanged on %s", scm.ErrStaleVersion, path, branch)
	}

	s.logger.Debugw("Retrying write against existing branch", "branch", branch, "path", path)
	_, err = s.scm.WriteFile(ctx, path, content, message, branch, onBranch.SHA)
	s.metrics.GatewayCall("github", "write_file", err)
	return err
}

// fail reverts a FIXING issue to NEW and records one ERROR event. The revert
// runs even if ctx was cancelled, so the issue stays retryable.
func (s *service) fail(ctx context.Context, issue *issueModel.Issue, step, message string) (*fixModel.FixResult, error) {
	s.logger.Warnw("Fix attempt failed", "issue_id", issue.ID, "issue_key", issue.SonarQubeIssueKey,
		"step", step, "error", message)
	s.metrics.StepFailed(step)

	errEvent := issueModel.NewEvent(issue.ID, issueModel.EventError, message, map[string]any{"step": step})
	reverted, err := s.repo.Transition(context.WithoutCancel(ctx), issue.ID,
		issueModel.StatusFixing, issueModel.StatusNew, repository.Changes{}, &errEvent)
	if err != nil {
		s.logger.Errorw("Failed to revert issue to NEW", "issue_id", issue.ID, "step", step, "error", err)
		return nil, fmt.Errorf("revert issue %s after %s failure: %w", issue.ID, step, err)
	}

	return &fixModel.FixResult{
		Success: false,
		Message: message,
		IssueID: reverted.ID,
		Status:  reverted.Status,
	}, nil
}

func rejected(issue *issueModel.Issue) *fixModel.FixResult {
	return &fixModel.FixResult{
		Success:  false,
		Message:  fmt.Sprintf("Issue already in status %s", issue.Status),
		IssueID:  issue.ID,
		Status:   issue.Status,
		PRURL:    issue.PRURL,
		Rejected: true,
	}
}

func pullRequestTitle(issue *issueModel.Issue) string {
	return fmt.Sprintf("[AI Fix] %s: %s", issue.Rule, issue.Component)
}

func pullRequestBody(issue *issueModel.Issue, explanation string) string {
	line := "N/A"
	if issue.Line != nil {
		line = fmt.Sprintf("%d", *issue.Line)
	}
	return fmt.Sprintf(`## AI-Generated Fix for SonarQube Issue

**Issue Key:** %s
**Rule:** %s
**Severity:** %s
**File:** %s
**Line:** %s

### Issue Description
%s

### AI Explanation
%s

---
*This pull request was automatically generated by the SonarQube Code Janitor.*
`, issue.SonarQubeIssueKey, issue.Rule, issue.Severity, issue.Component, line, derefString(issue.Message), explanation)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	fixModel "github.com/festy23/code_janitor/internal/fixer/model"
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/repository"
)

// FixPending attempts up to BatchSize NEW issues, oldest first. Attempts are
// spaced by FixDelay and at most Concurrency run at once. A failed attempt
// does not stop the sweep.
func (s *service) FixPending(ctx context.Context) (*fixModel.SweepResult, error) {
	pending, err := s.repo.ListByStatus(ctx, issueModel.StatusNew, s.opts.BatchSize)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Found NEW issues to fix", "count", len(pending))

	limit := rate.Inf
	if s.opts.FixDelay > 0 {
		limit = rate.Every(s.opts.FixDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		mu     sync.Mutex
		result fixModel.SweepResult
		g      errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)

	var waitErr error
	for _, issue := range pending {
		if waitErr = limiter.Wait(ctx); waitErr != nil {
			break
		}

		g.Go(func() error {
			res, err := s.AttemptFix(ctx, issue.ID)

			mu.Lock()
			defer mu.Unlock()
			result.Attempted++
			switch {
			case err != nil:
				result.Failed++
				s.logger.Errorw("Error fixing issue", "issue_id", issue.ID,
					"issue_key", issue.SonarQubeIssueKey, "error", err)
			case res.Rejected:
				result.Rejected++
			case res.Success:
				result.Succeeded++
			default:
				result.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Infow("Auto-fix sweep finished",
		"attempted", result.Attempted, "succeeded", result.Succeeded,
		"failed", result.Failed, "rejected", result.Rejected)

	if waitErr != nil {
		return &result, waitErr
	}
	return &result, nil
}

// ResetInterruptedFixes moves every FIXING issue back to NEW. It is meant to
// run at startup, before any fix attempt of this process has begun.
func (s *service) ResetInterruptedFixes(ctx context.Context) (int, error) {
	stuck, err := s.repo.ListByStatus(ctx, issueModel.StatusFixing, 0)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, issue := range stuck {
		event := issueModel.NewEvent(issue.ID, issueModel.EventError,
			"Fix attempt interrupted before completion", map[string]any{"step": fixModel.StepInterrupted})
		_, err := s.repo.Transition(ctx, issue.ID, issueModel.StatusFixing, issueModel.StatusNew,
			repository.Changes{}, &event)
		if err != nil {
			s.logger.Warnw("Failed to reset interrupted fix", "issue_id", issue.ID, "error", err)
			continue
		}
		reset++
	}

	if reset > 0 {
		s.logger.Infow("Reset interrupted fixes", "count", reset)
	}
	return reset, nil
}

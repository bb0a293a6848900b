package service

import (
	"context"
	"fmt"

	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/repository"
)

// ReconcilePullRequests checks every recorded, not yet merged pull request.
// Merged ones close their issue with merge state MERGED. Ones closed without
// a merge close their issue with NOT_MERGED. Gateway errors skip that issue.
// All changes commit together at the end; an issue whose status moved in the
// meantime, such as a CI result arriving mid-sweep, does not hold back the rest.
func (s *service) ReconcilePullRequests(ctx context.Context) (int, error) {
	candidates, err := s.repo.ListWithOpenPullRequests(ctx)
	if err != nil {
		return 0, err
	}

	requests := make([]repository.TransitionRequest, 0, len(candidates))
	mergedIDs := make(map[string]struct{})
	for _, issue := range candidates {
		// A CLOSED issue whose PR is not merged was rejected and stays as is.
		if !issueModel.CanTransition(issue.Status, issueModel.StatusClosed) {
			continue
		}

		status, err := s.scm.GetPullRequestStatus(ctx, *issue.PRURL)
		s.metrics.GatewayCall("github", "get_pull_request", err)
		if err != nil {
			s.logger.Warnw("Failed to check pull request status", "issue_id", issue.ID,
				"pr_url", *issue.PRURL, "error", err)
			continue
		}

		var (
			mergeState issueModel.MergeState
			message    string
		)
		switch {
		case status.Merged:
			mergeState = issueModel.MergeStateMerged
			message = "Pull request merged, status changed to CLOSED"
			mergedIDs[issue.ID] = struct{}{}
		case status.State == "closed":
			mergeState = issueModel.MergeStateNotMerged
			message = "Pull request closed without merge, status changed to CLOSED"
		default:
			continue
		}

		event := issueModel.NewEvent(issue.ID, issueModel.EventStatusUpdated, message,
			map[string]any{"pr_url": *issue.PRURL, "from": string(issue.Status), "ci_state": status.CIState})
		requests = append(requests, repository.TransitionRequest{
			IssueID: issue.ID,
			From:    issue.Status,
			To:      issueModel.StatusClosed,
			Changes: repository.Changes{MergeState: &mergeState},
			Event:   &event,
		})
	}

	applied, err := s.repo.TransitionBatch(ctx, requests)
	if err != nil {
		return 0, fmt.Errorf("apply pull request states: %w", err)
	}

	merged := 0
	for _, id := range applied {
		if _, ok := mergedIDs[id]; ok {
			merged++
		}
	}

	s.metrics.Merged(merged)
	s.logger.Infow("Updated PR merge statuses", "checked", len(candidates), "closed", len(applied),
		"skipped", len(requests)-len(applied), "merged", merged)
	return merged, nil
}

// RecordCIResult moves an issue with an open pull request to CI_PASSED or
// CI_FAILED. Repeating the current outcome only appends another event.
func (s *service) RecordCIResult(
	ctx context.Context,
	issueID string,
	passed bool,
	details string,
) (*issueModel.Issue, error) {
	issue, err := s.repo.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	to, eventType, message := issueModel.StatusCIFailed, issueModel.EventCIFailed, "CI failed"
	if passed {
		to, eventType, message = issueModel.StatusCIPassed, issueModel.EventCIPassed, "CI passed"
	}
	var metadata map[string]any
	if details != "" {
		metadata = map[string]any{"details": details}
	}
	event := issueModel.NewEvent(issue.ID, eventType, message, metadata)

	if issue.Status == to {
		if err := s.repo.AppendEvent(ctx, &event); err != nil {
			return nil, err
		}
		return issue, nil
	}

	updated, err := s.repo.Transition(ctx, issue.ID, issue.Status, to, repository.Changes{}, &event)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Recorded CI result", "issue_id", issue.ID, "status", to)
	return updated, nil
}

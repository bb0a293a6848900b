package model

import "errors"

var (
	// ErrIssueNotFound indicates that the requested issue does not exist.
	ErrIssueNotFound = errors.New("issue not found")
	// ErrIssueExists indicates that an issue with the same analyzer key is already tracked.
	ErrIssueExists = errors.New("issue already exists")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrIllegalTransition indicates a status change the lifecycle does not allow.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrStatusConflict indicates the issue left the expected status before the update landed.
	ErrStatusConflict = errors.New("issue status changed concurrently")
	// ErrInvalidPullRequest indicates that a PR URL was recorded without a branch or the reverse.
	ErrInvalidPullRequest = errors.New("pr_url and pr_branch must be set together")
	// ErrEmptyIssueKey indicates a finding without an analyzer key.
	ErrEmptyIssueKey = errors.New("issue key must not be empty")
)

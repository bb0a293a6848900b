// Package model provides results, requests and errors of the fix orchestrator.
package model

import (
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
)

// Fix steps, used as the "step" label on failures.
const (
	StepReadFile      = "read_file"
	StepGeneratePatch = "generate_patch"
	StepCreateBranch  = "create_branch"
	StepWriteFile     = "write_file"
	StepOpenPR        = "open_pull_request"
	StepRecordPR      = "record_pull_request"
	StepUnexpected    = "unexpected"
	StepInterrupted   = "interrupted"
)

// FixResult is the outcome of one fix attempt.
type FixResult struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	IssueID  string            `json:"issue_id"`
	Status   issueModel.Status `json:"status"`
	PRURL    *string           `json:"pr_url"`
	Rejected bool              `json:"-"`
}

// SweepResult summarizes one auto-fix sweep.
type SweepResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Rejected  int `json:"rejected"`
}

// SyncResponse is returned by POST /api/sync.
type SyncResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	NewIssues int    `json:"new_issues"`
}

// ReconcileResponse is returned by POST /api/reconcile.
type ReconcileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Merged  int    `json:"merged"`
}

// ScanRequest is the optional body of POST /api/scan.
type ScanRequest struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
}

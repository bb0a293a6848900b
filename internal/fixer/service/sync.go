package service

import (
	"context"
	"fmt"
	"strings"

	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/sonarqube"
)

// SyncIssues fetches open findings and inserts the ones not tracked yet.
// Known keys are skipped without updating their stored fields. The insert is
// a single transaction.
func (s *service) SyncIssues(ctx context.Context) (int, error) {
	s.logger.Infow("Syncing issues from SonarQube", "project_key", s.opts.ProjectKey)

	findings, err := s.analyzer.FetchIssues(ctx, s.opts.ProjectKey, s.opts.Statuses)
	s.metrics.GatewayCall("sonarqube", "fetch_issues", err)
	if err != nil {
		return 0, fmt.Errorf("fetch issues: %w", err)
	}

	keys := make([]string, 0, len(findings))
	unique := make([]sonarqube.Issue, 0, len(findings))
	seen := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		f.Key = key
		keys = append(keys, key)
		unique = append(unique, f)
	}

	existing, err := s.repo.ExistingKeys(ctx, keys)
	if err != nil {
		return 0, err
	}

	fresh := make([]issueModel.Issue, 0, len(unique))
	for _, f := range unique {
		if _, ok := existing[f.Key]; ok {
			continue
		}
		fresh = append(fresh, s.toIssue(f))
	}

	created, err := s.repo.CreateBatch(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("store new issues: %w", err)
	}

	s.metrics.Synced(created)
	s.logger.Infow("Synced issues from SonarQube", "fetched", len(findings), "new", created)
	return created, nil
}

func (s *service) toIssue(f sonarqube.Issue) issueModel.Issue {
	project := f.Project
	if project == "" {
		project = s.opts.ProjectKey
	}
	issue := issueModel.Issue{
		SonarQubeIssueKey: f.Key,
		ProjectKey:        project,
		Rule:              f.Rule,
		Severity:          f.Severity,
		Component:         f.FilePath(),
		Line:              f.Line,
		Status:            issueModel.StatusNew,
		PRMergeState:      issueModel.MergeStateUnknown,
	}
	if f.Message != "" {
		issue.Message = issueModel.StringPtr(f.Message)
	}
	return issue
}

// Package service provides business logic layer for issue module.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/repository"
)

// Service defines the interface for issue read and housekeeping operations.
type Service interface {
	// ListIssues returns one page of issues filtered by status and severity.
	ListIssues(ctx context.Context, query model.ListIssuesQuery) (*model.IssueListResponse, error)

	// GetIssue returns an issue with its events.
	GetIssue(ctx context.Context, id string) (*model.Issue, error)

	// DeleteIssue removes an issue and all of its events.
	DeleteIssue(ctx context.Context, id string) error

	// RecentEvents returns the newest events across all issues.
	RecentEvents(ctx context.Context, limit int) ([]model.Event, error)
}

type service struct {
	repo   repository.Repository
	logger *zap.SugaredLogger
}

// New creates a new issue service instance.
func New(repo repository.Repository, logger *zap.SugaredLogger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

// ListIssues returns one page of issues filtered by status and severity.
func (s *service) ListIssues(ctx context.Context, query model.ListIssuesQuery) (*model.IssueListResponse, error) {
	filter := model.ListFilter{
		Severity: query.Severity,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = model.DefaultPageSize
	}
	if filter.PageSize > model.MaxPageSize {
		filter.PageSize = model.MaxPageSize
	}
	if query.Status != "" {
		status, err := model.ParseStatus(query.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	issues, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &model.IssueListResponse{
		Items:      issues,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: model.TotalPages(total, filter.PageSize),
	}, nil
}

// GetIssue returns an issue with its events.
func (s *service) GetIssue(ctx context.Context, id string) (*model.Issue, error) {
	return s.repo.GetWithEvents(ctx, id)
}

// DeleteIssue removes an issue and all of its events.
func (s *service) DeleteIssue(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("Issue deleted", "issue_id", id)
	return nil
}

// RecentEvents returns the newest events across all issues.
func (s *service) RecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	if limit < 1 {
		limit = model.DefaultEventLimit
	}
	if limit > model.MaxEventLimit {
		limit = model.MaxEventLimit
	}
	return s.repo.RecentEvents(ctx, limit)
}

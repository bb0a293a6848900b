// Package service provides business logic layer for statistics module.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/festy23/code_janitor/internal/statistics/model"
	"github.com/festy23/code_janitor/internal/statistics/repository"
)

// Service defines the interface for statistics business logic operations.
type Service interface {
	// GetSummary returns issue and pull request counts with the merge success rate.
	GetSummary(ctx context.Context) (*model.MetricsSummary, error)
}

type service struct {
	repo   repository.Repository
	logger *zap.SugaredLogger
}

// New creates a new statistics service instance.
func New(repo repository.Repository, logger *zap.SugaredLogger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

// GetSummary returns issue and pull request counts with the merge success rate.
func (s *service) GetSummary(ctx context.Context) (*model.MetricsSummary, error) {
	counts, err := s.repo.CountIssues(ctx)
	if err != nil {
		s.logger.Errorw("GetSummary failed", "error", err)
		return nil, err
	}

	return &model.MetricsSummary{
		TotalIssues:    counts.Total,
		NewIssues:      counts.New,
		FixingIssues:   counts.Fixing,
		PROpenIssues:   counts.PROpen,
		CIPassedIssues: counts.CIPassed,
		CIFailedIssues: counts.CIFailed,
		ClosedIssues:   counts.Closed,
		TotalPRs:       counts.PRsCreated,
		MergedPRs:      counts.MergedPRs,
		RejectedPRs:    counts.RejectedPRs,
		SuccessRate:    model.SuccessRate(counts.MergedPRs, counts.PRsCreated),
	}, nil
}

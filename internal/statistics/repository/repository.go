// Package repository provides data access layer for statistics module.
package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/statistics/model"
)

// Repository defines the interface for statistics data access operations.
type Repository interface {
	// CountIssues returns per-status and pull request counts in one snapshot.
	CountIssues(ctx context.Context) (*model.IssueCounts, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new statistics repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

// CountIssues returns per-status and pull request counts in one snapshot.
// A single aggregate statement keeps the counts mutually consistent.
func (r *repository) CountIssues(ctx context.Context) (*model.IssueCounts, error) {
	r.logger.Debugw("CountIssues called")

	var counts model.IssueCounts
	err := r.db.WithContext(ctx).
		Model(&issueModel.Issue{}).
		Select(`
			COUNT(*) as total_issues,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as new_issues,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as fixing_issues,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as pr_open_issues,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as ci_passed_issues,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as ci_failed_issues,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as closed_issues,
			COALESCE(SUM(CASE WHEN pr_url IS NOT NULL THEN 1 ELSE 0 END), 0) as total_prs_created,
			COALESCE(SUM(CASE WHEN pr_merge_state = ? THEN 1 ELSE 0 END), 0) as merged_prs,
			COALESCE(SUM(CASE WHEN status = ? AND pr_merge_state = ? THEN 1 ELSE 0 END), 0) as rejected_prs
		`,
			issueModel.StatusNew,
			issueModel.StatusFixing,
			issueModel.StatusPROpen,
			issueModel.StatusCIPassed,
			issueModel.StatusCIFailed,
			issueModel.StatusClosed,
			issueModel.MergeStateMerged,
			issueModel.StatusClosed, issueModel.MergeStateNotMerged,
		).
		Scan(&counts).Error
	if err != nil {
		r.logger.Errorw("CountIssues database error", "error", err)
		return nil, err
	}

	r.logger.Debugw("CountIssues completed", "total_issues", counts.Total)
	return &counts, nil
}

// Package repository provides the issue store and event log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/code_janitor/internal/issue/model"
)

// Changes lists the PR columns a transition writes alongside the status.
// Nil fields are left untouched.
type Changes struct {
	PRURL      *string
	PRBranch   *string
	MergeState *model.MergeState
}

// TransitionRequest is one status change applied by TransitionBatch.
type TransitionRequest struct {
	IssueID string
	From    model.Status
	To      model.Status
	Changes Changes
	Event   *model.Event
}

// Repository defines the interface for issue data access operations.
type Repository interface {
	// Create inserts a new issue. Returns ErrIssueExists on a duplicate analyzer key.
	Create(ctx context.Context, issue *model.Issue) error

	// GetByID returns an issue without its events.
	GetByID(ctx context.Context, id string) (*model.Issue, error)

	// GetWithEvents returns an issue with its events in chronological order.
	GetWithEvents(ctx context.Context, id string) (*model.Issue, error)

	// CreateBatch inserts issues together with one detected event each.
	// Either every issue is stored or none is.
	CreateBatch(ctx context.Context, issues []model.Issue) (int, error)

	// ExistingKeys returns the subset of keys already tracked.
	ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error)

	// List returns one page of issues ordered by creation time, newest first.
	List(ctx context.Context, filter model.ListFilter) ([]model.Issue, int64, error)

	// ListByStatus returns up to limit issues in status, oldest first.
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.Issue, error)

	// ListWithOpenPullRequests returns issues with a recorded PR that is not known to be merged.
	ListWithOpenPullRequests(ctx context.Context) ([]model.Issue, error)

	// Transition moves an issue from one status to another and appends event.
	// The write only lands if the stored status still equals from.
	Transition(
		ctx context.Context,
		id string,
		from, to model.Status,
		changes Changes,
		event *model.Event,
	) (*model.Issue, error)

	// TransitionBatch applies several transitions in a single transaction and
	// returns the ids of the issues it changed. An issue whose status moved
	// since the request was built is transitioned from its current status when
	// that is still legal, and skipped otherwise.
	TransitionBatch(ctx context.Context, requests []TransitionRequest) ([]string, error)

	// AppendEvent adds an event without touching the issue status.
	AppendEvent(ctx context.Context, event *model.Event) error

	// RecentEvents returns the newest events across all issues.
	RecentEvents(ctx context.Context, limit int) ([]model.Event, error)

	// Delete removes an issue and its events.
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new issue repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

// Create inserts a new issue.
func (r *repository) Create(ctx context.Context, issue *model.Issue) error {
	if strings.TrimSpace(issue.SonarQubeIssueKey) == "" {
		return model.ErrEmptyIssueKey
	}
	if (issue.PRURL == nil) != (issue.PRBranch == nil) {
		return model.ErrInvalidPullRequest
	}

	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(issue).Error; err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("%w: %s", model.ErrIssueExists, issue.SonarQubeIssueKey)
		}
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

// CreateBatch inserts issues together with one detected event each.
func (r *repository) CreateBatch(ctx context.Context, issues []model.Issue) (int, error) {
	if len(issues) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &repository{db: tx, logger: r.logger}
		for i := range issues {
			issue := &issues[i]
			if err := txRepo.Create(ctx, issue); err != nil {
				return err
			}
			detected := model.NewEvent(issue.ID, model.EventIssueDetected,
				"Issue detected by SonarQube: "+derefString(issue.Message),
				map[string]any{"rule": issue.Rule, "severity": issue.Severity})
			if err := createEvent(tx.WithContext(ctx), &detected); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(issues), nil
}

// GetByID returns an issue without its events.
func (r *repository) GetByID(ctx context.Context, id string) (*model.Issue, error) {
	var issue model.Issue
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrIssueNotFound
		}
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &issue, nil
}

// GetWithEvents returns an issue with its events in chronological order.
func (r *repository) GetWithEvents(ctx context.Context, id string) (*model.Issue, error) {
	var issue model.Issue
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrIssueNotFound
		}
		return nil, fmt.Errorf("get issue with events: %w", err)
	}
	if issue.Events == nil {
		issue.Events = []model.Event{}
	}
	return &issue, nil
}

// ExistingKeys returns the subset of keys already tracked.
func (r *repository) ExistingKeys(ctx context.Context, keys []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	// Chunked to stay under the bind-variable limit of both drivers.
	const chunk = 500
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}

		var found []string
		err := r.db.WithContext(ctx).
			Model(&model.Issue{}).
			Where("sonarqube_issue_key IN ?", keys[start:end]).
			Pluck("sonarqube_issue_key", &found).Error
		if err != nil {
			return nil, fmt.Errorf("lookup existing keys: %w", err)
		}
		for _, k := range found {
			existing[k] = struct{}{}
		}
	}
	return existing, nil
}

// List returns one page of issues ordered by creation time, newest first.
func (r *repository) List(ctx context.Context, filter model.ListFilter) ([]model.Issue, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Issue{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	issues := []model.Issue{}
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&issues).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}

	return issues, total, nil
}

// ListByStatus returns up to limit issues in status, oldest first.
func (r *repository) ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.Issue, error) {
	issues := []model.Issue{}
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("list issues by status: %w", err)
	}
	return issues, nil
}

// ListWithOpenPullRequests returns issues with a recorded PR that is not known to be merged.
func (r *repository) ListWithOpenPullRequests(ctx context.Context) ([]model.Issue, error) {
	issues := []model.Issue{}
	err := r.db.WithContext(ctx).
		Where("pr_url IS NOT NULL AND pr_url <> ''").
		Where("pr_merge_state <> ?", model.MergeStateMerged).
		Order("created_at ASC").
		Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("list issues with open pull requests: %w", err)
	}
	return issues, nil
}

// Transition moves an issue from one status to another and appends event.
func (r *repository) Transition(
	ctx context.Context,
	id string,
	from, to model.Status,
	changes Changes,
	event *model.Event,
) (*model.Issue, error) {
	req := TransitionRequest{IssueID: id, From: from, To: to, Changes: changes, Event: event}

	var updated *model.Issue
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		updated, txErr = transitionTx(tx, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debugw("Issue status changed", "issue_id", id, "from", from, "to", to)
	return updated, nil
}

// TransitionBatch applies several transitions in a single transaction.
// Status conflicts are resolved per issue; any other failure rolls back the
// whole batch.
func (r *repository) TransitionBatch(ctx context.Context, requests []TransitionRequest) ([]string, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	var applied []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied = applied[:0]
		for _, req := range requests {
			_, err := transitionTx(tx, req)
			if errors.Is(err, model.ErrStatusConflict) {
				var ok bool
				ok, err = r.retryFromCurrent(tx, req)
				if err == nil && !ok {
					continue
				}
			}
			if err != nil {
				return fmt.Errorf("issue %s: %w", req.IssueID, err)
			}
			applied = append(applied, req.IssueID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debugw("Issue statuses changed", "count", len(applied), "skipped", len(requests)-len(applied))
	return applied, nil
}

// retryFromCurrent re-reads an issue that moved under a batch request and
// applies the request from the status it now has. It reports false when the
// target is no longer reachable.
func (r *repository) retryFromCurrent(tx *gorm.DB, req TransitionRequest) (bool, error) {
	var current model.Issue
	if err := tx.Select("status").Where("id = ?", req.IssueID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, model.ErrIssueNotFound
		}
		return false, fmt.Errorf("load issue: %w", err)
	}
	if current.Status == req.From || !model.CanTransition(current.Status, req.To) {
		r.logger.Infow("Skipping transition, issue status changed", "issue_id", req.IssueID,
			"expected", req.From, "found", current.Status, "to", req.To)
		return false, nil
	}

	if req.Event != nil {
		if _, ok := req.Event.EventMetadata["from"]; ok {
			req.Event.EventMetadata["from"] = string(current.Status)
		}
	}
	req.From = current.Status
	if _, err := transitionTx(tx, req); err != nil {
		if errors.Is(err, model.ErrStatusConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// transitionTx performs a compare-and-set on the status column: the update
// only matches while the stored status still equals req.From.
func transitionTx(tx *gorm.DB, req TransitionRequest) (*model.Issue, error) {
	if !model.CanTransition(req.From, req.To) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrIllegalTransition, req.From, req.To)
	}
	changes := req.Changes
	if (changes.PRURL == nil) != (changes.PRBranch == nil) {
		return nil, model.ErrInvalidPullRequest
	}

	var current model.Issue
	if err := tx.Where("id = ?", req.IssueID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrIssueNotFound
		}
		return nil, fmt.Errorf("load issue: %w", err)
	}
	if current.Status != req.From {
		return nil, fmt.Errorf("%w: expected %s, found %s", model.ErrStatusConflict, req.From, current.Status)
	}

	updates := map[string]interface{}{
		"status":     req.To,
		"updated_at": monotonicNow(current.UpdatedAt),
	}
	if changes.PRURL != nil {
		updates["pr_url"] = *changes.PRURL
		updates["pr_branch"] = *changes.PRBranch
	}
	if changes.MergeState != nil {
		updates["pr_merge_state"] = *changes.MergeState
	}

	result := tx.Model(&model.Issue{}).
		Where("id = ? AND status = ?", req.IssueID, req.From).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("update issue status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: expected %s", model.ErrStatusConflict, req.From)
	}

	if req.Event != nil {
		req.Event.IssueID = req.IssueID
		if err := createEvent(tx, req.Event); err != nil {
			return nil, err
		}
	}

	var reloaded model.Issue
	if err := tx.Where("id = ?", req.IssueID).First(&reloaded).Error; err != nil {
		return nil, fmt.Errorf("reload issue: %w", err)
	}
	return &reloaded, nil
}

// AppendEvent adds an event without touching the issue status.
func (r *repository) AppendEvent(ctx context.Context, event *model.Event) error {
	return createEvent(r.db.WithContext(ctx), event)
}

// RecentEvents returns the newest events across all issues.
func (r *repository) RecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	events := []model.Event{}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return events, nil
}

// Delete removes an issue and its events.
// Events are deleted explicitly so the cascade holds even where the
// driver has foreign keys disabled.
func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", id).Delete(&model.Event{}).Error; err != nil {
			return fmt.Errorf("delete issue events: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&model.Issue{})
		if result.Error != nil {
			return fmt.Errorf("delete issue: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return model.ErrIssueNotFound
		}
		return nil
	})
}

func createEvent(db *gorm.DB, event *model.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := db.Create(event).Error; err != nil {
		if isForeignKeyError(err) {
			return model.ErrIssueNotFound
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// monotonicNow returns the current time, never earlier than prev.
func monotonicNow(prev time.Time) time.Time {
	now := time.Now().UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}

// isDuplicateError checks if error is a unique constraint violation.
func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func isForeignKeyError(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "violates foreign key") || strings.Contains(msg, "FOREIGN KEY constraint")
}

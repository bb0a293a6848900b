package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/festy23/code_janitor/internal/issue/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	var sqlDB *sql.DB
	sqlDB, err = db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.Issue{}, &model.Event{}))
	return db
}

func newIssue(key string) *model.Issue {
	line := 12
	return &model.Issue{
		SonarQubeIssueKey: key,
		ProjectKey:        "acme-widgets",
		Rule:              "go:S1186",
		Severity:          "MAJOR",
		Component:         "internal/widgets/widget.go",
		Line:              &line,
		Message:           model.StringPtr("Add a nested comment explaining why this function is empty."),
	}
}

func countRows(t *testing.T, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(value).Count(&n).Error)
	return n
}

func TestRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id and defaults", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())

		issue := newIssue("acme:go:S1186:a1")
		require.NoError(t, repo.Create(ctx, issue))

		assert.Len(t, issue.ID, 36)
		assert.Equal(t, model.StatusNew, issue.Status)
		assert.Equal(t, model.MergeStateUnknown, issue.PRMergeState)
		assert.False(t, issue.CreatedAt.IsZero())
		assert.Equal(t, issue.CreatedAt, issue.UpdatedAt)
	})

	t.Run("duplicate natural key is rejected", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())

		require.NoError(t, repo.Create(ctx, newIssue("acme:dup")))
		err := repo.Create(ctx, newIssue("acme:dup"))

		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrIssueExists))
		assert.Equal(t, int64(1), countRows(t, db, &model.Issue{}))
	})

	t.Run("empty key", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		err := repo.Create(ctx, newIssue("  "))
		assert.ErrorIs(t, err, model.ErrEmptyIssueKey)
	})

	t.Run("pr url without branch", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		issue := newIssue("acme:half-pr")
		issue.PRURL = model.StringPtr("https://github.com/acme/widgets/pull/1")
		assert.ErrorIs(t, repo.Create(ctx, issue), model.ErrInvalidPullRequest)
	})
}

func TestRepository_CreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts issues with detected events", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())

		n, err := repo.CreateBatch(ctx, []model.Issue{*newIssue("k1"), *newIssue("k2")})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		var events []model.Event
		require.NoError(t, db.Find(&events).Error)
		require.Len(t, events, 2)
		for _, e := range events {
			assert.Equal(t, model.EventIssueDetected, e.EventType)
			assert.Contains(t, e.Message, "Issue detected by SonarQube")
		}
	})

	t.Run("a duplicate rolls back the whole batch", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		require.NoError(t, repo.Create(ctx, newIssue("k2")))

		n, err := repo.CreateBatch(ctx, []model.Issue{*newIssue("k1"), *newIssue("k2")})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrIssueExists)
		assert.Zero(t, n)

		assert.Equal(t, int64(1), countRows(t, db, &model.Issue{}))
		assert.Equal(t, int64(0), countRows(t, db, &model.Event{}))
	})

	t.Run("empty batch", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		n, err := repo.CreateBatch(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := New(setupTestDB(t), zap.NewNop().Sugar())

	issue := newIssue("k1")
	require.NoError(t, repo.Create(ctx, issue))

	got, err := repo.GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "k1", got.SonarQubeIssueKey)
	assert.Equal(t, 12, *got.Line)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrIssueNotFound)
}

func TestRepository_GetWithEvents(t *testing.T) {
	ctx := context.Background()
	repo := New(setupTestDB(t), zap.NewNop().Sugar())

	issue := newIssue("k1")
	require.NoError(t, repo.Create(ctx, issue))

	t.Run("no events", func(t *testing.T) {
		got, err := repo.GetWithEvents(ctx, issue.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.Events)
		assert.Empty(t, got.Events)
	})

	t.Run("events in chronological order", func(t *testing.T) {
		base := time.Now().UTC()
		for i, typ := range []model.EventType{model.EventStatusUpdated, model.EventAICalled, model.EventError} {
			e := model.NewEvent(issue.ID, typ, fmt.Sprintf("event %d", i), nil)
			e.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
			require.NoError(t, repo.AppendEvent(ctx, &e))
		}

		got, err := repo.GetWithEvents(ctx, issue.ID)
		require.NoError(t, err)
		require.Len(t, got.Events, 3)
		assert.Equal(t, model.EventStatusUpdated, got.Events[0].EventType)
		assert.Equal(t, model.EventAICalled, got.Events[1].EventType)
		assert.Equal(t, model.EventError, got.Events[2].EventType)
	})

	t.Run("missing issue", func(t *testing.T) {
		_, err := repo.GetWithEvents(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrIssueNotFound)
	})
}

func TestRepository_ExistingKeys(t *testing.T) {
	ctx := context.Background()
	repo := New(setupTestDB(t), zap.NewNop().Sugar())
	require.NoError(t, repo.Create(ctx, newIssue("k1")))
	require.NoError(t, repo.Create(ctx, newIssue("k3")))

	found, err := repo.ExistingKeys(ctx, []string{"k1", "k2", "k3"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "k1")
	assert.Contains(t, found, "k3")

	empty, err := repo.ExistingKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_List(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := New(db, zap.NewNop().Sugar())

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		issue := newIssue(fmt.Sprintf("k%d", i))
		issue.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			issue.Severity = "CRITICAL"
		}
		require.NoError(t, repo.Create(ctx, issue))
	}
	require.NoError(t, db.Model(&model.Issue{}).Where("sonarqube_issue_key = ?", "k4").
		Update("status", model.StatusFixing).Error)

	t.Run("newest first with paging", func(t *testing.T) {
		items, total, err := repo.List(ctx, model.ListFilter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		require.Len(t, items, 2)
		assert.Equal(t, "k4", items[0].SonarQubeIssueKey)
		assert.Equal(t, "k3", items[1].SonarQubeIssueKey)

		items, _, err = repo.List(ctx, model.ListFilter{Page: 3, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "k0", items[0].SonarQubeIssueKey)
	})

	t.Run("filter by status and severity", func(t *testing.T) {
		items, total, err := repo.List(ctx, model.ListFilter{Status: model.StatusNew, Severity: "CRITICAL", Page: 1, PageSize: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 2)
		assert.Equal(t, "k2", items[0].SonarQubeIssueKey)
	})
}

func TestRepository_ListByStatus(t *testing.T) {
	ctx := context.Background()
	repo := New(setupTestDB(t), zap.NewNop().Sugar())

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		issue := newIssue(fmt.Sprintf("k%d", i))
		issue.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, issue))
	}

	issues, err := repo.ListByStatus(ctx, model.StatusNew, 3)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "k0", issues[0].SonarQubeIssueKey, "oldest first")

	issues, err = repo.ListByStatus(ctx, model.StatusPROpen, 10)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func openPR(t *testing.T, repo Repository, key string) *model.Issue {
	t.Helper()
	ctx := context.Background()
	issue := newIssue(key)
	require.NoError(t, repo.Create(ctx, issue))
	_, err := repo.Transition(ctx, issue.ID, model.StatusNew, model.StatusFixing, Changes{}, nil)
	require.NoError(t, err)
	notMerged := model.MergeStateNotMerged
	updated, err := repo.Transition(ctx, issue.ID, model.StatusFixing, model.StatusPROpen, Changes{
		PRURL:      model.StringPtr("https://github.com/acme/widgets/pull/" + key),
		PRBranch:   model.StringPtr("ai-fix/" + key),
		MergeState: &notMerged,
	}, nil)
	require.NoError(t, err)
	return updated
}

func TestRepository_ListWithOpenPullRequests(t *testing.T) {
	ctx := context.Background()
	repo := New(setupTestDB(t), zap.NewNop().Sugar())

	require.NoError(t, repo.Create(ctx, newIssue("no-pr")))
	open := openPR(t, repo, "open")
	merged := openPR(t, repo, "merged")
	mergedState := model.MergeStateMerged
	_, err := repo.Transition(ctx, merged.ID, model.StatusPROpen, model.StatusClosed, Changes{MergeState: &mergedState}, nil)
	require.NoError(t, err)

	issues, err := repo.ListWithOpenPullRequests(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, open.ID, issues[0].ID)
}

func TestRepository_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("compare and set with event", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		issue := newIssue("k1")
		require.NoError(t, repo.Create(ctx, issue))

		event := model.NewEvent("", model.EventStatusUpdated, "Status changed to FIXING", nil)
		updated, err := repo.Transition(ctx, issue.ID, model.StatusNew, model.StatusFixing, Changes{}, &event)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFixing, updated.Status)
		assert.False(t, updated.UpdatedAt.Before(issue.UpdatedAt))
		assert.Equal(t, issue.ID, event.IssueID)
		assert.Equal(t, int64(1), countRows(t, db, &model.Event{}))
	})

	t.Run("stale from status is a conflict", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		issue := newIssue("k1")
		require.NoError(t, repo.Create(ctx, issue))
		_, err := repo.Transition(ctx, issue.ID, model.StatusNew, model.StatusFixing, Changes{}, nil)
		require.NoError(t, err)

		event := model.NewEvent("", model.EventStatusUpdated, "second attempt", nil)
		_, err = repo.Transition(ctx, issue.ID, model.StatusNew, model.StatusFixing, Changes{}, &event)
		assert.ErrorIs(t, err, model.ErrStatusConflict)
		assert.Equal(t, int64(0), countRows(t, db, &model.Event{}), "event rolled back with the update")
	})

	t.Run("illegal transition", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		issue := newIssue("k1")
		require.NoError(t, repo.Create(ctx, issue))

		_, err := repo.Transition(ctx, issue.ID, model.StatusNew, model.StatusClosed, Changes{}, nil)
		assert.ErrorIs(t, err, model.ErrIllegalTransition)
	})

	t.Run("closed is terminal", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		issue := openPR(t, repo, "k1")
		merged := model.MergeStateMerged
		_, err := repo.Transition(ctx, issue.ID, model.StatusPROpen, model.StatusClosed, Changes{MergeState: &merged}, nil)
		require.NoError(t, err)

		for _, to := range model.AllStatuses {
			_, err := repo.Transition(ctx, issue.ID, model.StatusClosed, to, Changes{}, nil)
			assert.ErrorIs(t, err, model.ErrIllegalTransition, to)
		}
	})

	t.Run("pr fields are written together", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		issue := newIssue("k1")
		require.NoError(t, repo.Create(ctx, issue))
		_, err := repo.Transition(ctx, issue.ID, model.StatusNew, model.StatusFixing, Changes{}, nil)
		require.NoError(t, err)

		_, err = repo.Transition(ctx, issue.ID, model.StatusFixing, model.StatusPROpen,
			Changes{PRURL: model.StringPtr("https://github.com/acme/widgets/pull/1")}, nil)
		assert.ErrorIs(t, err, model.ErrInvalidPullRequest)

		updated := openPR(t, repo, "k2")
		assert.Equal(t, "ai-fix/k2", *updated.PRBranch)
		assert.Equal(t, model.MergeStateNotMerged, updated.PRMergeState)
	})

	t.Run("missing issue", func(t *testing.T) {
		repo := New(setupTestDB(t), zap.NewNop().Sugar())
		_, err := repo.Transition(ctx, "missing", model.StatusNew, model.StatusFixing, Changes{}, nil)
		assert.ErrorIs(t, err, model.ErrIssueNotFound)
	})
}

func TestRepository_TransitionBatch(t *testing.T) {
	ctx := context.Background()
	merged := model.MergeStateMerged

	t.Run("applies all", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		a := openPR(t, repo, "a")
		b := openPR(t, repo, "b")

		ea := model.NewEvent("", model.EventStatusUpdated, "merged", nil)
		eb := model.NewEvent("", model.EventStatusUpdated, "merged", nil)
		applied, err := repo.TransitionBatch(ctx, []TransitionRequest{
			{IssueID: a.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}, Event: &ea},
			{IssueID: b.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}, Event: &eb},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID, b.ID}, applied)

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusClosed, got.Status)
		assert.Equal(t, model.MergeStateMerged, got.PRMergeState)
		assert.Equal(t, int64(2), countRows(t, db, &model.Event{}))
	})

	t.Run("one failure rolls back everything", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		a := openPR(t, repo, "a")

		applied, err := repo.TransitionBatch(ctx, []TransitionRequest{
			{IssueID: a.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}},
			{IssueID: "missing", From: model.StatusPROpen, To: model.StatusClosed},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrIssueNotFound)
		assert.Nil(t, applied)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPROpen, got.Status)
	})

	t.Run("moved issue transitions from its current status", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		a := openPR(t, repo, "a")
		b := openPR(t, repo, "b")
		_, err := repo.Transition(ctx, b.ID, model.StatusPROpen, model.StatusCIFailed, Changes{}, nil)
		require.NoError(t, err)

		eb := model.NewEvent("", model.EventStatusUpdated, "merged", map[string]any{"from": string(model.StatusPROpen)})
		applied, err := repo.TransitionBatch(ctx, []TransitionRequest{
			{IssueID: a.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}},
			{IssueID: b.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}, Event: &eb},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID, b.ID}, applied)

		got, err := repo.GetWithEvents(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusClosed, got.Status)
		assert.Equal(t, model.MergeStateMerged, got.PRMergeState)
		require.Len(t, got.Events, 1)
		assert.Equal(t, string(model.StatusCIFailed), got.Events[0].EventMetadata["from"])
	})

	t.Run("unreachable target is skipped without rolling back", func(t *testing.T) {
		db := setupTestDB(t)
		repo := New(db, zap.NewNop().Sugar())
		a := openPR(t, repo, "a")
		b := openPR(t, repo, "b")
		notMerged := model.MergeStateNotMerged
		_, err := repo.Transition(ctx, b.ID, model.StatusPROpen, model.StatusClosed, Changes{MergeState: &notMerged}, nil)
		require.NoError(t, err)

		eb := model.NewEvent("", model.EventStatusUpdated, "merged", nil)
		applied, err := repo.TransitionBatch(ctx, []TransitionRequest{
			{IssueID: a.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}},
			{IssueID: b.ID, From: model.StatusPROpen, To: model.StatusClosed, Changes: Changes{MergeState: &merged}, Event: &eb},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID}, applied)

		got, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusClosed, got.Status)

		got, err = repo.GetWithEvents(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.MergeStateNotMerged, got.PRMergeState)
		assert.Empty(t, got.Events)
	})
}

func TestRepository_RecentEvents(t *testing.T) {
	ctx := context.Background()
	repo := New(setupTestDB(t), zap.NewNop().Sugar())
	issue := newIssue("k1")
	require.NoError(t, repo.Create(ctx, issue))

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		e := model.NewEvent(issue.ID, model.EventStatusUpdated, fmt.Sprintf("e%d", i), map[string]any{"n": i})
		e.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.AppendEvent(ctx, &e))
	}

	events, err := repo.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e4", events[0].Message)
	assert.Equal(t, "e2", events[2].Message)
	assert.EqualValues(t, 4, events[0].EventMetadata["n"])
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := New(db, zap.NewNop().Sugar())

	_, err := repo.CreateBatch(ctx, []model.Issue{*newIssue("k1"), *newIssue("k2")})
	require.NoError(t, err)
	var victim model.Issue
	require.NoError(t, db.Where("sonarqube_issue_key = ?", "k1").First(&victim).Error)

	require.NoError(t, repo.Delete(ctx, victim.ID))
	assert.Equal(t, int64(1), countRows(t, db, &model.Issue{}))
	assert.Equal(t, int64(1), countRows(t, db, &model.Event{}), "events of the deleted issue are gone")

	assert.ErrorIs(t, repo.Delete(ctx, victim.ID), model.ErrIssueNotFound)
}

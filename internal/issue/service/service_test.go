package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/festy23/code_janitor/internal/issue/model"
	"github.com/festy23/code_janitor/internal/issue/repository"
)

func setupService(t *testing.T) (Service, repository.Repository) {
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

	repo := repository.New(db, zap.NewNop().Sugar())
	return New(repo, zap.NewNop().Sugar()), repo
}

func seed(t *testing.T, repo repository.Repository, n int, severity string) []model.Issue {
	t.Helper()
	issues := make([]model.Issue, 0, n)
	for i := 0; i < n; i++ {
		issues = append(issues, model.Issue{
			SonarQubeIssueKey: fmt.Sprintf("%s-%d", severity, i),
			ProjectKey:        "acme-widgets",
			Rule:              "go:S1186",
			Severity:          severity,
			Component:         "a.go",
		})
	}
	_, err := repo.CreateBatch(context.Background(), issues)
	require.NoError(t, err)
	return issues
}

func TestService_ListIssues(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupService(t)
	seed(t, repo, 3, "MAJOR")
	seed(t, repo, 2, "MINOR")

	t.Run("pages", func(t *testing.T) {
		resp, err := svc.ListIssues(ctx, model.ListIssuesQuery{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 5, resp.Total)
		assert.Equal(t, 3, resp.TotalPages)
		assert.Equal(t, 2, resp.Page)
		assert.Len(t, resp.Items, 2)
	})

	t.Run("filters by severity and status", func(t *testing.T) {
		resp, err := svc.ListIssues(ctx, model.ListIssuesQuery{Page: 1, PageSize: 50, Severity: "MINOR", Status: "new"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, resp.Total)
		for _, issue := range resp.Items {
			assert.Equal(t, "MINOR", issue.Severity)
		}
	})

	t.Run("status with no matches", func(t *testing.T) {
		resp, err := svc.ListIssues(ctx, model.ListIssuesQuery{Page: 1, PageSize: 50, Status: "CLOSED"})
		require.NoError(t, err)
		assert.Zero(t, resp.Total)
		assert.Zero(t, resp.TotalPages)
		assert.Empty(t, resp.Items)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := svc.ListIssues(ctx, model.ListIssuesQuery{Page: 1, PageSize: 50, Status: "DONE"})
		assert.ErrorIs(t, err, model.ErrInvalidStatus)
	})

	t.Run("defaults and caps paging", func(t *testing.T) {
		resp, err := svc.ListIssues(ctx, model.ListIssuesQuery{PageSize: 1000})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, model.MaxPageSize, resp.PageSize)
	})
}

func TestService_GetAndDeleteIssue(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupService(t)
	issues := seed(t, repo, 1, "MAJOR")

	got, err := svc.GetIssue(ctx, issues[0].ID)
	require.NoError(t, err)
	require.Len(t, got.Events, 1)
	assert.Equal(t, model.EventIssueDetected, got.Events[0].EventType)

	require.NoError(t, svc.DeleteIssue(ctx, issues[0].ID))

	_, err = svc.GetIssue(ctx, issues[0].ID)
	assert.ErrorIs(t, err, model.ErrIssueNotFound)
	assert.ErrorIs(t, svc.DeleteIssue(ctx, issues[0].ID), model.ErrIssueNotFound)

	events, err := svc.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_RecentEvents(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupService(t)
	seed(t, repo, 4, "INFO")

	events, err := svc.RecentEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].CreatedAt.After(events[i-1].CreatedAt))
	}

	events, err = svc.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

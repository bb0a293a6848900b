package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appConfig "github.com/festy23/code_janitor/internal/config"
	fixService "github.com/festy23/code_janitor/internal/fixer/service"
	issueModel "github.com/festy23/code_janitor/internal/issue/model"
	issueRepository "github.com/festy23/code_janitor/internal/issue/repository"
	"github.com/festy23/code_janitor/internal/telemetry"
)

func newTestApp(t *testing.T, withFixer bool) *app {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&issueModel.Issue{}, &issueModel.Event{}))

	cfg := appConfig.LoadFromEnv()
	cfg.GinMode = "test"
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}

	a := &app{
		cfg:     cfg,
		logger:  zap.NewNop().Sugar(),
		db:      db,
		metrics: telemetry.New(),
	}
	if withFixer {
		a.fixer = fixService.New(fixService.Deps{
			Repo:    issueRepository.New(db, a.logger),
			Metrics: a.metrics,
			Logger:  a.logger,
		}, fixService.Options{})
	}
	return a
}

func TestNewRouter(t *testing.T) {
	router := newRouter(newTestApp(t, true))

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "service info", method: http.MethodGet, path: "/", want: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "prometheus", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{name: "list issues", method: http.MethodGet, path: "/api/issues", want: http.StatusOK},
		{name: "recent events", method: http.MethodGet, path: "/api/events/recent", want: http.StatusOK},
		{name: "metrics summary", method: http.MethodGet, path: "/api/metrics/summary", want: http.StatusOK},
		{name: "trigger fix on missing issue", method: http.MethodPost,
			path: "/api/issues/9d5e1c0a-2b7f-4e3d-8c6a-1f0e9d8c7b6a/trigger-fix", want: http.StatusNotFound},
		{name: "unknown route", method: http.MethodGet, path: "/api/unknown", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNewRouter_WithoutFixer(t *testing.T) {
	router := newRouter(newTestApp(t, false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/issues", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_Middleware(t *testing.T) {
	router := newRouter(newTestApp(t, false))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, version, info["version"])
}

func TestRootCmd_Args(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "fix without id", args: []string{"fix"}, want: "accepts 1 arg(s)"},
		{name: "fix pending with id", args: []string{"fix", "--pending", "abc"}, want: "unknown command"},
		{name: "scan with owner only", args: []string{"scan", "acme"}, want: "expected no arguments or owner and repo"},
		{name: "sync with args", args: []string{"sync", "extra"}, want: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			var out strings.Builder
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRootCmd_Version(t *testing.T) {
	cmd := newRootCmd()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), version)
}

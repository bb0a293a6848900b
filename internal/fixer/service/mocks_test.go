package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/festy23/code_janitor/internal/patchgen"
	"github.com/festy23/code_janitor/internal/scanner"
	"github.com/festy23/code_janitor/internal/scm"
	"github.com/festy23/code_janitor/internal/sonarqube"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) FetchIssues(ctx context.Context, projectKey string, statuses []string) ([]sonarqube.Issue, error) {
	args := m.Called(ctx, projectKey, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sonarqube.Issue), args.Error(1)
}

type mockSCM struct {
	mock.Mock
}

func (m *mockSCM) ReadFile(ctx context.Context, path, ref string) (*scm.FileContent, error) {
	args := m.Called(ctx, path, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scm.FileContent), args.Error(1)
}

func (m *mockSCM) CreateBranch(ctx context.Context, name, fromRef string) (string, error) {
	args := m.Called(ctx, name, fromRef)
	return args.String(0), args.Error(1)
}

func (m *mockSCM) WriteFile(ctx context.Context, path, content, message, branch, versionToken string) (string, error) {
	args := m.Called(ctx, path, content, message, branch, versionToken)
	return args.String(0), args.Error(1)
}

func (m *mockSCM) FindOpenPullRequest(ctx context.Context, headBranch string) (string, bool, error) {
	args := m.Called(ctx, headBranch)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockSCM) OpenPullRequest(ctx context.Context, title, body, headBranch, baseRef string) (string, error) {
	args := m.Called(ctx, title, body, headBranch, baseRef)
	return args.String(0), args.Error(1)
}

func (m *mockSCM) GetPullRequestStatus(ctx context.Context, prRef string) (*scm.PullRequestStatus, error) {
	args := m.Called(ctx, prRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scm.PullRequestStatus), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req patchgen.Request) patchgen.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(patchgen.Result)
}

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) Scan(ctx context.Context, owner, repo string) *scanner.Result {
	args := m.Called(ctx, owner, repo)
	return args.Get(0).(*scanner.Result)
}

var (
	_ Analyzer       = (*mockAnalyzer)(nil)
	_ SourceControl  = (*mockSCM)(nil)
	_ PatchGenerator = (*mockGenerator)(nil)
	_ Scanner        = (*mockScanner)(nil)
)

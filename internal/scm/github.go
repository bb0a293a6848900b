// Package scm provides the source-control gateway backed by the GitHub REST API.
package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	appConfig "github.com/festy23/code_janitor/internal/config"
)

// ErrStaleVersion indicates a write was rejected because the file changed
// since its version token was read.
var ErrStaleVersion = errors.New("file version is stale")

// FileContent is a file body together with its version token (the blob SHA).
type FileContent struct {
	Path    string
	Content string
	SHA     string
}

// CommitStatus is one CI context reported on a commit.
type CommitStatus struct {
	Context     string `json:"context"`
	State       string `json:"state"`
	Description string `json:"description"`
}

// PullRequestStatus is the live state of a pull request.
type PullRequestStatus struct {
	Number    int            `json:"number"`
	State     string         `json:"state"`
	Merged    bool           `json:"merged"`
	Mergeable *bool          `json:"mergeable"`
	CIState   string         `json:"ci_state"`
	Statuses  []CommitStatus `json:"statuses"`
	HTMLURL   string         `json:"html_url"`
}

// Client performs repository operations on a single GitHub repository.
type Client struct {
	gh            *github.Client
	owner         string
	repo          string
	defaultBranch string
	logger        *zap.SugaredLogger
}

// New creates a GitHub client authenticated with the configured token.
func New(ctx context.Context, cfg appConfig.GitHubConfig, logger *zap.SugaredLogger) (*Client, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	httpClient.Timeout = cfg.Timeout

	gh := github.NewClient(httpClient)
	if cfg.APIURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("configure github enterprise url: %w", err)
		}
	}

	return NewWithGitHub(gh, cfg.Owner, cfg.Repo, cfg.DefaultBranch, logger), nil
}

// NewWithGitHub wraps an existing go-github client.
func NewWithGitHub(gh *github.Client, owner, repo, defaultBranch string, logger *zap.SugaredLogger) *Client {
	return &Client{
		gh:            gh,
		owner:         owner,
		repo:          repo,
		defaultBranch: defaultBranch,
		logger:        logger,
	}
}

// DefaultBranch returns the branch pull requests target by default.
func (c *Client) DefaultBranch() string {
	return c.defaultBranch
}

func (c *Client) ref(ref string) string {
	if ref == "" {
		return c.defaultBranch
	}
	return ref
}

// ReadFile returns the content and version token of path at ref.
// An empty ref reads from the default branch.
func (c *Client) ReadFile(ctx context.Context, path, ref string) (*FileContent, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
		&github.RepositoryContentGetOptions{Ref: c.ref(ref)})
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("get contents of %s: path is a directory", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode contents of %s: %w", path, err)
	}
	return &FileContent{Path: path, Content: content, SHA: file.GetSHA()}, nil
}

// CreateBranch creates name from the head of fromRef and returns the new head
// SHA. A branch that already exists is reused and its current head returned.
func (c *Client) CreateBranch(ctx context.Context, name, fromRef string) (string, error) {
	base, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+c.ref(fromRef))
	if err != nil {
		return "", fmt.Errorf("get base ref %s: %w", c.ref(fromRef), err)
	}

	created, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + name),
		Object: &github.GitObject{SHA: base.Object.SHA},
	})
	if err == nil {
		return created.GetObject().GetSHA(), nil
	}
	if !isStatus(err, http.StatusUnprocessableEntity) {
		return "", fmt.Errorf("create branch %s: %w", name, err)
	}

	existing, _, getErr := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+name)
	if getErr != nil {
		return "", fmt.Errorf("create branch %s: %w", name, err)
	}
	c.logger.Debugw("Branch already exists, reusing it", "branch", name)
	return existing.GetObject().GetSHA(), nil
}

// WriteFile commits content to path on branch and returns the commit SHA.
// versionToken must be the blob SHA the content was derived from; GitHub
// rejects the write when it is stale.
func (c *Client) WriteFile(ctx context.Context, path, content, message, branch, versionToken string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: []byte(content),
		Branch:  github.Ptr(branch),
	}
	if versionToken != "" {
		opts.SHA = github.Ptr(versionToken)
	}

	resp, _, err := c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		if isStatus(err, http.StatusConflict) {
			return "", fmt.Errorf("update %s on %s: %w: %v", path, branch, ErrStaleVersion, err)
		}
		return "", fmt.Errorf("update %s on %s: %w", path, branch, err)
	}
	return resp.Commit.GetSHA(), nil
}

// FindOpenPullRequest returns the URL of an open pull request whose head is
// headBranch, if there is one.
func (c *Client) FindOpenPullRequest(ctx context.Context, headBranch string) (string, bool, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		State:       "open",
		Head:        c.owner + ":" + headBranch,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", false, fmt.Errorf("list pull requests for %s: %w", headBranch, err)
	}
	if len(prs) == 0 {
		return "", false, nil
	}
	return prs[0].GetHTMLURL(), true, nil
}

// OpenPullRequest opens a pull request from headBranch into baseRef and
// returns its URL. An empty baseRef targets the default branch.
func (c *Client) OpenPullRequest(ctx context.Context, title, body, headBranch, baseRef string) (string, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(headBranch),
		Base:  github.Ptr(c.ref(baseRef)),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return "", fmt.Errorf("create pull request from %s: %w", headBranch, err)
	}
	return pr.GetHTMLURL(), nil
}

// GetPullRequestStatus returns merge and CI state of the pull request
// identified by prRef (its URL or number).
func (c *Client) GetPullRequestStatus(ctx context.Context, prRef string) (*PullRequestStatus, error) {
	number, err := ParsePullNumber(prRef)
	if err != nil {
		return nil, err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", number, err)
	}

	status := &PullRequestStatus{
		Number:    number,
		State:     pr.GetState(),
		Merged:    pr.GetMerged(),
		Mergeable: pr.Mergeable,
		HTMLURL:   pr.GetHTMLURL(),
		Statuses:  []CommitStatus{},
	}

	if sha := pr.GetHead().GetSHA(); sha != "" {
		combined, _, err := c.gh.Repositories.GetCombinedStatus(ctx, c.owner, c.repo, sha, nil)
		if err != nil {
			// CI state is informational; merge state is what callers act on.
			c.logger.Warnw("Failed to get combined status", "pr", number, "error", err)
		} else {
			status.CIState = combined.GetState()
			for _, s := range combined.Statuses {
				status.Statuses = append(status.Statuses, CommitStatus{
					Context:     s.GetContext(),
					State:       s.GetState(),
					Description: s.GetDescription(),
				})
			}
		}
	}

	return status, nil
}

// ParsePullNumber extracts the pull request number from a URL such as
// https://github.com/owner/repo/pull/42, or from a bare number.
func ParsePullNumber(prRef string) (int, error) {
	ref := strings.TrimSpace(prRef)
	if n, err := strconv.Atoi(ref); err == nil && n > 0 {
		return n, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid pull request reference %q: %w", prRef, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "pull" || parts[i] == "pulls" {
			if n, err := strconv.Atoi(parts[i+1]); err == nil && n > 0 {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid pull request reference %q", prRef)
}

func isStatus(err error, code int) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == code
}

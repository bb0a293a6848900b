// Package sonarqube provides the analyzer gateway: a client for the SonarQube
// issue search API.
package sonarqube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"go.uber.org/zap"

	appConfig "github.com/festy23/code_janitor/internal/config"
	"github.com/festy23/code_janitor/pkg/retry"
)

// maxResultWindow is the deepest offset the search API will page to.
const maxResultWindow = 10000

// Issue is one finding as returned by the analyzer.
type Issue struct {
	Key       string `json:"key"`
	Project   string `json:"project"`
	Rule      string `json:"rule"`
	Severity  string `json:"severity"`
	Component string `json:"component"`
	Line      *int   `json:"line,omitempty"`
	Message   string `json:"message"`
}

// FilePath returns the repository-relative path of the finding. Components
// are reported as "<projectKey>:<path>"; the project prefix is stripped.
func (i Issue) FilePath() string {
	return ParseComponentPath(i.Component)
}

// ParseComponentPath strips the "<projectKey>:" prefix from a component key.
func ParseComponentPath(component string) string {
	if idx := strings.Index(component, ":"); idx >= 0 {
		return component[idx+1:]
	}
	return component
}

type searchParams struct {
	ComponentKeys string   `url:"componentKeys"`
	Statuses      []string `url:"statuses,comma,omitempty"`
	Page          int      `url:"p"`
	PageSize      int      `url:"ps"`
}

type searchResponse struct {
	Total  int `json:"total"`
	Paging struct {
		PageIndex int `json:"pageIndex"`
		PageSize  int `json:"pageSize"`
		Total     int `json:"total"`
	} `json:"paging"`
	Issues []Issue `json:"issues"`
}

func (r searchResponse) total() int {
	if r.Paging.Total > 0 {
		return r.Paging.Total
	}
	return r.Total
}

// Client fetches findings from SonarQube.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	timeout    time.Duration
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *zap.SugaredLogger
}

// New creates a new SonarQube client.
func New(cfg appConfig.SonarQubeConfig, logger *zap.SugaredLogger) *Client {
	retryCfg := retry.HTTPConfig()
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warnw("Retrying SonarQube request", "attempt", attempt, "delay", delay, "error", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		pageSize:   cfg.PageSize,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		retryCfg:   retryCfg,
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRetry replaces the retry schedule used for each page request.
func (c *Client) WithRetry(cfg retry.Config) *Client {
	c.retryCfg = cfg
	return c
}

// FetchIssues returns every finding of projectKey in one of statuses,
// following pagination until the analyzer's total is reached.
func (c *Client) FetchIssues(ctx context.Context, projectKey string, statuses []string) ([]Issue, error) {
	pageSize := c.pageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 500
	}

	var all []Issue
	for page := 1; ; page++ {
		resp, err := retry.DoWithResult(ctx, c.retryCfg, func() (*searchResponse, error) {
			return c.searchPage(ctx, searchParams{
				ComponentKeys: projectKey,
				Statuses:      statuses,
				Page:          page,
				PageSize:      pageSize,
			})
		})
		if err != nil {
			return nil, fmt.Errorf("fetch sonarqube issues page %d: %w", page, err)
		}

		all = append(all, resp.Issues...)
		c.logger.Debugw("Fetched SonarQube page", "page", page, "count", len(resp.Issues), "total", resp.total())

		if len(resp.Issues) == 0 || len(all) >= resp.total() || page*pageSize >= maxResultWindow {
			break
		}
	}

	return all, nil
}

func (c *Client) searchPage(ctx context.Context, params searchParams) (*searchResponse, error) {
	values, err := query.Values(params)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("encode search query: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet,
		c.baseURL+"/api/issues/search?"+values.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("sonarqube: status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode search response: %w", err))
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

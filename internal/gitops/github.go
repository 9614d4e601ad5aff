package gitops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"swarm/internal/config"
	"swarm/internal/logging"
)

// maxResponseBytes caps API response bodies; GitHub list endpoints are
// paginated well under this.
const maxResponseBytes = 1 << 20

// Issue is a GitHub issue as returned by the REST API.
type Issue struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	State   string  `json:"state"`
	HTMLURL string  `json:"html_url"`
	Labels  []Label `json:"labels"`
}

// Label is an issue or PR label.
type Label struct {
	Name string `json:"name"`
}

// Ref is one end of a pull request.
type Ref struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// PullRequest is a GitHub pull request.
type PullRequest struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	State     string `json:"state"`
	HTMLURL   string `json:"html_url"`
	Mergeable bool   `json:"mergeable"`
	Merged    bool   `json:"merged"`
	Head      Ref    `json:"head"`
	Base      Ref    `json:"base"`
}

// MergeResult is the response to a PR merge call.
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// Repository is the subset of repo fields the lifecycle role uses.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Archived bool   `json:"archived"`
}

// GitHubClient is a thin REST adapter over the handful of endpoints
// the git roles need. Nil-safe callers should gate on HasToken.
type GitHubClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewGitHubClient builds a client from config, falling back to the
// GITHUB_TOKEN environment variable and the public API base URL.
func NewGitHubClient(cfg config.GitHubConfig) *GitHubClient {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		logging.GitOpsWarn("no GitHub token configured; GitHub operations disabled")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GitHubClient{
		baseURL: base,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// HasToken reports whether the client can authenticate.
func (c *GitHubClient) HasToken() bool { return c != nil && c.token != "" }

// CreateIssue opens an issue and returns it.
func (c *GitHubClient) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Issue, error) {
	payload := map[string]interface{}{"title": title, "body": body}
	if len(labels) > 0 {
		payload["labels"] = labels
	}
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, payload, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// ListIssues returns issues in the given state (default open).
func (c *GitHubClient) ListIssues(ctx context.Context, owner, repo, state string) ([]Issue, error) {
	if state == "" {
		state = "open"
	}
	var issues []Issue
	path := fmt.Sprintf("/repos/%s/%s/issues?state=%s", owner, repo, state)
	if err := c.do(ctx, http.MethodGet, path, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// SearchIssues runs an issue search query.
func (c *GitHubClient) SearchIssues(ctx context.Context, query string) ([]Issue, error) {
	var result struct {
		Items []Issue `json:"items"`
	}
	path := "/search/issues?q=" + query
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// CreatePullRequest opens a PR from head into base.
func (c *GitHubClient) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (*PullRequest, error) {
	payload := map[string]interface{}{
		"title": title,
		"body":  body,
		"head":  head,
		"base":  base,
	}
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetPullRequest fetches one PR by number.
func (c *GitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListPullRequests returns open PRs, optionally filtered by base
// branch. The branch manager uses this to find stacked PRs.
func (c *GitHubClient) ListPullRequests(ctx context.Context, owner, repo, base string) ([]PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls?state=open", owner, repo)
	if base != "" {
		path += "&base=" + base
	}
	var prs []PullRequest
	if err := c.do(ctx, http.MethodGet, path, nil, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// MergePullRequest merges a PR; method defaults to squash.
func (c *GitHubClient) MergePullRequest(ctx context.Context, owner, repo string, number int, method string) (*MergeResult, error) {
	if method == "" {
		method = "squash"
	}
	payload := map[string]interface{}{"merge_method": method}
	var result MergeResult
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/merge", owner, repo, number)
	if err := c.do(ctx, http.MethodPut, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdatePullRequestBase retargets a PR onto a new base branch, used
// after merging the branch it was stacked on.
func (c *GitHubClient) UpdatePullRequestBase(ctx context.Context, owner, repo string, number int, base string) (*PullRequest, error) {
	payload := map[string]interface{}{"base": base}
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.do(ctx, http.MethodPatch, path, payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// CreateRepository creates a repo for the authenticated user, or under
// org when org is non-empty.
func (c *GitHubClient) CreateRepository(ctx context.Context, org, name, description string, private bool) (*Repository, error) {
	payload := map[string]interface{}{
		"name":        name,
		"description": description,
		"private":     private,
		"auto_init":   true,
	}
	path := "/user/repos"
	if org != "" {
		path = "/orgs/" + org + "/repos"
	}
	var repo Repository
	if err := c.do(ctx, http.MethodPost, path, payload, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// ArchiveRepository marks a repository archived.
func (c *GitHubClient) ArchiveRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	payload := map[string]interface{}{"archived": true}
	var out Repository
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := c.do(ctx, http.MethodPatch, path, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GitHubClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c == nil {
		return fmt.Errorf("github client not configured")
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("github %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("github %s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github %s %s: status %d: %s", method, path, resp.StatusCode, outputTail(string(data), 200))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("github %s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dt-pm-tools/issuetracker-jira/internal/config"
)

const retryMaxElapsed = 30 * time.Second

// APIError is a non-2xx response from JIRA.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("JIRA API returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a JIRA REST API v3 client.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackOff sets the retry policy. fn is called once per request because
// BackOff implementations are stateful.
func WithBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = fn }
}

// NewClient creates a new JIRA client from the given config.
func NewClient(cfg config.Config, opts ...ClientOption) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Email + ":" + cfg.Token))
	baseURL := strings.TrimRight(cfg.URL, "/")
	c := &Client{
		baseURL:    baseURL,
		authHeader: "Basic " + creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = retryMaxElapsed
			return bo
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchProjects returns projects whose key or name contains query.
func (c *Client) SearchProjects(ctx context.Context, query string) ([]Project, error) {
	var projects []Project
	for startAt := 0; ; {
		q := url.Values{"query": {query}, "startAt": {strconv.Itoa(startAt)}, "maxResults": {"50"}}
		var page ProjectSearchResponse
		if err := c.do(ctx, http.MethodGet, "/rest/api/3/project/search?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		projects = append(projects, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			return projects, nil
		}
		startAt += len(page.Values)
	}
}

// GetProject fetches a project, including its issue types, by id or key.
func (c *Client) GetProject(ctx context.Context, idOrKey string) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/project/"+url.PathEscape(idOrKey), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// SearchUsers returns users matching query by email address or name.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var users []User
	q := url.Values{"query": {query}}
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/user/search?"+q.Encode(), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetIssueTypes returns every issue type visible to the user.
func (c *Client) GetIssueTypes(ctx context.Context) ([]IssueType, error) {
	var types []IssueType
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/issuetype", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// CreateIssue creates an issue and returns its id and key.
func (c *Client) CreateIssue(ctx context.Context, payload CreatePayload) (*CreatedIssue, error) {
	var created CreatedIssue
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetIssue fetches a single issue by key, limited to the given fields.
func (c *Client) GetIssue(ctx context.Context, key string, fields ...string) (*Issue, error) {
	path := "/rest/api/3/issue/" + url.PathEscape(key)
	if len(fields) > 0 {
		path += "?" + url.Values{"fields": {strings.Join(fields, ",")}}.Encode()
	}
	var issue Issue
	if err := c.do(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// DeleteIssue deletes an issue.
func (c *Client) DeleteIssue(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/3/issue/"+url.PathEscape(key), nil, nil)
}

// GetTransitions returns available transitions for an issue.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]TransitionInfo, error) {
	var result TransitionsResponse
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(key)+"/transitions", nil, &result); err != nil {
		return nil, err
	}
	return result.Transitions, nil
}

// DoTransition performs a status transition on an issue.
func (c *Client) DoTransition(ctx context.Context, key string, transitionID string) error {
	payload := TransitionPayload{
		Transition: Transition{ID: transitionID},
	}
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(key)+"/transitions", payload, nil)
}

// AddComment adds an ADF comment to an issue.
func (c *Client) AddComment(ctx context.Context, key string, body *ADFNode) error {
	return c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+url.PathEscape(key)+"/comment", CommentPayload{Body: body}, nil)
}

// SetIssueProperty stores value as JSON under propertyKey on the issue.
func (c *Client) SetIssueProperty(ctx context.Context, key, propertyKey string, value any) error {
	path := fmt.Sprintf("/rest/api/3/issue/%s/properties/%s", url.PathEscape(key), url.PathEscape(propertyKey))
	return c.do(ctx, http.MethodPut, path, value, nil)
}

// SearchIssues runs a JQL query and returns the first page of at most
// maxResults issues with the given fields and entity properties.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int, fields, properties []string) ([]Issue, error) {
	q := url.Values{
		"jql":        {jql},
		"maxResults": {strconv.Itoa(maxResults)},
		"fields":     {strings.Join(fields, ",")},
	}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	var result SearchResponse
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/search/jql?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// do sends a JSON request and decodes the response into out when it is
// non-nil. GET, PUT and DELETE are retried on rate limits, server errors and
// transport failures. POST creates issues, comments and transitions, so it is
// retried only on 429, where JIRA did not process the request.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
	}

	var body []byte
	err := backoff.Retry(func() error {
		var err error
		body, err = c.send(ctx, method, path, data)
		if err != nil && !retryable(ctx, method, err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func retryable(ctx context.Context, method string, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if method == http.MethodPost {
			return apiErr.StatusCode == http.StatusTooManyRequests
		}
		return apiErr.Temporary()
	}
	if method == http.MethodPost {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

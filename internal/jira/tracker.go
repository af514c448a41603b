// Package jira talks to JIRA Cloud through the REST v3 API and implements the
// issuesync backend interfaces on top of it.
//
// Correlation properties are stored as one issue entity property,
// PropertyKey, and found again with JQL on
// issue.property[issuetracker-correlation].<field>. JIRA only answers such
// queries for properties it indexes, which on Cloud requires an installed app
// declaring the property under jiraEntityProperties. Without that index every
// search fails with 400 and so does every sync request. Searches use
// GET /rest/api/3/search/jql; the older /rest/api/3/search is retired on
// Cloud.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

// PropertyKey is the issue property holding the correlation properties.
const PropertyKey = "issuetracker-correlation"

// CloudSchema names the configuration fields used with JIRA Cloud.
var CloudSchema = issuesync.Schema{
	ProjectField:           "jira.project.name",
	IssueTypeField:         "jira.issue.type",
	IssueCreatorField:      "jira.issue.creator",
	CommentOnIssuesField:   "jira.add.comments",
	OpenTransitionField:    "jira.transition.open",
	ResolveTransitionField: "jira.transition.resolve",
	BackendCreatorField:    "reporter",
}

var _ issuesync.Backend = (*Backend)(nil)

// Backend adapts a Client to the engine's collaborator interfaces.
type Backend struct {
	client *Client
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]string
}

// NewBackend wraps client. A nil logger discards output.
func NewBackend(client *Client, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{client: client, logger: logger, accounts: make(map[string]string)}
}

func (b *Backend) ProjectsByName(ctx context.Context, name string) ([]issuesync.Project, error) {
	projects, err := b.client.SearchProjects(ctx, name)
	if err != nil {
		return nil, toBackendError(err)
	}
	out := make([]issuesync.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, issuesync.Project{ID: p.ID, Key: p.Key, Name: p.Name})
	}
	return out, nil
}

// UsersByIdentity searches active users. JIRA hides email addresses subject to
// privacy settings; a user found by an email query whose address is hidden is
// reported under the queried identity.
func (b *Backend) UsersByIdentity(ctx context.Context, identity string) ([]issuesync.User, error) {
	users, err := b.client.SearchUsers(ctx, identity)
	if err != nil {
		return nil, toBackendError(err)
	}
	var out []issuesync.User
	for _, u := range users {
		if !u.Active {
			continue
		}
		id := u.EmailAddress
		switch {
		case strings.EqualFold(u.AccountID, identity):
			id = u.AccountID
		case id == "" && strings.Contains(identity, "@"):
			id = identity
		}
		out = append(out, issuesync.User{Identity: id, AccountID: u.AccountID})
	}
	return out, nil
}

// AllIssueTypes lists issue type names once each; JIRA returns one entry per
// project scope for team-managed projects.
func (b *Backend) AllIssueTypes(ctx context.Context) ([]issuesync.IssueType, error) {
	types, err := b.client.GetIssueTypes(ctx)
	if err != nil {
		return nil, toBackendError(err)
	}
	seen := make(map[string]bool)
	var out []issuesync.IssueType
	for _, t := range types {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, issuesync.IssueType{Name: t.Name})
	}
	return out, nil
}

func (b *Backend) IsValidForProject(ctx context.Context, projectID, typeName string) (bool, error) {
	project, err := b.client.GetProject(ctx, projectID)
	if err != nil {
		return false, toBackendError(err)
	}
	for _, t := range project.IssueTypes {
		if strings.EqualFold(t.Name, typeName) {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) CreateIssue(ctx context.Context, issue issuesync.NewIssue) (string, error) {
	fields := CreateFields{
		Project:     Ref{ID: issue.ProjectID},
		IssueType:   Ref{Name: issue.IssueType},
		Summary:     issue.Title,
		Description: TextToADF(issue.Description),
	}
	if issue.Creator != "" {
		accountID, err := b.accountID(ctx, issue.Creator)
		if err != nil {
			return "", err
		}
		fields.Reporter = &Ref{AccountID: accountID}
	}

	created, err := b.client.CreateIssue(ctx, CreatePayload{Fields: fields})
	if err != nil {
		return "", toBackendError(err)
	}
	return created.Key, nil
}

// accountID resolves a creator identity to its account id, caching the result.
func (b *Backend) accountID(ctx context.Context, identity string) (string, error) {
	cacheKey := strings.ToLower(identity)
	b.mu.Lock()
	id, ok := b.accounts[cacheKey]
	b.mu.Unlock()
	if ok {
		return id, nil
	}

	users, err := b.UsersByIdentity(ctx, identity)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if strings.EqualFold(u.Identity, identity) {
			b.mu.Lock()
			b.accounts[cacheKey] = u.AccountID
			b.mu.Unlock()
			return u.AccountID, nil
		}
	}
	return "", &issuesync.BackendError{
		Message:     fmt.Sprintf("no JIRA account found for %q", identity),
		FieldErrors: map[string]string{CloudSchema.BackendCreatorField: "user not found"},
	}
}

func (b *Backend) GetStatus(ctx context.Context, key string) (issuesync.StatusCategory, error) {
	issue, err := b.client.GetIssue(ctx, key, "status")
	if err != nil {
		return "", toBackendError(err)
	}
	return statusCategory(issue.Fields.Status), nil
}

func (b *Backend) GetTransitions(ctx context.Context, key string) ([]issuesync.Transition, error) {
	infos, err := b.client.GetTransitions(ctx, key)
	if err != nil {
		return nil, toBackendError(err)
	}
	out := make([]issuesync.Transition, 0, len(infos))
	for _, t := range infos {
		out = append(out, issuesync.Transition{ID: t.ID, Name: t.Name, TargetCategory: statusCategory(t.To)})
	}
	return out, nil
}

func (b *Backend) ApplyTransition(ctx context.Context, key, transitionID string) error {
	return toBackendError(b.client.DoTransition(ctx, key, transitionID))
}

func (b *Backend) AddComment(ctx context.Context, key, text string) error {
	return toBackendError(b.client.AddComment(ctx, key, TextToADF(text)))
}

func (b *Backend) DeleteIssue(ctx context.Context, key string) error {
	return toBackendError(b.client.DeleteIssue(ctx, key))
}

func (b *Backend) SetProperties(ctx context.Context, key string, props issuesync.CorrelationProperties) error {
	return toBackendError(b.client.SetIssueProperty(ctx, key, PropertyKey, props))
}

// SearchByProperties finds the oldest issue in the project carrying every
// supplied property. JQL matching is rechecked against the stored values so
// that only exact matches count.
func (b *Backend) SearchByProperties(ctx context.Context, projectKey string, props issuesync.CorrelationProperties) (string, bool, error) {
	issues, err := b.client.SearchIssues(ctx, CorrelationJQL(projectKey, props), 10, []string{"status"}, []string{PropertyKey})
	if err != nil {
		return "", false, toBackendError(err)
	}

	var matches []string
	for _, issue := range issues {
		var stored issuesync.CorrelationProperties
		raw, ok := issue.Properties[PropertyKey]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &stored); err != nil {
			b.logger.Warn("unreadable correlation property", "issue", issue.Key, "error", err)
			continue
		}
		if matchesAll(stored, props) {
			matches = append(matches, issue.Key)
		}
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	if len(matches) > 1 {
		b.logger.Warn("several issues share the same correlation properties", "issues", strings.Join(matches, ","), "using", matches[0])
	}
	return matches[0], true, nil
}

func matchesAll(stored, want issuesync.CorrelationProperties) bool {
	have := make(map[string]string)
	for _, p := range stored.Fields() {
		have[p.Name] = p.Value
	}
	for _, p := range want.Fields() {
		if have[p.Name] != p.Value {
			return false
		}
	}
	return true
}

// CorrelationJQL builds the query selecting issues in the project whose
// correlation property has every non-empty field of props.
func CorrelationJQL(projectKey string, props issuesync.CorrelationProperties) string {
	clauses := []string{fmt.Sprintf("project = %s", quoteJQL(projectKey))}
	for _, p := range props.Fields() {
		clauses = append(clauses, fmt.Sprintf("issue.property[%s].%s = %s", PropertyKey, p.Name, quoteJQL(p.Value)))
	}
	return strings.Join(clauses, " AND ") + " ORDER BY created ASC"
}

func quoteJQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func statusCategory(s Status) issuesync.StatusCategory {
	if s.StatusCategory == nil {
		return issuesync.StatusUnknown
	}
	switch s.StatusCategory.Key {
	case "new":
		return issuesync.StatusTodo
	case "indeterminate":
		return issuesync.StatusInProgress
	case "done":
		return issuesync.StatusDone
	default:
		return issuesync.StatusUnknown
	}
}

// toBackendError converts client failures into the engine's BackendError,
// keeping JIRA's structured field errors and messages. nil stays nil.
func toBackendError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &issuesync.BackendError{Message: err.Error(), Err: err}
	}

	be := &issuesync.BackendError{
		StatusCode: apiErr.StatusCode,
		Message:    fmt.Sprintf("JIRA API returned %d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode)),
		Err:        err,
	}
	var body ErrorResponse
	if jsonErr := json.Unmarshal([]byte(apiErr.Body), &body); jsonErr == nil && (len(body.Errors) > 0 || len(body.ErrorMessages) > 0) {
		be.FieldErrors = body.Errors
		be.Messages = body.ErrorMessages
	} else if apiErr.Body != "" {
		be.Messages = []string{apiErr.Body}
	}
	return be
}

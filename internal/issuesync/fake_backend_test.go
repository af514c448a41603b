package issuesync_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

var testSchema = issuesync.Schema{
	ProjectField:           "project",
	IssueTypeField:         "issueType",
	IssueCreatorField:      "issueCreator",
	CommentOnIssuesField:   "commentOnIssues",
	OpenTransitionField:    "openTransition",
	ResolveTransitionField: "resolveTransition",
	BackendCreatorField:    "reporter",
}

func testConfiguration(commentOnIssues bool) issuesync.Configuration {
	return issuesync.Configuration{
		ProjectID:         "10000",
		ProjectKey:        "DEMO",
		ProjectName:       "DEMO",
		IssueType:         "Task",
		IssueCreator:      "alice",
		CommentOnIssues:   commentOnIssues,
		OpenTransition:    "Reopen",
		ResolveTransition: "Resolve",
	}
}

func testProperties(topic string) issuesync.CorrelationProperties {
	return issuesync.CorrelationProperties{
		Provider:          "scanner",
		ProviderURL:       "https://scanner.example.com",
		TopicName:         "Project",
		TopicValue:        topic,
		SubTopicName:      "Version",
		SubTopicValue:     "1.0",
		Category:          "Vulnerability",
		ComponentName:     "Component",
		ComponentValue:    "openssl",
		SubComponentName:  "Component Version",
		SubComponentValue: "1.1.1",
	}
}

type fakeIssue struct {
	key      string
	issue    issuesync.NewIssue
	category issuesync.StatusCategory
	props    issuesync.CorrelationProperties
}

// fakeBackend is an in-memory tracker that records every call it receives.
type fakeBackend struct {
	mu sync.Mutex

	projects     []issuesync.Project
	users        []issuesync.User
	issueTypes   []issuesync.IssueType
	projectTypes map[string][]string
	workflow     map[issuesync.StatusCategory][]issuesync.Transition

	issues   []*fakeIssue
	comments map[string][]string
	calls    []string

	lookupErr   error
	createErr   error
	propertyErr error
	commentErr  error
	deleteErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		projects: []issuesync.Project{
			{ID: "10000", Key: "DEMO", Name: "Demo Project"},
			{ID: "10001", Key: "DEMOX", Name: "Demo Extra"},
		},
		users: []issuesync.User{
			{Identity: "alice", AccountID: "acc-alice"},
		},
		issueTypes:   []issuesync.IssueType{{Name: "Task"}, {Name: "Bug"}, {Name: "Epic"}},
		projectTypes: map[string][]string{"10000": {"Task", "Bug"}},
		workflow: map[issuesync.StatusCategory][]issuesync.Transition{
			issuesync.StatusTodo: {
				{ID: "11", Name: "Start Progress", TargetCategory: issuesync.StatusInProgress},
				{ID: "31", Name: "Resolve", TargetCategory: issuesync.StatusDone},
			},
			issuesync.StatusInProgress: {
				{ID: "31", Name: "Resolve", TargetCategory: issuesync.StatusDone},
			},
			issuesync.StatusDone: {
				{ID: "41", Name: "Reopen", TargetCategory: issuesync.StatusTodo},
			},
		},
		comments: make(map[string][]string),
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// count returns how many recorded calls start with prefix.
func (f *fakeBackend) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// mutations returns the recorded calls that change remote state.
func (f *fakeBackend) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		for _, p := range []string{"create", "setProperties:", "transition:", "comment:", "delete:"} {
			if strings.HasPrefix(c, p) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (f *fakeBackend) find(key string) *fakeIssue {
	for _, i := range f.issues {
		if i.key == key {
			return i
		}
	}
	return nil
}

// seed adds an existing issue directly, bypassing the call log.
func (f *fakeBackend) seed(category issuesync.StatusCategory, props issuesync.CorrelationProperties) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("DEMO-%d", len(f.issues)+1)
	f.issues = append(f.issues, &fakeIssue{key: key, category: category, props: props})
	return key
}

func (f *fakeBackend) categoryOf(key string) issuesync.StatusCategory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(key).category
}

func (f *fakeBackend) ProjectsByName(_ context.Context, name string) ([]issuesync.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("projects:%s", name)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []issuesync.Project
	for _, p := range f.projects {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) || strings.EqualFold(p.Key, name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) UsersByIdentity(_ context.Context, identity string) ([]issuesync.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("users:%s", identity)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []issuesync.User
	for _, u := range f.users {
		if strings.HasPrefix(u.Identity, identity) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeBackend) AllIssueTypes(context.Context) ([]issuesync.IssueType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("issueTypes")
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.issueTypes, nil
}

func (f *fakeBackend) IsValidForProject(_ context.Context, projectID, typeName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("projectType:%s:%s", projectID, typeName)
	for _, t := range f.projectTypes[projectID] {
		if t == typeName {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBackend) CreateIssue(_ context.Context, issue issuesync.NewIssue) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create")
	if f.createErr != nil {
		return "", f.createErr
	}
	key := fmt.Sprintf("DEMO-%d", len(f.issues)+1)
	f.issues = append(f.issues, &fakeIssue{key: key, issue: issue, category: issuesync.StatusTodo})
	return key, nil
}

func (f *fakeBackend) GetStatus(_ context.Context, key string) (issuesync.StatusCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("status:%s", key)
	i := f.find(key)
	if i == nil {
		return "", fmt.Errorf("issue %s does not exist", key)
	}
	return i.category, nil
}

func (f *fakeBackend) GetTransitions(_ context.Context, key string) ([]issuesync.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("transitions:%s", key)
	i := f.find(key)
	if i == nil {
		return nil, fmt.Errorf("issue %s does not exist", key)
	}
	return f.workflow[i.category], nil
}

func (f *fakeBackend) ApplyTransition(_ context.Context, key, transitionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("transition:%s:%s", key, transitionID)
	i := f.find(key)
	for _, t := range f.workflow[i.category] {
		if t.ID == transitionID {
			i.category = t.TargetCategory
			return nil
		}
	}
	return fmt.Errorf("transition %s not available on %s", transitionID, key)
}

func (f *fakeBackend) AddComment(_ context.Context, key, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("comment:%s", key)
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments[key] = append(f.comments[key], text)
	return nil
}

func (f *fakeBackend) DeleteIssue(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:%s", key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for n, i := range f.issues {
		if i.key == key {
			f.issues = append(f.issues[:n], f.issues[n+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBackend) SetProperties(_ context.Context, key string, props issuesync.CorrelationProperties) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("setProperties:%s", key)
	if f.propertyErr != nil {
		return f.propertyErr
	}
	f.find(key).props = props
	return nil
}

func (f *fakeBackend) SearchByProperties(_ context.Context, projectKey string, props issuesync.CorrelationProperties) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("search:%s", projectKey)
	want := props.Fields()
	for _, i := range f.issues {
		stored := make(map[string]string)
		for _, p := range i.props.Fields() {
			stored[p.Name] = p.Value
		}
		match := len(want) > 0
		for _, p := range want {
			if stored[p.Name] != p.Value {
				match = false
				break
			}
		}
		if match {
			return i.key, true, nil
		}
	}
	return "", false, nil
}

// logRecorder captures log records so tests can assert on warnings.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (l *logRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (l *logRecorder) Handle(_ context.Context, r slog.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return nil
}

func (l *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return l }
func (l *logRecorder) WithGroup(string) slog.Handler      { return l }

func (l *logRecorder) messages(level slog.Level) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

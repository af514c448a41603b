package issuesync

import (
	"fmt"
	"strings"
)

// Operation is the desired state change for one logical finding.
type Operation string

const (
	OperationCreate  Operation = "CREATE"
	OperationResolve Operation = "RESOLVE"
	OperationReopen  Operation = "REOPEN"
	OperationComment Operation = "COMMENT"
)

// ParseOperation accepts an operation name in any case.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToUpper(strings.TrimSpace(s))); op {
	case OperationCreate, OperationResolve, OperationReopen, OperationComment:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q (expected create, resolve, reopen or comment)", s)
}

// Lifecycle is the backend-agnostic coarse state of an issue.
type Lifecycle int

const (
	LifecycleOpen Lifecycle = iota
	LifecycleResolved
)

func (l Lifecycle) String() string {
	if l == LifecycleResolved {
		return "resolved"
	}
	return "open"
}

// StatusCategory is the backend's coarse grouping of workflow statuses.
type StatusCategory string

const (
	StatusTodo       StatusCategory = "TODO"
	StatusInProgress StatusCategory = "IN_PROGRESS"
	StatusDone       StatusCategory = "DONE"
	StatusUnknown    StatusCategory = "UNKNOWN"
)

// Satisfies reports whether an issue in category c already counts as being in
// lifecycle l. To-do and in-progress are both open enough.
func (c StatusCategory) Satisfies(l Lifecycle) bool {
	switch l {
	case LifecycleOpen:
		return c == StatusTodo || c == StatusInProgress
	case LifecycleResolved:
		return c == StatusDone
	}
	return false
}

// CorrelationProperties identify which logical finding an issue represents.
// Together they form the fingerprint used to re-find the issue on later syncs.
type CorrelationProperties struct {
	Provider          string `json:"provider,omitempty"`
	ProviderURL       string `json:"providerUrl,omitempty"`
	TopicName         string `json:"topicName,omitempty"`
	TopicValue        string `json:"topicValue,omitempty"`
	SubTopicName      string `json:"subTopicName,omitempty"`
	SubTopicValue     string `json:"subTopicValue,omitempty"`
	Category          string `json:"category,omitempty"`
	ComponentName     string `json:"componentName,omitempty"`
	ComponentValue    string `json:"componentValue,omitempty"`
	SubComponentName  string `json:"subComponentName,omitempty"`
	SubComponentValue string `json:"subComponentValue,omitempty"`
	AdditionalKey     string `json:"additionalKey,omitempty"`
}

// Property is one named correlation field.
type Property struct {
	Name  string
	Value string
}

// Fields returns the non-empty correlation fields in a stable order. Only these
// take part in matching.
func (p CorrelationProperties) Fields() []Property {
	all := []Property{
		{"provider", p.Provider},
		{"providerUrl", p.ProviderURL},
		{"topicName", p.TopicName},
		{"topicValue", p.TopicValue},
		{"subTopicName", p.SubTopicName},
		{"subTopicValue", p.SubTopicValue},
		{"category", p.Category},
		{"componentName", p.ComponentName},
		{"componentValue", p.ComponentValue},
		{"subComponentName", p.SubComponentName},
		{"subComponentValue", p.SubComponentValue},
		{"additionalKey", p.AdditionalKey},
	}
	fields := make([]Property, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// IsZero reports whether no correlation field is set.
func (p CorrelationProperties) IsZero() bool {
	return len(p.Fields()) == 0
}

// Content is what the caller wants the issue to say.
type Content struct {
	Title       string
	Description string
	// DescriptionComments carry description text that did not fit, already
	// split by the caller.
	DescriptionComments []string
	AdditionalComments  []string
}

// Request is one desired state transition for one logical finding.
type Request struct {
	Operation  Operation
	Properties CorrelationProperties
	Content    Content
}

// Configuration is a validated tracker project configuration. It is immutable
// for the duration of a batch.
type Configuration struct {
	ProjectID         string
	ProjectKey        string
	ProjectName       string
	IssueType         string
	IssueCreator      string
	CommentOnIssues   bool
	OpenTransition    string
	ResolveTransition string
}

// TransitionName returns the configured transition for reaching l, or "".
func (c Configuration) TransitionName(l Lifecycle) string {
	if l == LifecycleResolved {
		return c.ResolveTransition
	}
	return c.OpenTransition
}

// RawConfiguration is unvalidated caller input. A nil transition name means
// none was supplied.
type RawConfiguration struct {
	ProjectName       string
	IssueType         string
	IssueCreator      string
	CommentOnIssues   bool
	OpenTransition    *string
	ResolveTransition *string
}

// OutcomeStatus is the per-request result kind.
type OutcomeStatus string

const (
	OutcomeCreated OutcomeStatus = "created"
	OutcomeUpdated OutcomeStatus = "updated"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome records what happened to a single request.
type Outcome struct {
	Index     int
	Operation Operation
	IssueKey  string
	Status    OutcomeStatus
	// Noop is set when an existing issue was already in the requested state.
	Noop     bool
	Reason   string
	Err      error
	Warnings []string
}

// Result is the aggregated response for a batch. Outcomes are in input order.
type Result struct {
	StatusMessage    string
	UpdatedIssueKeys []string
	Outcomes         []Outcome
}

// Failed reports whether any request in the batch failed.
func (r *Result) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			return true
		}
	}
	return false
}

func (r *Result) addUpdatedKey(key string) {
	for _, k := range r.UpdatedIssueKeys {
		if k == key {
			return
		}
	}
	r.UpdatedIssueKeys = append(r.UpdatedIssueKeys, key)
}

// TestResult is returned by a connection test.
type TestResult struct {
	StatusMessage       string
	CreatedTestIssueKey string
}

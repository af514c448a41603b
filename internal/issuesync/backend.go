package issuesync

import (
	"context"
	"io"
	"log/slog"
)

// Project is a tracker project as returned by a name lookup.
type Project struct {
	ID   string
	Key  string
	Name string
}

// User is a tracker account that can be named as issue creator.
type User struct {
	Identity  string
	AccountID string
}

// IssueType is an issue type known to the tracker.
type IssueType struct {
	Name string
}

// Transition is one named edge out of an issue's current workflow status.
type Transition struct {
	ID             string
	Name           string
	TargetCategory StatusCategory
}

// NewIssue is the payload for creating an issue.
type NewIssue struct {
	ProjectID   string
	IssueType   string
	Creator     string
	Title       string
	Description string
}

// ProjectLookup finds projects by name.
type ProjectLookup interface {
	ProjectsByName(ctx context.Context, name string) ([]Project, error)
}

// UserLookup finds user accounts matching an identity such as an email address.
type UserLookup interface {
	UsersByIdentity(ctx context.Context, identity string) ([]User, error)
}

// IssueTypeLookup lists issue types and checks them against a project.
type IssueTypeLookup interface {
	AllIssueTypes(ctx context.Context) ([]IssueType, error)
	IsValidForProject(ctx context.Context, projectID, typeName string) (bool, error)
}

// IssueBackend is the per-product capability set the synchronizer drives.
type IssueBackend interface {
	CreateIssue(ctx context.Context, issue NewIssue) (string, error)
	GetStatus(ctx context.Context, key string) (StatusCategory, error)
	GetTransitions(ctx context.Context, key string) ([]Transition, error)
	ApplyTransition(ctx context.Context, key, transitionID string) error
	AddComment(ctx context.Context, key, text string) error
	DeleteIssue(ctx context.Context, key string) error
}

// PropertyBackend stores correlation properties on issues and searches by them.
// SearchByProperties must only return an issue whose stored properties match
// every supplied field exactly.
type PropertyBackend interface {
	SetProperties(ctx context.Context, key string, props CorrelationProperties) error
	SearchByProperties(ctx context.Context, projectKey string, props CorrelationProperties) (string, bool, error)
}

// Backend bundles everything a tracker product must provide.
type Backend interface {
	ProjectLookup
	UserLookup
	IssueTypeLookup
	IssueBackend
	PropertyBackend
}

// Schema names the configuration fields of one tracker product, so field
// errors point at the keys the caller actually used.
type Schema struct {
	ProjectField           string
	IssueTypeField         string
	IssueCreatorField      string
	CommentOnIssuesField   string
	OpenTransitionField    string
	ResolveTransitionField string
	// BackendCreatorField is the tracker's own name for the creator field in
	// structured error responses.
	BackendCreatorField string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return discardLogger()
	}
	return logger
}

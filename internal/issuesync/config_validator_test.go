package issuesync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

func strPtr(s string) *string { return &s }

func newTestValidator(backend *fakeBackend) *issuesync.ConfigValidator {
	return issuesync.NewConfigValidator(backend, backend, backend, testSchema, nil)
}

func TestCreateValidConfiguration_Valid(t *testing.T) {
	backend := newFakeBackend()

	cfg, err := newTestValidator(backend).CreateValidConfiguration(context.Background(), issuesync.RawConfiguration{
		ProjectName:       "  demo project ",
		IssueType:         "task",
		IssueCreator:      "alice",
		CommentOnIssues:   true,
		OpenTransition:    strPtr(" Reopen "),
		ResolveTransition: strPtr("Resolve"),
	})
	require.NoError(t, err)

	assert.Equal(t, issuesync.Configuration{
		ProjectID:         "10000",
		ProjectKey:        "DEMO",
		ProjectName:       "Demo Project",
		IssueType:         "Task",
		IssueCreator:      "alice",
		CommentOnIssues:   true,
		OpenTransition:    "Reopen",
		ResolveTransition: "Resolve",
	}, cfg)
	assert.Empty(t, backend.mutations())
}

func TestCreateValidConfiguration_ProjectByKey_NoTransitions(t *testing.T) {
	cfg, err := newTestValidator(newFakeBackend()).CreateValidConfiguration(context.Background(), issuesync.RawConfiguration{
		ProjectName:  "DEMO",
		IssueType:    "Bug",
		IssueCreator: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "DEMO", cfg.ProjectKey)
	assert.Empty(t, cfg.OpenTransition)
	assert.Empty(t, cfg.ResolveTransition)
}

func TestCreateValidConfiguration_CollectsEveryFieldError(t *testing.T) {
	tests := []struct {
		name   string
		raw    issuesync.RawConfiguration
		fields map[string]string
	}{
		{
			name: "missing project and creator",
			raw:  issuesync.RawConfiguration{IssueType: "Task"},
			fields: map[string]string{
				"project":      "A project name is required.",
				"issueCreator": "An issue creator is required.",
			},
		},
		{
			name: "everything missing",
			raw:  issuesync.RawConfiguration{},
			fields: map[string]string{
				"project":      "A project name is required.",
				"issueType":    "An issue type is required.",
				"issueCreator": "An issue creator is required.",
			},
		},
		{
			name: "unknown project and user",
			raw:  issuesync.RawConfiguration{ProjectName: "Nope", IssueType: "Task", IssueCreator: "bob"},
			fields: map[string]string{
				"project":      "Unable to find a project named 'Nope'.",
				"issueCreator": "The user 'bob' could not be found.",
			},
		},
		{
			name: "unknown issue type",
			raw:  issuesync.RawConfiguration{ProjectName: "DEMO", IssueType: "Story", IssueCreator: "alice"},
			fields: map[string]string{
				"issueType": "The issue type 'Story' could not be found.",
			},
		},
		{
			name: "issue type not offered by project",
			raw:  issuesync.RawConfiguration{ProjectName: "DEMO", IssueType: "Epic", IssueCreator: "alice"},
			fields: map[string]string{
				"issueType": "The issue type 'Epic' is not valid for the project 'Demo Project'.",
			},
		},
		{
			name: "blank transitions",
			raw: issuesync.RawConfiguration{
				ProjectName:       "DEMO",
				IssueType:         "Task",
				IssueCreator:      "alice",
				OpenTransition:    strPtr(""),
				ResolveTransition: strPtr("   "),
			},
			fields: map[string]string{
				"openTransition":    "The open transition name cannot be blank.",
				"resolveTransition": "The resolve transition name cannot be blank.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestValidator(newFakeBackend()).CreateValidConfiguration(context.Background(), tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, issuesync.ErrFieldValidation))

			var fieldErr *issuesync.FieldValidationError
			require.True(t, errors.As(err, &fieldErr))
			assert.Equal(t, tt.fields, fieldErr.FieldErrors)
		})
	}
}

func TestCreateValidConfiguration_AmbiguousCreator(t *testing.T) {
	backend := newFakeBackend()
	backend.users = append(backend.users, issuesync.User{Identity: "alice", AccountID: "acc-alice-2"})

	_, err := newTestValidator(backend).CreateValidConfiguration(context.Background(), issuesync.RawConfiguration{
		ProjectName: "DEMO", IssueType: "Task", IssueCreator: "alice",
	})
	var fieldErr *issuesync.FieldValidationError
	require.True(t, errors.As(err, &fieldErr))
	assert.Contains(t, fieldErr.FieldErrors["issueCreator"], "matches 2 accounts")
}

func TestCreateValidConfiguration_LookupFailureIsNotAFieldError(t *testing.T) {
	backend := newFakeBackend()
	backend.lookupErr = errors.New("connection refused")

	_, err := newTestValidator(backend).CreateValidConfiguration(context.Background(), issuesync.RawConfiguration{
		ProjectName: "DEMO", IssueType: "Task", IssueCreator: "alice",
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, issuesync.ErrFieldValidation))
	assert.True(t, errors.Is(err, issuesync.ErrBackend))
	assert.Contains(t, err.Error(), "connection refused")
}

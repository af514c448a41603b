package issuesync_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

func newTestService(backend *fakeBackend, logger *slog.Logger) *issuesync.Service {
	return issuesync.NewService(backend, testSchema,
		issuesync.WithLogger(logger),
		issuesync.WithTestIDGenerator(func() string { return "test-id-1" }))
}

func TestService_TestConnection(t *testing.T) {
	backend := newFakeBackend()

	result, err := newTestService(backend, nil).TestConnection(context.Background(), testConfiguration(true))
	require.NoError(t, err)

	assert.Equal(t, "DEMO-1", result.CreatedTestIssueKey)
	assert.Equal(t, "Successfully created test issue DEMO-1 in project DEMO.", result.StatusMessage)
	assert.Equal(t, []string{
		"create",
		"setProperties:DEMO-1",
		"comment:DEMO-1",
		"transition:DEMO-1:31",
		"transition:DEMO-1:41",
		"delete:DEMO-1",
	}, backend.mutations())
	assert.Empty(t, backend.issues)
}

func TestService_TestConnection_WithoutTransitions(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfiguration(false)
	cfg.OpenTransition = ""
	cfg.ResolveTransition = ""

	_, err := newTestService(backend, nil).TestConnection(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, backend.count("transition:"))
	assert.Equal(t, 1, backend.count("delete:"))
}

func TestService_TestConnection_ExistingIssueIsAnError(t *testing.T) {
	backend := newFakeBackend()
	key := backend.seed(issuesync.StatusTodo, issuesync.CorrelationProperties{
		Provider:      "issuetracker-jira",
		Category:      "Connection Test",
		AdditionalKey: "test-id-1",
	})

	result, err := newTestService(backend, nil).TestConnection(context.Background(), testConfiguration(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test issue not created")
	assert.Empty(t, result.CreatedTestIssueKey)
	assert.Zero(t, backend.count("create"))
	assert.Zero(t, backend.count("delete:"))
	assert.Equal(t, issuesync.StatusTodo, backend.categoryOf(key))
}

func TestService_TestConnection_DeleteFailureIsLogged(t *testing.T) {
	backend := newFakeBackend()
	backend.deleteErr = errors.New("forbidden")
	logs := &logRecorder{}

	result, err := newTestService(backend, slog.New(logs)).TestConnection(context.Background(), testConfiguration(false))
	require.NoError(t, err)
	assert.Equal(t, "DEMO-1", result.CreatedTestIssueKey)
	assert.Contains(t, logs.messages(slog.LevelWarn), "could not delete the test issue")
}

func TestService_TestConnection_BadResolveTransition(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfiguration(false)
	cfg.ResolveTransition = "Finish"

	result, err := newTestService(backend, nil).TestConnection(context.Background(), cfg)
	require.Error(t, err)

	var fieldErr *issuesync.FieldValidationError
	require.True(t, errors.As(err, &fieldErr))
	assert.Contains(t, fieldErr.FieldErrors, "resolveTransition")
	assert.Equal(t, "DEMO-1", result.CreatedTestIssueKey)
	assert.Equal(t, 1, backend.count("delete:DEMO-1"))
}

func TestService_TestConnection_CreateFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("no permission")

	result, err := newTestService(backend, nil).TestConnection(context.Background(), testConfiguration(false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, issuesync.ErrBackend))
	assert.Empty(t, result.CreatedTestIssueKey)
	assert.Zero(t, backend.count("delete:"))
}

func TestService_CreateValidConfigurationThenSync(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestService(backend, nil)

	cfg, err := svc.CreateValidConfiguration(context.Background(), issuesync.RawConfiguration{
		ProjectName:       "DEMO",
		IssueType:         "Task",
		IssueCreator:      "alice",
		ResolveTransition: strPtr("Resolve"),
	})
	require.NoError(t, err)

	result, err := svc.Sync(context.Background(), cfg, []issuesync.Request{
		createRequest("web-app", issuesync.Content{Title: "t"}),
		{Operation: issuesync.OperationResolve, Properties: testProperties("web-app")},
	})
	require.NoError(t, err)
	assert.Equal(t, issuesync.OutcomeCreated, result.Outcomes[0].Status)
	assert.Equal(t, issuesync.OutcomeUpdated, result.Outcomes[1].Status)
	assert.Equal(t, issuesync.StatusDone, backend.categoryOf(result.Outcomes[0].IssueKey))
}

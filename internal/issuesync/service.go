// Package issuesync keeps issues in a remote tracker in line with externally
// detected findings.
//
// A Service validates a tracker configuration against live metadata, then
// applies batches of requests: each request is matched to an existing issue
// through correlation properties stored on the issue, and the issue is
// created, transitioned or commented on as needed. All state lives in the
// tracker. Two batches racing on the same correlation properties may both
// create an issue; the property search is best effort, not a lock. Finding
// issues again needs a backend that can search by those properties.
package issuesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service is the entry point for callers of the engine.
type Service struct {
	backend   Backend
	schema    Schema
	limits    Limits
	logger    *slog.Logger
	newTestID func() string

	validator *ConfigValidator
	sync      *Synchronizer
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLimits overrides the content limits.
func WithLimits(limits Limits) Option {
	return func(s *Service) { s.limits = limits }
}

// WithTestIDGenerator sets how connection tests make their unique correlation key.
func WithTestIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newTestID = fn }
}

// NewService builds a Service for one tracker backend.
func NewService(backend Backend, schema Schema, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		schema:    schema,
		limits:    JiraLimits,
		newTestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = orDiscard(s.logger)
	s.validator = NewConfigValidator(backend, backend, backend, schema, s.logger)
	s.sync = NewSynchronizer(backend, backend, s.limits, schema, s.logger)
	return s
}

// CreateValidConfiguration validates raw caller input. A *FieldValidationError
// lists every invalid field at once.
func (s *Service) CreateValidConfiguration(ctx context.Context, raw RawConfiguration) (Configuration, error) {
	return s.validator.CreateValidConfiguration(ctx, raw)
}

// Sync applies a batch of requests under a validated configuration.
func (s *Service) Sync(ctx context.Context, cfg Configuration, requests []Request) (*Result, error) {
	return s.sync.Sync(ctx, cfg, requests)
}

// TestConnection creates a throwaway issue to prove write access, walks it
// through the configured resolve and open transitions, and deletes it again.
// A failed delete is only logged.
func (s *Service) TestConnection(ctx context.Context, cfg Configuration) (TestResult, error) {
	req := Request{
		Operation: OperationCreate,
		Properties: CorrelationProperties{
			Provider:      "issuetracker-jira",
			Category:      "Connection Test",
			AdditionalKey: s.newTestID(),
		},
		Content: Content{
			Title:       "Test issue created by issuetracker-jira",
			Description: "This issue was created to test the issue tracker configuration and will be deleted automatically.",
		},
	}

	result, err := s.sync.Sync(ctx, cfg, []Request{req})
	if err != nil {
		return TestResult{}, err
	}
	outcome := result.Outcomes[0]
	if outcome.Status != OutcomeCreated {
		err := outcome.Err
		if err == nil {
			err = fmt.Errorf("test issue not created: request was %s (%s)", outcome.Status, outcome.Reason)
		}
		return TestResult{StatusMessage: "Test issue could not be created."}, err
	}
	key := outcome.IssueKey
	defer s.deleteTestIssue(context.WithoutCancel(ctx), key)

	if cfg.ResolveTransition != "" {
		if err := s.testTransition(ctx, key, LifecycleResolved, cfg, s.schema.ResolveTransitionField); err != nil {
			return TestResult{CreatedTestIssueKey: key}, err
		}
		if cfg.OpenTransition != "" {
			if err := s.testTransition(ctx, key, LifecycleOpen, cfg, s.schema.OpenTransitionField); err != nil {
				return TestResult{CreatedTestIssueKey: key}, err
			}
		}
	}

	return TestResult{
		StatusMessage:       fmt.Sprintf("Successfully created test issue %s in project %s.", key, cfg.ProjectName),
		CreatedTestIssueKey: key,
	}, nil
}

func (s *Service) testTransition(ctx context.Context, key string, target Lifecycle, cfg Configuration, field string) error {
	_, err := s.sync.transitions.Resolve(ctx, key, target, cfg)
	var noLegal *NoLegalTransitionError
	if errors.As(err, &noLegal) {
		return SingleFieldError(field, noLegal.Error())
	}
	return err
}

func (s *Service) deleteTestIssue(ctx context.Context, key string) {
	if err := s.backend.DeleteIssue(ctx, key); err != nil {
		s.logger.Warn("could not delete the test issue", "issue", key, "error", err)
		return
	}
	s.logger.Debug("deleted test issue", "issue", key)
}

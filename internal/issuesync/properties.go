package issuesync

import (
	"context"
	"fmt"
	"log/slog"
)

// PropertyStore tags issues with correlation properties and finds them again.
type PropertyStore struct {
	backend PropertyBackend
	logger  *slog.Logger
}

// NewPropertyStore returns a store backed by the given property backend.
func NewPropertyStore(backend PropertyBackend, logger *slog.Logger) *PropertyStore {
	return &PropertyStore{backend: backend, logger: orDiscard(logger)}
}

// Attach writes props onto the issue. Writing identical properties again is a
// no-op on the backend.
func (s *PropertyStore) Attach(ctx context.Context, issueKey string, props CorrelationProperties) error {
	if props.IsZero() {
		return nil
	}
	if err := s.backend.SetProperties(ctx, issueKey, props); err != nil {
		return fmt.Errorf("attaching correlation properties to %s: %w", issueKey, backendError(err))
	}
	s.logger.Debug("attached correlation properties", "issue", issueKey, "fields", len(props.Fields()))
	return nil
}

// Find returns the key of the issue in the project whose stored properties
// match every non-empty field of props. Empty props never match.
func (s *PropertyStore) Find(ctx context.Context, projectKey string, props CorrelationProperties) (string, bool, error) {
	if props.IsZero() {
		return "", false, nil
	}
	key, ok, err := s.backend.SearchByProperties(ctx, projectKey, props)
	if err != nil {
		return "", false, fmt.Errorf("searching for correlated issue: %w", backendError(err))
	}
	if ok {
		s.logger.Debug("found correlated issue", "issue", key, "project", projectKey)
	}
	return key, ok, nil
}

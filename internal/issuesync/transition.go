package issuesync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TransitionResult says whether a transition was needed.
type TransitionResult int

const (
	TransitionApplied TransitionResult = iota
	TransitionNoop
)

// TransitionResolver moves an issue into a lifecycle category using the
// transition names from the configuration. Only single-hop transitions are
// attempted.
type TransitionResolver struct {
	issues IssueBackend
	logger *slog.Logger
}

// NewTransitionResolver returns a resolver driving the given backend.
func NewTransitionResolver(issues IssueBackend, logger *slog.Logger) *TransitionResolver {
	return &TransitionResolver{issues: issues, logger: orDiscard(logger)}
}

// Resolve brings the issue into target. It returns TransitionNoop without any
// mutation when the issue is already there, and a *NoLegalTransitionError
// when the configured transition is missing or not offered by the workflow.
func (r *TransitionResolver) Resolve(ctx context.Context, issueKey string, target Lifecycle, cfg Configuration) (TransitionResult, error) {
	current, err := r.issues.GetStatus(ctx, issueKey)
	if err != nil {
		return 0, fmt.Errorf("fetching status of %s: %w", issueKey, backendError(err))
	}
	if current.Satisfies(target) {
		r.logger.Debug("issue already in target state", "issue", issueKey, "target", target.String(), "category", string(current))
		return TransitionNoop, nil
	}

	name := cfg.TransitionName(target)
	if name == "" {
		return 0, &NoLegalTransitionError{IssueKey: issueKey, Target: target}
	}

	transitions, err := r.issues.GetTransitions(ctx, issueKey)
	if err != nil {
		return 0, fmt.Errorf("fetching transitions of %s: %w", issueKey, backendError(err))
	}

	t, ok := findTransition(transitions, name)
	if !ok {
		available := make([]string, 0, len(transitions))
		for _, t := range transitions {
			available = append(available, fmt.Sprintf("'%s' (-> %s)", t.Name, t.TargetCategory))
		}
		return 0, &NoLegalTransitionError{IssueKey: issueKey, Target: target, Transition: name, Available: available}
	}
	if t.TargetCategory != "" && t.TargetCategory != StatusUnknown && !t.TargetCategory.Satisfies(target) {
		r.logger.Warn("configured transition does not lead to the target state",
			"issue", issueKey, "transition", t.Name, "target", target.String(), "leads_to", string(t.TargetCategory))
	}

	if err := r.issues.ApplyTransition(ctx, issueKey, t.ID); err != nil {
		return 0, fmt.Errorf("applying transition %q to %s: %w", t.Name, issueKey, backendError(err))
	}
	r.logger.Debug("applied transition", "issue", issueKey, "transition", t.Name, "target", target.String())
	return TransitionApplied, nil
}

func findTransition(transitions []Transition, name string) (Transition, bool) {
	for _, t := range transitions {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Transition{}, false
}

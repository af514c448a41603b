package issuesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// IntroComment is posted first on every issue created with comments enabled.
const IntroComment = "This issue was automatically created by issuetracker-jira."

// Synchronizer applies batches of requests to a tracker. It keeps no state
// between batches; everything lives on the remote issues.
type Synchronizer struct {
	issues      IssueBackend
	properties  *PropertyStore
	transitions *TransitionResolver
	content     ContentValidator
	schema      Schema
	logger      *slog.Logger
}

// NewSynchronizer wires the synchronizer and its helpers to one backend.
func NewSynchronizer(issues IssueBackend, properties PropertyBackend, limits Limits, schema Schema, logger *slog.Logger) *Synchronizer {
	logger = orDiscard(logger)
	return &Synchronizer{
		issues:      issues,
		properties:  NewPropertyStore(properties, logger),
		transitions: NewTransitionResolver(issues, logger),
		content:     NewContentValidator(limits),
		schema:      schema,
		logger:      logger,
	}
}

// Sync processes requests in order. A failing request never stops the batch;
// its error is recorded in its Outcome. Sync itself only fails on an empty batch.
func (s *Synchronizer) Sync(ctx context.Context, cfg Configuration, requests []Request) (*Result, error) {
	if len(requests) == 0 {
		return nil, errors.New("requests missing: at least one request is required")
	}

	result := &Result{Outcomes: make([]Outcome, 0, len(requests))}
	for i, req := range requests {
		s.logRequest(cfg, req)
		outcome := s.syncOne(ctx, cfg, req, result)
		outcome.Index = i
		outcome.Operation = req.Operation
		if outcome.Status == OutcomeFailed {
			s.logger.Error("issue request failed", "index", i, "operation", string(req.Operation), "issue", outcome.IssueKey, "error", outcome.Err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	result.StatusMessage = summarize(result)
	return result, nil
}

func (s *Synchronizer) syncOne(ctx context.Context, cfg Configuration, req Request, result *Result) Outcome {
	key, found, err := s.properties.Find(ctx, cfg.ProjectKey, req.Properties)
	if err != nil {
		return failed("", err)
	}

	switch req.Operation {
	case OperationCreate:
		if !found {
			return s.create(ctx, cfg, req, result)
		}
		return s.update(ctx, cfg, key, LifecycleOpen, req, result)
	case OperationResolve:
		if !found {
			return Outcome{Status: OutcomeSkipped, Reason: "no correlated issue to resolve"}
		}
		return s.update(ctx, cfg, key, LifecycleResolved, req, result)
	case OperationReopen:
		if !found {
			return failed("", &NotFoundError{Operation: req.Operation})
		}
		return s.update(ctx, cfg, key, LifecycleOpen, req, result)
	case OperationComment:
		if !found {
			return failed("", &NotFoundError{Operation: req.Operation})
		}
		return s.comment(ctx, cfg, key, req, result)
	default:
		return failed("", fmt.Errorf("unknown operation %q", req.Operation))
	}
}

func (s *Synchronizer) create(ctx context.Context, cfg Configuration, req Request, result *Result) Outcome {
	valid, err := s.content.Validate(req.Content, cfg.CommentOnIssues)
	if err != nil {
		return failed("", err)
	}

	description := valid.Description
	var comments []string
	var rejected []error
	if cfg.CommentOnIssues {
		head, overflow := s.content.SplitDescription(description)
		if overflow != "" {
			valid.Ledger = append(valid.Ledger, TruncationEntry{
				Field:           "description",
				OriginalLength:  runeLen(description),
				TruncatedLength: runeLen(head),
			})
			description = head
		}
		comments = s.content.ContinuedComments(append([]string{overflow}, valid.DescriptionComments...)...)
		var additional []string
		additional, rejected = s.content.AcceptComments(valid.AdditionalComments)
		comments = append(comments, additional...)
	}
	for _, entry := range valid.Ledger {
		s.logger.Warn("issue content shortened", "field", entry.Field,
			"original_length", entry.OriginalLength, "truncated_length", entry.TruncatedLength)
	}

	key, err := s.issues.CreateIssue(ctx, NewIssue{
		ProjectID:   cfg.ProjectID,
		IssueType:   cfg.IssueType,
		Creator:     cfg.IssueCreator,
		Title:       valid.Title,
		Description: description,
	})
	if err != nil {
		if fieldErr := creatorFieldError(err, s.schema, cfg.IssueCreator); fieldErr != nil {
			return failed("", fieldErr)
		}
		return failed("", fmt.Errorf("creating issue: %w", backendError(err)))
	}
	s.logger.Debug("created issue", "issue", key, "project", cfg.ProjectName)

	outcome := Outcome{IssueKey: key, Status: OutcomeCreated}
	result.addUpdatedKey(key)

	if err := s.properties.Attach(ctx, key, req.Properties); err != nil {
		s.logger.Warn("correlation properties not attached; a later sync may create a duplicate issue", "issue", key, "error", err)
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("correlation lost: %v", err))
	}

	if cfg.CommentOnIssues {
		s.rejectComments(key, rejected, &outcome)
		s.postComments(ctx, key, append([]string{IntroComment}, comments...), &outcome)
	}
	return outcome
}

func (s *Synchronizer) update(ctx context.Context, cfg Configuration, key string, target Lifecycle, req Request, result *Result) Outcome {
	res, err := s.transitions.Resolve(ctx, key, target, cfg)
	if err != nil {
		return failed(key, err)
	}

	outcome := Outcome{IssueKey: key, Status: OutcomeUpdated}
	if res == TransitionApplied {
		outcome.Reason = "transitioned to " + target.String()
		result.addUpdatedKey(key)
	} else {
		outcome.Noop = true
		outcome.Reason = "already " + target.String()
	}

	if cfg.CommentOnIssues && len(req.Content.AdditionalComments) > 0 {
		comments, rejected := s.content.AcceptComments(req.Content.AdditionalComments)
		s.rejectComments(key, rejected, &outcome)
		if s.postComments(ctx, key, comments, &outcome) > 0 {
			result.addUpdatedKey(key)
		}
	}
	return outcome
}

func (s *Synchronizer) comment(ctx context.Context, cfg Configuration, key string, req Request, result *Result) Outcome {
	if !cfg.CommentOnIssues {
		return Outcome{IssueKey: key, Status: OutcomeSkipped, Reason: "commenting is disabled for this configuration"}
	}

	texts := req.Content.AdditionalComments
	if len(texts) == 0 && req.Content.Description != "" {
		texts = []string{req.Content.Description}
	}
	if len(texts) == 0 {
		return Outcome{IssueKey: key, Status: OutcomeSkipped, Reason: "nothing to comment"}
	}
	if err := s.content.ValidateComments(texts); err != nil {
		return failed(key, err)
	}

	for _, text := range texts {
		if err := s.issues.AddComment(ctx, key, text); err != nil {
			return failed(key, fmt.Errorf("commenting on %s: %w", key, backendError(err)))
		}
		result.addUpdatedKey(key)
	}
	return Outcome{IssueKey: key, Status: OutcomeUpdated, Reason: fmt.Sprintf("%d comment(s) added", len(texts))}
}

// rejectComments records comments that failed the length check as warnings.
func (s *Synchronizer) rejectComments(key string, rejected []error, outcome *Outcome) {
	for _, err := range rejected {
		s.logger.Warn("comment rejected", "issue", key, "error", err)
		outcome.Warnings = append(outcome.Warnings, err.Error())
	}
}

// postComments adds each comment in order. Failures are logged and kept as
// warnings on the outcome; they never change its status.
func (s *Synchronizer) postComments(ctx context.Context, key string, comments []string, outcome *Outcome) int {
	posted := 0
	for _, c := range comments {
		if err := s.issues.AddComment(ctx, key, c); err != nil {
			s.logger.Error("failed to add comment", "issue", key, "error", err)
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("comment not added: %v", err))
			continue
		}
		posted++
	}
	return posted
}

func (s *Synchronizer) logRequest(cfg Configuration, req Request) {
	p := req.Properties
	s.logger.Debug("attempting issue action",
		"operation", string(req.Operation),
		"project", cfg.ProjectName,
		"provider", p.Provider,
		"provider_url", p.ProviderURL,
		"topic", p.TopicValue,
		"sub_topic", orUnknown(p.SubTopicValue),
		"category", p.Category,
		"component", p.ComponentValue,
		"sub_component", orUnknown(p.SubComponentValue))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func failed(key string, err error) Outcome {
	return Outcome{IssueKey: key, Status: OutcomeFailed, Reason: err.Error(), Err: err}
}

func summarize(r *Result) string {
	counts := make(map[OutcomeStatus]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return fmt.Sprintf("Processed %d request(s): %d created, %d updated, %d skipped, %d failed.",
		len(r.Outcomes), counts[OutcomeCreated], counts[OutcomeUpdated], counts[OutcomeSkipped], counts[OutcomeFailed])
}

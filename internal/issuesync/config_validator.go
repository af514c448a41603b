package issuesync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ConfigValidator checks a raw configuration against live tracker metadata.
type ConfigValidator struct {
	projects   ProjectLookup
	users      UserLookup
	issueTypes IssueTypeLookup
	schema     Schema
	logger     *slog.Logger
}

// NewConfigValidator returns a validator that reports errors under the field
// keys named by schema.
func NewConfigValidator(projects ProjectLookup, users UserLookup, issueTypes IssueTypeLookup, schema Schema, logger *slog.Logger) *ConfigValidator {
	return &ConfigValidator{
		projects:   projects,
		users:      users,
		issueTypes: issueTypes,
		schema:     schema,
		logger:     orDiscard(logger),
	}
}

// CreateValidConfiguration validates every field of raw and returns the
// sanitized configuration. All field problems are collected into one
// *FieldValidationError. Lookup failures are returned as they happen.
func (v *ConfigValidator) CreateValidConfiguration(ctx context.Context, raw RawConfiguration) (Configuration, error) {
	fieldErrors := make(map[string]string)
	cfg := Configuration{CommentOnIssues: raw.CommentOnIssues}

	project, err := v.validateProject(ctx, strings.TrimSpace(raw.ProjectName), fieldErrors)
	if err != nil {
		return Configuration{}, err
	}
	if project != nil {
		cfg.ProjectID = project.ID
		cfg.ProjectKey = project.Key
		cfg.ProjectName = project.Name
	}

	issueType, err := v.validateIssueType(ctx, strings.TrimSpace(raw.IssueType), project, fieldErrors)
	if err != nil {
		return Configuration{}, err
	}
	cfg.IssueType = issueType

	creator, err := v.validateCreator(ctx, strings.TrimSpace(raw.IssueCreator), fieldErrors)
	if err != nil {
		return Configuration{}, err
	}
	cfg.IssueCreator = creator

	cfg.OpenTransition = validateTransitionName(raw.OpenTransition, v.schema.OpenTransitionField, "open", fieldErrors)
	cfg.ResolveTransition = validateTransitionName(raw.ResolveTransition, v.schema.ResolveTransitionField, "resolve", fieldErrors)

	if len(fieldErrors) > 0 {
		v.logger.Debug("configuration rejected", "fields", len(fieldErrors))
		return Configuration{}, &FieldValidationError{FieldErrors: fieldErrors}
	}
	return cfg, nil
}

func (v *ConfigValidator) validateProject(ctx context.Context, name string, fieldErrors map[string]string) (*Project, error) {
	if name == "" {
		fieldErrors[v.schema.ProjectField] = "A project name is required."
		return nil, nil
	}
	projects, err := v.projects.ProjectsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up project %q: %w", name, backendError(err))
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.Key, name) {
			return &p, nil
		}
	}
	fieldErrors[v.schema.ProjectField] = fmt.Sprintf("Unable to find a project named '%s'.", name)
	return nil, nil
}

func (v *ConfigValidator) validateIssueType(ctx context.Context, name string, project *Project, fieldErrors map[string]string) (string, error) {
	if name == "" {
		fieldErrors[v.schema.IssueTypeField] = "An issue type is required."
		return "", nil
	}
	types, err := v.issueTypes.AllIssueTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("listing issue types: %w", backendError(err))
	}

	var found string
	for _, t := range types {
		if strings.EqualFold(t.Name, name) {
			found = t.Name
			break
		}
	}
	if found == "" {
		fieldErrors[v.schema.IssueTypeField] = fmt.Sprintf("The issue type '%s' could not be found.", name)
		return "", nil
	}

	// Without a project there is nothing to check the type against; the
	// project error is already recorded.
	if project == nil {
		return found, nil
	}
	ok, err := v.issueTypes.IsValidForProject(ctx, project.ID, found)
	if err != nil {
		return "", fmt.Errorf("checking issue type %q for project %s: %w", found, project.Name, backendError(err))
	}
	if !ok {
		fieldErrors[v.schema.IssueTypeField] = fmt.Sprintf("The issue type '%s' is not valid for the project '%s'.", found, project.Name)
		return "", nil
	}
	return found, nil
}

func (v *ConfigValidator) validateCreator(ctx context.Context, identity string, fieldErrors map[string]string) (string, error) {
	if identity == "" {
		fieldErrors[v.schema.IssueCreatorField] = "An issue creator is required."
		return "", nil
	}
	users, err := v.users.UsersByIdentity(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("looking up user %q: %w", identity, backendError(err))
	}

	accounts := make(map[string]bool)
	for _, u := range users {
		if strings.EqualFold(u.Identity, identity) {
			accounts[u.AccountID+"|"+u.Identity] = true
		}
	}
	switch len(accounts) {
	case 0:
		fieldErrors[v.schema.IssueCreatorField] = fmt.Sprintf("The user '%s' could not be found.", identity)
		return "", nil
	case 1:
		return identity, nil
	default:
		fieldErrors[v.schema.IssueCreatorField] = fmt.Sprintf("The user '%s' matches %d accounts; use an identity that names exactly one.", identity, len(accounts))
		return "", nil
	}
}

// validateTransitionName checks only that a supplied name is not blank. Whether
// the workflow offers it is known only per issue, at transition time.
func validateTransitionName(name *string, field, direction string, fieldErrors map[string]string) string {
	if name == nil {
		return ""
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		fieldErrors[field] = fmt.Sprintf("The %s transition name cannot be blank.", direction)
	}
	return trimmed
}

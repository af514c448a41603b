package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

var (
	colorPass  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail  = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}

	passStyle  = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle  = lipgloss.NewStyle().Foreground(colorFail)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

const (
	iconPass = "✓"
	iconWarn = "⚠"
	iconFail = "✗"
	iconSkip = "-"
)

func renderPass(s string) string  { return passStyle.Render(s) }
func renderWarn(s string) string  { return warnStyle.Render(s) }
func renderFail(s string) string  { return failStyle.Render(s) }
func renderMuted(s string) string { return mutedStyle.Render(s) }

// printFieldErrors lists every field of a *issuesync.FieldValidationError.
func printFieldErrors(err error) {
	var fieldErr *issuesync.FieldValidationError
	if !errors.As(err, &fieldErr) {
		return
	}
	fields := make([]string, 0, len(fieldErr.FieldErrors))
	for f := range fieldErr.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Printf("%s %s: %s\n", renderFail(iconFail), f, fieldErr.FieldErrors[f])
	}
}

// formatOutcome renders one request outcome as a single line plus warnings.
func formatOutcome(o issuesync.Outcome) string {
	label := fmt.Sprintf("#%d %s", o.Index+1, o.Operation)
	key := o.IssueKey
	if key == "" {
		key = "-"
	}

	var line string
	switch o.Status {
	case issuesync.OutcomeCreated:
		line = fmt.Sprintf("%s %s %s created", renderPass(iconPass), label, key)
	case issuesync.OutcomeUpdated:
		line = fmt.Sprintf("%s %s %s %s", renderPass(iconPass), label, key, o.Reason)
		if o.Noop {
			line = fmt.Sprintf("%s %s %s %s", renderMuted(iconSkip), label, key, renderMuted(o.Reason))
		}
	case issuesync.OutcomeSkipped:
		line = fmt.Sprintf("%s %s %s", renderMuted(iconSkip), label, renderMuted(o.Reason))
	default:
		line = fmt.Sprintf("%s %s %s %s", renderFail(iconFail), label, key, renderFail(o.Reason))
	}
	for _, w := range o.Warnings {
		line += "\n    " + renderWarn(iconWarn+" "+w)
	}
	return line
}

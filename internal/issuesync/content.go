package issuesync

import (
	"fmt"
	"unicode/utf8"
)

const (
	// DescriptionContinuedText prefixes comments that carry description overflow.
	DescriptionContinuedText = "(description continued...)"
	// DescriptionTruncatedText ends a description that lost data because
	// comments are disabled.
	DescriptionTruncatedText = "... (Comments are disabled.  Description data will be lost. See project information for more data.)"
)

// Limits are the per-backend maximum lengths, in characters.
type Limits struct {
	Title       int
	Description int
	Comment     int
}

// JiraLimits are the Jira field limits.
var JiraLimits = Limits{Title: 255, Description: 30000, Comment: 30000}

// TruncationEntry records content dropped or moved while shaping one request.
type TruncationEntry struct {
	Field           string
	OriginalLength  int
	TruncatedLength int
}

// ValidContent is content that fits the backend limits, plus the ledger of
// anything that had to be cut to get there.
type ValidContent struct {
	Content
	Ledger []TruncationEntry
}

// ContentValidator enforces backend length limits. It has no side effects.
type ContentValidator struct {
	limits Limits
}

// NewContentValidator returns a validator for the given limits.
func NewContentValidator(limits Limits) ContentValidator {
	return ContentValidator{limits: limits}
}

// Limits returns the configured limits.
func (v ContentValidator) Limits() Limits {
	return v.limits
}

// Validate checks the title and shapes the description. A title that is too
// long fails. A description that is too long is truncated with a marker only
// when comments are disabled; otherwise it is left for the synchronizer to
// split. Comments are not checked here; they are posted separately and each
// one goes through ValidateComment.
func (v ContentValidator) Validate(c Content, commentOnIssues bool) (ValidContent, error) {
	if n := runeLen(c.Title); n > v.limits.Title {
		return ValidContent{}, &ContentLengthExceededError{Field: "title", Length: n, Limit: v.limits.Title}
	}

	valid := ValidContent{Content: c}
	if commentOnIssues {
		return valid, nil
	}

	descLen := runeLen(c.Description)
	if descLen > v.limits.Description || len(c.DescriptionComments) > 0 {
		valid.Description = truncateWithMarker(c.Description, v.limits.Description)
		valid.Ledger = append(valid.Ledger, TruncationEntry{
			Field:           "description",
			OriginalLength:  descLen,
			TruncatedLength: runeLen(valid.Description),
		})
	}
	if len(c.DescriptionComments) > 0 {
		dropped := 0
		for _, dc := range c.DescriptionComments {
			dropped += runeLen(dc)
		}
		valid.Ledger = append(valid.Ledger, TruncationEntry{Field: "descriptionComments", OriginalLength: dropped})
		valid.DescriptionComments = nil
	}
	return valid, nil
}

// ValidateComment fails when comment is longer than the comment limit.
func (v ContentValidator) ValidateComment(comment string) error {
	if n := runeLen(comment); n > v.limits.Comment {
		return &ContentLengthExceededError{Field: "comment", Length: n, Limit: v.limits.Comment}
	}
	return nil
}

// ValidateComments fails on the first comment longer than the comment limit.
func (v ContentValidator) ValidateComments(comments []string) error {
	for _, comment := range comments {
		if err := v.ValidateComment(comment); err != nil {
			return err
		}
	}
	return nil
}

// AcceptComments splits comments into those within the comment limit, in
// order, and an error for each one that is too long.
func (v ContentValidator) AcceptComments(comments []string) (accepted []string, rejected []error) {
	for _, comment := range comments {
		if err := v.ValidateComment(comment); err != nil {
			rejected = append(rejected, err)
			continue
		}
		accepted = append(accepted, comment)
	}
	return accepted, rejected
}

// SplitDescription keeps the first Description characters of desc and returns
// the rest as overflow text, or "" when desc already fits.
func (v ContentValidator) SplitDescription(desc string) (head, overflow string) {
	if runeLen(desc) <= v.limits.Description {
		return desc, ""
	}
	r := []rune(desc)
	return string(r[:v.limits.Description]), string(r[v.limits.Description:])
}

// ContinuedComments prefixes each text with the continuation marker, splitting
// it so every resulting comment stays within the comment limit.
func (v ContentValidator) ContinuedComments(texts ...string) []string {
	header := DescriptionContinuedText + " \n "
	size := v.limits.Comment - runeLen(header)
	if size < 1 {
		size = 1
	}

	var comments []string
	for _, text := range texts {
		for _, chunk := range chunk(text, size) {
			comments = append(comments, fmt.Sprintf("%s%s", header, chunk))
		}
	}
	return comments
}

func truncateWithMarker(s string, limit int) string {
	marker := []rune(DescriptionTruncatedText)
	keep := limit - len(marker)
	if keep < 0 {
		return string(marker[:limit])
	}
	r := []rune(s)
	if len(r) < keep {
		keep = len(r)
	}
	return string(r[:keep]) + DescriptionTruncatedText
}

func chunk(s string, size int) []string {
	r := []rune(s)
	if len(r) == 0 {
		return nil
	}
	var chunks []string
	for len(r) > size {
		chunks = append(chunks, string(r[:size]))
		r = r[size:]
	}
	return append(chunks, string(r))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

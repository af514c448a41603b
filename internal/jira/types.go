package jira

import "encoding/json"

// Issue represents a JIRA issue from the REST API v3.
type Issue struct {
	ID         string                     `json:"id,omitempty"`
	Key        string                     `json:"key"`
	Fields     Fields                     `json:"fields"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
}

// Fields contains the issue fields we care about.
type Fields struct {
	Summary string `json:"summary,omitempty"`
	Status  Status `json:"status"`
}

// Status represents a JIRA status.
type Status struct {
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory represents the high-level category of a JIRA status.
type StatusCategory struct {
	Key  string `json:"key"`  // "new", "indeterminate", "done"
	Name string `json:"name"` // "To Do", "In Progress", "Done"
}

// IssueType represents a JIRA issue type.
type IssueType struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User represents a JIRA user.
type User struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress,omitempty"`
	DisplayName  string `json:"displayName"`
	Active       bool   `json:"active"`
}

// Project represents a JIRA project.
type Project struct {
	ID         string      `json:"id"`
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	IssueTypes []IssueType `json:"issueTypes,omitempty"`
}

// ProjectSearchResponse is the page returned by GET /rest/api/3/project/search.
type ProjectSearchResponse struct {
	Values []Project `json:"values"`
	IsLast bool      `json:"isLast"`
}

// SearchResponse is the response from GET /rest/api/3/search/jql.
type SearchResponse struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        bool    `json:"isLast"`
}

// ADFNode represents a node in the Atlassian Document Format.
type ADFNode struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Content []ADFNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// CreatePayload is the body for POST /rest/api/3/issue.
type CreatePayload struct {
	Fields CreateFields `json:"fields"`
}

// CreateFields contains the fields set on a new issue.
type CreateFields struct {
	Project     Ref      `json:"project"`
	IssueType   Ref      `json:"issuetype"`
	Summary     string   `json:"summary"`
	Description *ADFNode `json:"description,omitempty"`
	Reporter    *Ref     `json:"reporter,omitempty"`
}

// Ref points at another JIRA entity by id, name or account id.
type Ref struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

// CreatedIssue is the response from POST /rest/api/3/issue.
type CreatedIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// CommentPayload is the body for POST /rest/api/3/issue/{key}/comment.
type CommentPayload struct {
	Body *ADFNode `json:"body"`
}

// Transition is used to change issue status.
type Transition struct {
	ID string `json:"id"`
}

// TransitionPayload is the body for POST /rest/api/3/issue/{key}/transitions.
type TransitionPayload struct {
	Transition Transition `json:"transition"`
}

// TransitionsResponse is the response from GET transitions.
type TransitionsResponse struct {
	Transitions []TransitionInfo `json:"transitions"`
}

// TransitionInfo describes an available transition.
type TransitionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Status `json:"to"`
}

// ErrorResponse is the error body JIRA returns on 4xx responses.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

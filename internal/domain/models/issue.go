package models

import "time"

// Issue is a single tracked code issue.
type Issue struct {
	ID            int64      `json:"id"`
	Key           string     `json:"key"`
	ComponentKey  string     `json:"component"`
	RuleKey       string     `json:"rule"`
	Severity      string     `json:"severity"`
	Status        string     `json:"status"`
	Resolution    string     `json:"resolution,omitempty"`
	AssigneeLogin string     `json:"assignee,omitempty"`
	ReporterLogin string     `json:"reporter,omitempty"`
	Message       string     `json:"message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// IssueQuery holds the criteria of an issue search. Any scoping to the
// acting user (assigned-to-me style queries) is already encoded in the
// criteria; executing a query performs no authorization of its own.
type IssueQuery struct {
	Severities     []string   `json:"severities,omitempty"`
	Statuses       []string   `json:"statuses,omitempty"`
	Resolutions    []string   `json:"resolutions,omitempty"`
	Resolved       *bool      `json:"resolved,omitempty"`
	ComponentRoots []string   `json:"componentRoots,omitempty"`
	Rules          []string   `json:"rules,omitempty"`
	Assignees      []string   `json:"assignees,omitempty"`
	Reporters      []string   `json:"reporters,omitempty"`
	Assigned       *bool      `json:"assigned,omitempty"`
	CreatedAfter   *time.Time `json:"createdAfter,omitempty"`
	CreatedBefore  *time.Time `json:"createdBefore,omitempty"`
	Sort           string     `json:"sort,omitempty"`
	Asc            bool       `json:"asc,omitempty"`
	PageIndex      int        `json:"pageIndex,omitempty"`
	PageSize       int        `json:"pageSize,omitempty"`
}

// IssueQueryResult is one page of issues matching a query.
type IssueQueryResult struct {
	Issues    []Issue `json:"issues"`
	Total     int64   `json:"total"`
	PageIndex int     `json:"page_index"`
	PageSize  int     `json:"page_size"`
}

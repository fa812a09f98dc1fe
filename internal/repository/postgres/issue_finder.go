package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"quarry/internal/domain/models"
	"quarry/internal/domain/services"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// sortColumns whitelists the sortable columns. Anything else falls back to
// creation date.
var sortColumns = map[string]string{
	"SEVERITY":      "severity",
	"STATUS":        "status",
	"ASSIGNEE":      "assignee_login",
	"CREATION_DATE": "created_at",
	"UPDATE_DATE":   "updated_at",
	"CLOSE_DATE":    "closed_at",
}

// PostgresIssueFinder executes issue queries against the issues table.
type PostgresIssueFinder struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewIssueFinder creates a new issue finder
func NewIssueFinder(config *RepositoryConfig) services.IssueFinder {
	return &PostgresIssueFinder{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Find runs the query and returns one page of matching issues plus the total
// match count.
func (f *PostgresIssueFinder) Find(ctx context.Context, query *models.IssueQuery) (*models.IssueQueryResult, error) {
	where, args := buildIssuePredicates(query)

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", f.tables.Issues, where)

	var total int64
	if err := f.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count issues: %w", err)
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pageIndex := query.PageIndex
	if pageIndex < 1 {
		pageIndex = 1
	}

	column, ok := sortColumns[query.Sort]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if query.Asc {
		direction = "ASC"
	}

	selectSQL := fmt.Sprintf(`
		SELECT id, key, component_key, rule_key, severity, status, resolution,
		       assignee_login, reporter_login, message, created_at, updated_at, closed_at
		FROM %s%s
		ORDER BY %s %s
		LIMIT %d OFFSET %d
	`, f.tables.Issues, where, column, direction, pageSize, (pageIndex-1)*pageSize)

	rows, err := f.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("select issues: %w", err)
	}
	defer rows.Close()

	var issues []models.Issue
	for rows.Next() {
		var issue models.Issue
		err := rows.Scan(
			&issue.ID,
			&issue.Key,
			&issue.ComponentKey,
			&issue.RuleKey,
			&issue.Severity,
			&issue.Status,
			&issue.Resolution,
			&issue.AssigneeLogin,
			&issue.ReporterLogin,
			&issue.Message,
			&issue.CreatedAt,
			&issue.UpdatedAt,
			&issue.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}

	return &models.IssueQueryResult{
		Issues:    issues,
		Total:     total,
		PageIndex: pageIndex,
		PageSize:  pageSize,
	}, nil
}

// buildIssuePredicates turns the query criteria into a WHERE clause and its
// positional arguments.
func buildIssuePredicates(query *models.IssueQuery) (string, []any) {
	var predicates []string
	var args []any

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(query.Severities) > 0 {
		predicates = append(predicates, fmt.Sprintf("severity = ANY(%s)", arg(query.Severities)))
	}
	if len(query.Statuses) > 0 {
		predicates = append(predicates, fmt.Sprintf("status = ANY(%s)", arg(query.Statuses)))
	}
	if len(query.Resolutions) > 0 {
		predicates = append(predicates, fmt.Sprintf("resolution = ANY(%s)", arg(query.Resolutions)))
	}
	if query.Resolved != nil {
		if *query.Resolved {
			predicates = append(predicates, "resolution <> ''")
		} else {
			predicates = append(predicates, "resolution = ''")
		}
	}
	if len(query.ComponentRoots) > 0 {
		clauses := make([]string, 0, len(query.ComponentRoots))
		for _, root := range query.ComponentRoots {
			clauses = append(clauses, fmt.Sprintf("component_key LIKE %s", arg(root+"%")))
		}
		predicates = append(predicates, "("+strings.Join(clauses, " OR ")+")")
	}
	if len(query.Rules) > 0 {
		predicates = append(predicates, fmt.Sprintf("rule_key = ANY(%s)", arg(query.Rules)))
	}
	if len(query.Assignees) > 0 {
		predicates = append(predicates, fmt.Sprintf("assignee_login = ANY(%s)", arg(query.Assignees)))
	}
	if len(query.Reporters) > 0 {
		predicates = append(predicates, fmt.Sprintf("reporter_login = ANY(%s)", arg(query.Reporters)))
	}
	if query.Assigned != nil {
		if *query.Assigned {
			predicates = append(predicates, "assignee_login <> ''")
		} else {
			predicates = append(predicates, "assignee_login = ''")
		}
	}
	if query.CreatedAfter != nil {
		predicates = append(predicates, fmt.Sprintf("created_at >= %s", arg(*query.CreatedAfter)))
	}
	if query.CreatedBefore != nil {
		predicates = append(predicates, fmt.Sprintf("created_at < %s", arg(*query.CreatedBefore)))
	}

	if len(predicates) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(predicates, " AND "), args
}

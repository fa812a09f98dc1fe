package services

import (
	"context"

	"quarry/internal/domain/models"
)

// IssueFinder executes issue queries against the search engine.
type IssueFinder interface {
	Find(ctx context.Context, query *models.IssueQuery) (*models.IssueQueryResult, error)
}

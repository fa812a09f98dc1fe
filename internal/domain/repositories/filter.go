package repositories

import (
	"context"

	"quarry/internal/domain/models"
)

// FilterRepository provides access to persisted issue filters.
type FilterRepository interface {
	// SelectByID returns the filter with the given id, or nil when absent.
	SelectByID(ctx context.Context, id int64) (*models.IssueFilter, error)

	// SelectByUser returns all filters owned by the given login.
	SelectByUser(ctx context.Context, login string) ([]models.IssueFilter, error)

	// SelectSharedFilters returns all shared filters, regardless of owner.
	SelectSharedFilters(ctx context.Context) ([]models.IssueFilter, error)

	// SelectFavoriteFiltersByUser returns the filters the given login has
	// marked as favorite.
	SelectFavoriteFiltersByUser(ctx context.Context, login string) ([]models.IssueFilter, error)

	// Insert persists a new filter and assigns its surrogate id.
	Insert(ctx context.Context, filter *models.IssueFilter) error

	// Update persists all mutable fields of an existing filter.
	Update(ctx context.Context, filter *models.IssueFilter) error

	// Delete removes the filter record.
	Delete(ctx context.Context, id int64) error
}

// FavoriteRepository provides access to favorite links between logins and
// filters.
type FavoriteRepository interface {
	// SelectByFilterID returns every favorite link referencing the filter.
	SelectByFilterID(ctx context.Context, filterID int64) ([]models.FilterFavorite, error)

	// Insert persists a new favorite link and assigns its surrogate id.
	Insert(ctx context.Context, favorite *models.FilterFavorite) error

	// Delete removes a single favorite link.
	Delete(ctx context.Context, id int64) error

	// DeleteByFilterID removes every favorite link referencing the filter.
	DeleteByFilterID(ctx context.Context, filterID int64) error
}

package services

import (
	"context"

	"quarry/internal/domain/models"
)

// SaveFilterRequest represents a request to create a filter.
type SaveFilterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Shared      bool   `json:"shared"`
	Data        string `json:"data"`
}

// UpdateFilterRequest represents a request to replace the mutable fields of
// an existing filter. Owner is the resulting owner login; leaving it empty
// keeps the current owner. The service diffs the request against the loaded
// record to decide which authorization and cascade branches apply.
type UpdateFilterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Shared      bool   `json:"shared"`
	Owner       string `json:"user"`
}

// CopyFilterRequest represents a request to copy an existing filter under a
// new name. Data and description are carried over from the source.
type CopyFilterRequest struct {
	Name string `json:"name"`
}

// FilterService defines the authorization and orchestration operations on
// saved issue filters. Every operation taking a session fails with
// Unauthorized before any persistence access when the session is anonymous.
type FilterService interface {
	// FindByID fetches a filter with no authorization check.
	FindByID(ctx context.Context, id int64) (*models.IssueFilter, error)

	// Find fetches a filter the acting user is allowed to read: the filter
	// must be shared or owned by the acting user.
	Find(ctx context.Context, id int64, session models.UserSession) (*models.IssueFilter, error)

	// FindByUser returns all filters owned by the acting user.
	FindByUser(ctx context.Context, session models.UserSession) ([]models.IssueFilter, error)

	// FindSharedWithoutUserFilters returns the shared filters owned by
	// other users.
	FindSharedWithoutUserFilters(ctx context.Context, session models.UserSession) ([]models.IssueFilter, error)

	// FindFavoriteFilters returns the filters the acting user has starred.
	FindFavoriteFilters(ctx context.Context, session models.UserSession) ([]models.IssueFilter, error)

	// Save creates a filter owned by the acting user and stars it for them.
	Save(ctx context.Context, req *SaveFilterRequest, session models.UserSession) (*models.IssueFilter, error)

	// Update replaces the mutable fields of a filter, enforcing ownership,
	// sharing and re-owning rules, and cascades favorite cleanup when the
	// filter becomes unshared.
	Update(ctx context.Context, id int64, req *UpdateFilterRequest, session models.UserSession) (*models.IssueFilter, error)

	// UpdateFilterQuery re-serializes the query mapping into the filter's
	// data string, under the same modify authorization as Update.
	UpdateFilterQuery(ctx context.Context, id int64, query map[string]interface{}, session models.UserSession) (*models.IssueFilter, error)

	// Delete removes a filter and every favorite link referencing it.
	Delete(ctx context.Context, id int64, session models.UserSession) error

	// Copy creates a private copy of a readable filter, owned and starred
	// by the acting user.
	Copy(ctx context.Context, sourceID int64, req *CopyFilterRequest, session models.UserSession) (*models.IssueFilter, error)

	// ToggleFavorite flips the favorite link between the acting user and
	// the filter, returning the new state (true when now favorited).
	ToggleFavorite(ctx context.Context, id int64, session models.UserSession) (bool, error)

	// Execute runs an issue query through the search engine.
	Execute(ctx context.Context, query *models.IssueQuery) (*models.IssueQueryResult, error)

	// SerializeFilterQuery serializes the recognized entries of a query
	// mapping into the flat data-string form, silently dropping unknown keys.
	SerializeFilterQuery(query map[string]interface{}) (string, error)

	// DeserializeFilterQuery recovers the query mapping from a filter's
	// data string.
	DeserializeFilterQuery(filter *models.IssueFilter) (map[string]interface{}, error)

	// CanShareFilter reports whether the acting user may own shared filters.
	CanShareFilter(ctx context.Context, session models.UserSession) (bool, error)
}

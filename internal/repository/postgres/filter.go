package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"quarry/internal/domain"
	"quarry/internal/domain/models"
	"quarry/internal/domain/repositories"
)

// PostgresFilterRepository implements the FilterRepository interface
type PostgresFilterRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFilterRepository creates a new issue filter repository
func NewFilterRepository(config *RepositoryConfig) repositories.FilterRepository {
	return &PostgresFilterRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const filterColumns = "id, name, description, user_login, shared, data, created_at, updated_at"

func scanFilter(row interface{ Scan(...any) error }) (*models.IssueFilter, error) {
	var filter models.IssueFilter
	err := row.Scan(
		&filter.ID,
		&filter.Name,
		&filter.Description,
		&filter.UserLogin,
		&filter.Shared,
		&filter.Data,
		&filter.CreatedAt,
		&filter.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &filter, nil
}

// SelectByID retrieves a filter by ID. Returns nil without error when no
// filter has the given ID.
func (r *PostgresFilterRepository) SelectByID(ctx context.Context, id int64) (*models.IssueFilter, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, filterColumns, r.tables.Filters)

	filter, err := scanFilter(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("select filter: %w", err)
	}

	return filter, nil
}

// SelectByUser retrieves all filters owned by the given login
func (r *PostgresFilterRepository) SelectByUser(ctx context.Context, login string) ([]models.IssueFilter, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_login = $1
		ORDER BY name ASC
	`, filterColumns, r.tables.Filters)

	return r.selectMany(ctx, query, login)
}

// SelectSharedFilters retrieves every shared filter
func (r *PostgresFilterRepository) SelectSharedFilters(ctx context.Context) ([]models.IssueFilter, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE shared = TRUE
		ORDER BY name ASC
	`, filterColumns, r.tables.Filters)

	return r.selectMany(ctx, query)
}

// SelectFavoriteFiltersByUser retrieves the filters the given login has
// marked as favorite
func (r *PostgresFilterRepository) SelectFavoriteFiltersByUser(ctx context.Context, login string) ([]models.IssueFilter, error) {
	query := fmt.Sprintf(`
		SELECT f.id, f.name, f.description, f.user_login, f.shared, f.data, f.created_at, f.updated_at
		FROM %s f
		JOIN %s fav ON fav.filter_id = f.id
		WHERE fav.user_login = $1
		ORDER BY f.name ASC
	`, r.tables.Filters, r.tables.FilterFavorites)

	return r.selectMany(ctx, query, login)
}

// Insert creates a new filter
func (r *PostgresFilterRepository) Insert(ctx context.Context, filter *models.IssueFilter) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, description, user_login, shared, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, r.tables.Filters)

	err := r.pool.QueryRow(ctx, query,
		filter.Name,
		filter.Description,
		filter.UserLogin,
		filter.Shared,
		filter.Data,
	).Scan(&filter.ID, &filter.CreatedAt, &filter.UpdatedAt)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.BadRequestError{Message: "Name already exists"}
		}
		return fmt.Errorf("insert filter: %w", err)
	}

	return nil
}

// Update persists the mutable fields of an existing filter
func (r *PostgresFilterRepository) Update(ctx context.Context, filter *models.IssueFilter) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, description = $2, user_login = $3, shared = $4, data = $5, updated_at = NOW()
		WHERE id = $6
	`, r.tables.Filters)

	result, err := r.pool.Exec(ctx, query,
		filter.Name,
		filter.Description,
		filter.UserLogin,
		filter.Shared,
		filter.Data,
		filter.ID,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return &domain.BadRequestError{Message: "Name already exists"}
		}
		return fmt.Errorf("update filter: %w", err)
	}

	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("Filter not found: %d", filter.ID)}
	}

	return nil
}

// Delete deletes a filter
func (r *PostgresFilterRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1
	`, r.tables.Filters)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}

	if result.RowsAffected() == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("Filter not found: %d", id)}
	}

	return nil
}

func (r *PostgresFilterRepository) selectMany(ctx context.Context, query string, args ...any) ([]models.IssueFilter, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select filters: %w", err)
	}
	defer rows.Close()

	var filters []models.IssueFilter
	for rows.Next() {
		filter, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		filters = append(filters, *filter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}

	return filters, nil
}

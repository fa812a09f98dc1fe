package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"quarry/internal/domain/models"
	"quarry/internal/domain/repositories"
)

// PostgresFavoriteRepository implements the FavoriteRepository interface
type PostgresFavoriteRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFavoriteRepository creates a new filter favorite repository
func NewFavoriteRepository(config *RepositoryConfig) repositories.FavoriteRepository {
	return &PostgresFavoriteRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// SelectByFilterID retrieves all favorite links pointing at a filter
func (r *PostgresFavoriteRepository) SelectByFilterID(ctx context.Context, filterID int64) ([]models.FilterFavorite, error) {
	query := fmt.Sprintf(`
		SELECT id, user_login, filter_id
		FROM %s
		WHERE filter_id = $1
	`, r.tables.FilterFavorites)

	rows, err := r.pool.Query(ctx, query, filterID)
	if err != nil {
		return nil, fmt.Errorf("select favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.FilterFavorite
	for rows.Next() {
		var favorite models.FilterFavorite
		if err := rows.Scan(&favorite.ID, &favorite.UserLogin, &favorite.FilterID); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, favorite)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return favorites, nil
}

// Insert creates a new favorite link
func (r *PostgresFavoriteRepository) Insert(ctx context.Context, favorite *models.FilterFavorite) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_login, filter_id)
		VALUES ($1, $2)
		RETURNING id
	`, r.tables.FilterFavorites)

	err := r.pool.QueryRow(ctx, query, favorite.UserLogin, favorite.FilterID).Scan(&favorite.ID)
	if err != nil {
		if isPgDuplicateError(err) {
			// Already a favorite, keep the operation idempotent
			return nil
		}
		return fmt.Errorf("insert favorite: %w", err)
	}

	return nil
}

// Delete removes a single favorite link by its own ID
func (r *PostgresFavoriteRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1
	`, r.tables.FilterFavorites)

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}

	return nil
}

// DeleteByFilterID removes every favorite link pointing at a filter
func (r *PostgresFavoriteRepository) DeleteByFilterID(ctx context.Context, filterID int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE filter_id = $1
	`, r.tables.FilterFavorites)

	if _, err := r.pool.Exec(ctx, query, filterID); err != nil {
		return fmt.Errorf("delete favorites by filter: %w", err)
	}

	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"quarry/internal/domain/models"
	"quarry/internal/domain/repositories"
)

// PostgresAuthorizationRepository implements the AuthorizationRepository interface
type PostgresAuthorizationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewAuthorizationRepository creates a new authorization repository
func NewAuthorizationRepository(config *RepositoryConfig) repositories.AuthorizationRepository {
	return &PostgresAuthorizationRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// SelectGlobalPermissions retrieves the global permissions granted to a login
func (r *PostgresAuthorizationRepository) SelectGlobalPermissions(ctx context.Context, login string) (models.PermissionSet, error) {
	query := fmt.Sprintf(`
		SELECT permission
		FROM %s
		WHERE user_login = $1
	`, r.tables.UserPermissions)

	rows, err := r.pool.Query(ctx, query, login)
	if err != nil {
		return nil, fmt.Errorf("select permissions: %w", err)
	}
	defer rows.Close()

	perms := models.NewPermissionSet()
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms[models.GlobalPermission(perm)] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return perms, nil
}

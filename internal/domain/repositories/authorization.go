package repositories

import (
	"context"

	"quarry/internal/domain/models"
)

// AuthorizationRepository looks up the global permissions granted to a login.
type AuthorizationRepository interface {
	// SelectGlobalPermissions returns the set of global permission tokens
	// held by the given login. An unknown login yields an empty set.
	SelectGlobalPermissions(ctx context.Context, login string) (models.PermissionSet, error)
}

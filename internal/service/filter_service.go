package service

import (
	"context"
	"fmt"
	"log/slog"

	"quarry/internal/config"
	"quarry/internal/domain"
	"quarry/internal/domain/models"
	"quarry/internal/domain/repositories"
	"quarry/internal/domain/services"
	"quarry/internal/filterquery"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FilterService implements the FilterService interface. All permission
// resolution for saved issue filters lives here; persistence, permission
// lookup, serialization and query execution are delegated to collaborators.
type FilterService struct {
	filterRepo   repositories.FilterRepository
	favoriteRepo repositories.FavoriteRepository
	authRepo     repositories.AuthorizationRepository
	issueFinder  services.IssueFinder
	serializer   filterquery.Serializer
	catalog      *filterquery.Catalog
	logger       *slog.Logger
}

// NewFilterService creates a new filter service.
func NewFilterService(
	filterRepo repositories.FilterRepository,
	favoriteRepo repositories.FavoriteRepository,
	authRepo repositories.AuthorizationRepository,
	issueFinder services.IssueFinder,
	serializer filterquery.Serializer,
	catalog *filterquery.Catalog,
	logger *slog.Logger,
) services.FilterService {
	return &FilterService{
		filterRepo:   filterRepo,
		favoriteRepo: favoriteRepo,
		authRepo:     authRepo,
		issueFinder:  issueFinder,
		serializer:   serializer,
		catalog:      catalog,
		logger:       logger,
	}
}

// FindByID fetches a filter with no authorization check.
func (s *FilterService) FindByID(ctx context.Context, id int64) (*models.IssueFilter, error) {
	return s.findNonNull(ctx, id)
}

// Find fetches a filter the acting user is allowed to read.
func (s *FilterService) Find(ctx context.Context, id int64, session models.UserSession) (*models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	filter, err := s.findNonNull(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := verifyCanReadFilter(filter, login); err != nil {
		return nil, err
	}

	return filter, nil
}

// FindByUser returns all filters owned by the acting user.
func (s *FilterService) FindByUser(ctx context.Context, session models.UserSession) ([]models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	return s.filterRepo.SelectByUser(ctx, login)
}

// FindSharedWithoutUserFilters returns the shared filters owned by other users.
func (s *FilterService) FindSharedWithoutUserFilters(ctx context.Context, session models.UserSession) ([]models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	shared, err := s.filterRepo.SelectSharedFilters(ctx)
	if err != nil {
		return nil, err
	}

	others := make([]models.IssueFilter, 0, len(shared))
	for _, filter := range shared {
		if !filter.OwnedBy(login) {
			others = append(others, filter)
		}
	}

	return others, nil
}

// FindFavoriteFilters returns the filters the acting user has starred.
func (s *FilterService) FindFavoriteFilters(ctx context.Context, session models.UserSession) ([]models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	return s.filterRepo.SelectFavoriteFiltersByUser(ctx, login)
}

// Save creates a filter owned by the acting user and stars it for them.
func (s *FilterService) Save(ctx context.Context, req *services.SaveFilterRequest, session models.UserSession) (*models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	if err := validateSaveRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}

	filter := &models.IssueFilter{
		Name:        req.Name,
		Description: req.Description,
		UserLogin:   login,
		Shared:      req.Shared,
		Data:        req.Data,
	}

	if err := s.validateFilter(ctx, filter); err != nil {
		return nil, err
	}

	return s.insertWithFavorite(ctx, filter, login)
}

// Update replaces the mutable fields of a filter. The request is diffed
// against the loaded record to decide which authorization checks and
// favorite cascades apply.
func (s *FilterService) Update(ctx context.Context, id int64, req *services.UpdateFilterRequest, session models.UserSession) (*models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	if err := validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}

	existing, err := s.findNonNull(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.verifyCanModifyFilter(ctx, existing, login); err != nil {
		return nil, err
	}

	updated := applyUpdate(existing, req)

	// Only the current owner may flip the shared flag, admin or not.
	if existing.Shared != updated.Shared && !existing.OwnedBy(login) {
		return nil, &domain.ForbiddenError{Message: "Only owner of a filter can change sharing"}
	}

	if existing.UserLogin != updated.UserLogin {
		if err := s.verifyCanChangeFilterOwnership(ctx, login); err != nil {
			return nil, err
		}
	}

	if err := s.validateFilter(ctx, updated); err != nil {
		return nil, err
	}

	if err := s.filterRepo.Update(ctx, updated); err != nil {
		return nil, err
	}

	if err := s.cleanupFavoritesOnUnshare(ctx, existing, updated); err != nil {
		return nil, err
	}

	s.logger.Info("filter updated",
		"id", updated.ID,
		"name", updated.Name,
		"owner", updated.UserLogin,
		"shared", updated.Shared,
		"acting_user", login,
	)

	return updated, nil
}

// UpdateFilterQuery re-serializes the query mapping into the filter's data
// string, under the same modify authorization as Update.
func (s *FilterService) UpdateFilterQuery(ctx context.Context, id int64, query map[string]interface{}, session models.UserSession) (*models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	existing, err := s.findNonNull(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.verifyCanModifyFilter(ctx, existing, login); err != nil {
		return nil, err
	}

	data, err := s.SerializeFilterQuery(query)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Data = data

	if err := s.filterRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("filter query updated", "id", updated.ID, "acting_user", login)

	return &updated, nil
}

// Delete removes a filter and every favorite link referencing it.
func (s *FilterService) Delete(ctx context.Context, id int64, session models.UserSession) error {
	login, err := loggedLogin(session)
	if err != nil {
		return err
	}

	existing, err := s.findNonNull(ctx, id)
	if err != nil {
		return err
	}

	// The read check runs first: a non-owner deleting a private filter is
	// told the filter cannot be read, not that it cannot be deleted.
	if err := verifyCanReadFilter(existing, login); err != nil {
		return err
	}
	if err := s.verifyCanModifyFilter(ctx, existing, login); err != nil {
		return err
	}

	if err := s.favoriteRepo.DeleteByFilterID(ctx, id); err != nil {
		return err
	}
	if err := s.filterRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("filter deleted", "id", id, "acting_user", login)

	return nil
}

// Copy creates a private copy of a readable filter, owned and starred by
// the acting user.
func (s *FilterService) Copy(ctx context.Context, sourceID int64, req *services.CopyFilterRequest, session models.UserSession) (*models.IssueFilter, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return nil, err
	}

	if err := validateCopyRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}

	source, err := s.Find(ctx, sourceID, session)
	if err != nil {
		return nil, err
	}

	filter := &models.IssueFilter{
		Name:        req.Name,
		Description: source.Description,
		UserLogin:   login,
		Shared:      false,
		Data:        source.Data,
	}

	if err := s.validateFilter(ctx, filter); err != nil {
		return nil, err
	}

	return s.insertWithFavorite(ctx, filter, login)
}

// ToggleFavorite flips the favorite link between the acting user and the
// filter. The filter must exist but need not be readable by the user.
func (s *FilterService) ToggleFavorite(ctx context.Context, id int64, session models.UserSession) (bool, error) {
	login, err := loggedLogin(session)
	if err != nil {
		return false, err
	}

	if _, err := s.findNonNull(ctx, id); err != nil {
		return false, err
	}

	favorites, err := s.favoriteRepo.SelectByFilterID(ctx, id)
	if err != nil {
		return false, err
	}

	for _, favorite := range favorites {
		if favorite.UserLogin == login {
			if err := s.favoriteRepo.Delete(ctx, favorite.ID); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	favorite := &models.FilterFavorite{UserLogin: login, FilterID: id}
	if err := s.favoriteRepo.Insert(ctx, favorite); err != nil {
		return false, err
	}

	return true, nil
}

// Execute runs an issue query through the search engine. The query already
// encodes any user scoping, so no authorization applies here.
func (s *FilterService) Execute(ctx context.Context, query *models.IssueQuery) (*models.IssueQueryResult, error) {
	return s.issueFinder.Find(ctx, query)
}

// SerializeFilterQuery serializes the recognized entries of a query mapping,
// silently dropping keys the issue query model does not know.
func (s *FilterService) SerializeFilterQuery(query map[string]interface{}) (string, error) {
	return s.serializer.Serialize(s.catalog.Sanitize(query))
}

// DeserializeFilterQuery recovers the query mapping from a filter's data string.
func (s *FilterService) DeserializeFilterQuery(filter *models.IssueFilter) (map[string]interface{}, error) {
	return s.serializer.Deserialize(filter.Data)
}

// CanShareFilter reports whether the acting user may own shared filters.
func (s *FilterService) CanShareFilter(ctx context.Context, session models.UserSession) (bool, error) {
	if !session.LoggedIn() {
		return false, nil
	}
	return s.hasSharingPermission(ctx, session.Login)
}

// loggedLogin returns the session login, or Unauthorized for an anonymous
// session. It is the single dispatch point every user-scoped operation
// passes through before touching persistence.
func loggedLogin(session models.UserSession) (string, error) {
	if !session.LoggedIn() {
		return "", &domain.UnauthorizedError{Message: "User is not logged in"}
	}
	return session.Login, nil
}

func (s *FilterService) findNonNull(ctx context.Context, id int64) (*models.IssueFilter, error) {
	filter, err := s.filterRepo.SelectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("Filter not found: %d", id)}
	}
	return filter, nil
}

func verifyCanReadFilter(filter *models.IssueFilter, login string) error {
	if !filter.Shared && !filter.OwnedBy(login) {
		return &domain.ForbiddenError{Message: "User is not authorized to read this filter"}
	}
	return nil
}

// verifyCanModifyFilter allows the owner always, and an admin when the
// filter is shared.
func (s *FilterService) verifyCanModifyFilter(ctx context.Context, filter *models.IssueFilter, login string) error {
	if filter.OwnedBy(login) {
		return nil
	}
	if filter.Shared {
		admin, err := s.hasAdminPermission(ctx, login)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return &domain.ForbiddenError{Message: "User is not authorized to modify this filter"}
}

func (s *FilterService) verifyCanChangeFilterOwnership(ctx context.Context, login string) error {
	admin, err := s.hasAdminPermission(ctx, login)
	if err != nil {
		return err
	}
	if !admin {
		return &domain.ForbiddenError{Message: "User is not authorized to change the owner of this filter"}
	}
	return nil
}

// validateFilter enforces the name-uniqueness invariant and, for a filter
// that will be shared, that its resulting owner holds sharing permission.
// The record under validation is excluded from the collision sets.
func (s *FilterService) validateFilter(ctx context.Context, filter *models.IssueFilter) error {
	ownerFilters, err := s.filterRepo.SelectByUser(ctx, filter.UserLogin)
	if err != nil {
		return err
	}
	if same := findFilterWithSameName(ownerFilters, filter.Name); same != nil && same.ID != filter.ID {
		return &domain.BadRequestError{Message: "Name already exists"}
	}

	if !filter.Shared {
		return nil
	}

	sharedFilters, err := s.filterRepo.SelectSharedFilters(ctx)
	if err != nil {
		return err
	}
	if same := findFilterWithSameName(sharedFilters, filter.Name); same != nil && same.ID != filter.ID {
		return &domain.BadRequestError{Message: "Other users already share filters with the same name"}
	}

	canShare, err := s.hasSharingPermission(ctx, filter.UserLogin)
	if err != nil {
		return err
	}
	if !canShare {
		return &domain.ForbiddenError{Message: "User cannot own this filter because of insufficient rights"}
	}

	return nil
}

func findFilterWithSameName(filters []models.IssueFilter, name string) *models.IssueFilter {
	for i := range filters {
		if filters[i].Name == name {
			return &filters[i]
		}
	}
	return nil
}

// applyUpdate builds the resulting record from the loaded snapshot and the
// request. An empty owner keeps the current one; data and creation time are
// never touched by a plain update.
func applyUpdate(existing *models.IssueFilter, req *services.UpdateFilterRequest) *models.IssueFilter {
	updated := &models.IssueFilter{
		ID:          existing.ID,
		Name:        req.Name,
		Description: req.Description,
		UserLogin:   req.Owner,
		Shared:      req.Shared,
		Data:        existing.Data,
		CreatedAt:   existing.CreatedAt,
	}
	if updated.UserLogin == "" {
		updated.UserLogin = existing.UserLogin
	}
	return updated
}

// cleanupFavoritesOnUnshare removes every favorite link held by users other
// than the resulting owner when a filter transitions from shared to private.
func (s *FilterService) cleanupFavoritesOnUnshare(ctx context.Context, before, after *models.IssueFilter) error {
	if !favoriteCascadeOnUpdate(before, after) {
		return nil
	}

	favorites, err := s.favoriteRepo.SelectByFilterID(ctx, after.ID)
	if err != nil {
		return err
	}

	for _, favorite := range favorites {
		if favorite.UserLogin == after.UserLogin {
			continue
		}
		if err := s.favoriteRepo.Delete(ctx, favorite.ID); err != nil {
			return err
		}
	}

	return nil
}

// favoriteCascadeOnUpdate is the sharing state-transition table: of the
// four (old shared, new shared) combinations, only shared-to-private purges
// other users' favorites. The owner comparison happens per link against the
// resulting owner, so an ownership transfer in the same update keeps the
// new owner's link.
func favoriteCascadeOnUpdate(before, after *models.IssueFilter) bool {
	return before.Shared && !after.Shared
}

func (s *FilterService) insertWithFavorite(ctx context.Context, filter *models.IssueFilter, login string) (*models.IssueFilter, error) {
	if err := s.filterRepo.Insert(ctx, filter); err != nil {
		return nil, err
	}

	favorite := &models.FilterFavorite{UserLogin: login, FilterID: filter.ID}
	if err := s.favoriteRepo.Insert(ctx, favorite); err != nil {
		return nil, err
	}

	s.logger.Info("filter created",
		"id", filter.ID,
		"name", filter.Name,
		"owner", filter.UserLogin,
		"shared", filter.Shared,
	)

	return filter, nil
}

func (s *FilterService) hasSharingPermission(ctx context.Context, login string) (bool, error) {
	perms, err := s.authRepo.SelectGlobalPermissions(ctx, login)
	if err != nil {
		return false, err
	}
	return perms.HasSharing(), nil
}

func (s *FilterService) hasAdminPermission(ctx context.Context, login string) (bool, error) {
	perms, err := s.authRepo.SelectGlobalPermissions(ctx, login)
	if err != nil {
		return false, err
	}
	return perms.HasAdmin(), nil
}

func validateSaveRequest(req *services.SaveFilterRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFilterNameLength),
		),
		validation.Field(&req.Description,
			validation.Length(0, config.MaxFilterDescriptionLength),
		),
	)
}

func validateUpdateRequest(req *services.UpdateFilterRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFilterNameLength),
		),
		validation.Field(&req.Description,
			validation.Length(0, config.MaxFilterDescriptionLength),
		),
	)
}

func validateCopyRequest(req *services.CopyFilterRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxFilterNameLength),
		),
	)
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"quarry/internal/domain"
	"quarry/internal/domain/models"
	"quarry/internal/domain/services"
	"quarry/internal/filterquery"

	"github.com/google/uuid"
)

// filterRepoMock is an in-memory FilterRepository recording every call.
type filterRepoMock struct {
	byID      map[int64]*models.IssueFilter
	byUser    map[string][]models.IssueFilter
	shared    []models.IssueFilter
	favorites map[string][]models.IssueFilter

	inserted   []*models.IssueFilter
	updated    []*models.IssueFilter
	deletedIDs []int64
	calls      int
}

func newFilterRepoMock() *filterRepoMock {
	return &filterRepoMock{
		byID:      map[int64]*models.IssueFilter{},
		byUser:    map[string][]models.IssueFilter{},
		favorites: map[string][]models.IssueFilter{},
	}
}

func (m *filterRepoMock) SelectByID(_ context.Context, id int64) (*models.IssueFilter, error) {
	m.calls++
	filter, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *filter
	return &copied, nil
}

func (m *filterRepoMock) SelectByUser(_ context.Context, login string) ([]models.IssueFilter, error) {
	m.calls++
	return m.byUser[login], nil
}

func (m *filterRepoMock) SelectSharedFilters(_ context.Context) ([]models.IssueFilter, error) {
	m.calls++
	return m.shared, nil
}

func (m *filterRepoMock) SelectFavoriteFiltersByUser(_ context.Context, login string) ([]models.IssueFilter, error) {
	m.calls++
	return m.favorites[login], nil
}

func (m *filterRepoMock) Insert(_ context.Context, filter *models.IssueFilter) error {
	m.calls++
	if filter.ID == 0 {
		filter.ID = int64(100 + len(m.inserted))
	}
	m.inserted = append(m.inserted, filter)
	return nil
}

func (m *filterRepoMock) Update(_ context.Context, filter *models.IssueFilter) error {
	m.calls++
	m.updated = append(m.updated, filter)
	return nil
}

func (m *filterRepoMock) Delete(_ context.Context, id int64) error {
	m.calls++
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

// favoriteRepoMock is an in-memory FavoriteRepository recording every call.
type favoriteRepoMock struct {
	byFilter map[int64][]models.FilterFavorite

	inserted         []*models.FilterFavorite
	deletedIDs       []int64
	deletedFilterIDs []int64
	calls            int
}

func newFavoriteRepoMock() *favoriteRepoMock {
	return &favoriteRepoMock{byFilter: map[int64][]models.FilterFavorite{}}
}

func (m *favoriteRepoMock) SelectByFilterID(_ context.Context, filterID int64) ([]models.FilterFavorite, error) {
	m.calls++
	return m.byFilter[filterID], nil
}

func (m *favoriteRepoMock) Insert(_ context.Context, favorite *models.FilterFavorite) error {
	m.calls++
	m.inserted = append(m.inserted, favorite)
	return nil
}

func (m *favoriteRepoMock) Delete(_ context.Context, id int64) error {
	m.calls++
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

func (m *favoriteRepoMock) DeleteByFilterID(_ context.Context, filterID int64) error {
	m.calls++
	m.deletedFilterIDs = append(m.deletedFilterIDs, filterID)
	return nil
}

// authRepoMock serves canned permission sets per login.
type authRepoMock struct {
	perms map[string]models.PermissionSet
	calls int
}

func newAuthRepoMock() *authRepoMock {
	return &authRepoMock{perms: map[string]models.PermissionSet{}}
}

func (m *authRepoMock) SelectGlobalPermissions(_ context.Context, login string) (models.PermissionSet, error) {
	m.calls++
	return m.perms[login], nil
}

func (m *authRepoMock) grant(login string, perms ...models.GlobalPermission) {
	m.perms[login] = models.NewPermissionSet(perms...)
}

// issueFinderMock records the query it was asked to execute.
type issueFinderMock struct {
	gotQuery *models.IssueQuery
	result   *models.IssueQueryResult
}

func (m *issueFinderMock) Find(_ context.Context, query *models.IssueQuery) (*models.IssueQueryResult, error) {
	m.gotQuery = query
	return m.result, nil
}

// serializerMock records inputs and serves canned outputs.
type serializerMock struct {
	serialized   []map[string]interface{}
	deserialized []string

	serializeResult   string
	deserializeResult map[string]interface{}
}

func (m *serializerMock) Serialize(query map[string]interface{}) (string, error) {
	m.serialized = append(m.serialized, query)
	return m.serializeResult, nil
}

func (m *serializerMock) Deserialize(data string) (map[string]interface{}, error) {
	m.deserialized = append(m.deserialized, data)
	return m.deserializeResult, nil
}

type fixture struct {
	filters    *filterRepoMock
	favorites  *favoriteRepoMock
	auth       *authRepoMock
	finder     *issueFinderMock
	serializer *serializerMock
	service    services.FilterService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog, err := filterquery.LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	f := &fixture{
		filters:    newFilterRepoMock(),
		favorites:  newFavoriteRepoMock(),
		auth:       newAuthRepoMock(),
		finder:     &issueFinderMock{},
		serializer: &serializerMock{},
	}
	f.service = NewFilterService(
		f.filters,
		f.favorites,
		f.auth,
		f.finder,
		f.serializer,
		catalog,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

// persistenceCalls counts every call that reached a storage collaborator.
func (f *fixture) persistenceCalls() int {
	return f.filters.calls + f.favorites.calls + f.auth.calls
}

func johnSession() models.UserSession {
	return models.NewUserSession("john", uuid.New())
}

func filterOwnedBy(id int64, name, login string) *models.IssueFilter {
	return &models.IssueFilter{ID: id, Name: name, UserLogin: login}
}

func sharedFilterOwnedBy(id int64, name, login string) *models.IssueFilter {
	return &models.IssueFilter{ID: id, Name: name, UserLogin: login, Shared: true}
}

func wantForbidden(t *testing.T, err error, message string) {
	t.Helper()
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if err.Error() != message {
		t.Errorf("message = %q, want %q", err.Error(), message)
	}
}

func wantUnauthorized(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err.Error() != "User is not logged in" {
		t.Errorf("message = %q, want %q", err.Error(), "User is not logged in")
	}
}

func wantNotFound(t *testing.T, err error, message string) {
	t.Helper()
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err.Error() != message {
		t.Errorf("message = %q, want %q", err.Error(), message)
	}
}

func wantBadRequest(t *testing.T, err error, message string) {
	t.Helper()
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("expected BadRequest, got %v", err)
	}
	if err.Error() != message {
		t.Errorf("message = %q, want %q", err.Error(), message)
	}
}

func TestFindByID(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

	filter, err := f.service.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.ID != 1 {
		t.Errorf("id = %d, want 1", filter.ID)
	}
}

func TestFind(t *testing.T) {
	t.Run("own filter", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

		filter, err := f.service.Find(context.Background(), 1, johnSession())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filter.ID != 1 {
			t.Errorf("id = %d, want 1", filter.ID)
		}
	})

	t.Run("shared filter of another user", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = sharedFilterOwnedBy(1, "My Issues", "arthur")

		filter, err := f.service.Find(context.Background(), 1, johnSession())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filter.ID != 1 {
			t.Errorf("id = %d, want 1", filter.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Find(context.Background(), 1, johnSession())
		wantNotFound(t, err, "Filter not found: 1")
	})

	t.Run("not logged in", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

		_, err := f.service.Find(context.Background(), 1, models.AnonymousSession())
		wantUnauthorized(t, err)
		if f.persistenceCalls() != 0 {
			t.Errorf("persistence calls = %d, want 0", f.persistenceCalls())
		}
	})

	t.Run("private filter of another user", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = filterOwnedBy(1, "My Issues", "eric")

		_, err := f.service.Find(context.Background(), 1, johnSession())
		wantForbidden(t, err, "User is not authorized to read this filter")
	})
}

func TestFindByUser(t *testing.T) {
	f := newFixture(t)
	f.filters.byUser["john"] = []models.IssueFilter{*filterOwnedBy(1, "My Issues", "john")}

	filters, err := f.service.FindByUser(context.Background(), johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 || filters[0].ID != 1 {
		t.Errorf("filters = %+v, want the single filter 1", filters)
	}
}

func TestFindByUser_NotLoggedIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.FindByUser(context.Background(), models.AnonymousSession())
	wantUnauthorized(t, err)
	if f.persistenceCalls() != 0 {
		t.Errorf("persistence calls = %d, want 0", f.persistenceCalls())
	}
}

func TestFindSharedWithoutUserFilters(t *testing.T) {
	f := newFixture(t)
	f.filters.shared = []models.IssueFilter{
		*sharedFilterOwnedBy(1, "My Issue", "john"),
		*sharedFilterOwnedBy(2, "Project Issues", "arthur"),
	}

	filters, err := f.service.FindSharedWithoutUserFilters(context.Background(), johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 {
		t.Fatalf("got %d filters, want 1", len(filters))
	}
	if filters[0].Name != "Project Issues" {
		t.Errorf("name = %q, want %q", filters[0].Name, "Project Issues")
	}
}

func TestFindFavoriteFilters(t *testing.T) {
	f := newFixture(t)
	f.filters.favorites["john"] = []models.IssueFilter{*filterOwnedBy(1, "My Issue", "john")}

	filters, err := f.service.FindFavoriteFilters(context.Background(), johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 {
		t.Errorf("got %d filters, want 1", len(filters))
	}
}

func TestFindFavoriteFilters_NotLoggedIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.FindFavoriteFilters(context.Background(), models.AnonymousSession())
	wantUnauthorized(t, err)
	if f.persistenceCalls() != 0 {
		t.Errorf("persistence calls = %d, want 0", f.persistenceCalls())
	}
}

func TestSave(t *testing.T) {
	f := newFixture(t)

	filter, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Name != "My Issue" {
		t.Errorf("name = %q, want %q", filter.Name, "My Issue")
	}
	if filter.UserLogin != "john" {
		t.Errorf("owner = %q, want %q", filter.UserLogin, "john")
	}
	if len(f.filters.inserted) != 1 {
		t.Fatalf("inserts = %d, want 1", len(f.filters.inserted))
	}
}

func TestSave_AddsFavoriteForCreator(t *testing.T) {
	f := newFixture(t)

	filter, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.favorites.inserted) != 1 {
		t.Fatalf("favorite inserts = %d, want 1", len(f.favorites.inserted))
	}
	favorite := f.favorites.inserted[0]
	if favorite.UserLogin != "john" || favorite.FilterID != filter.ID {
		t.Errorf("favorite = %+v, want john/%d", favorite, filter.ID)
	}
}

func TestSave_NotLoggedIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue"}, models.AnonymousSession())
	wantUnauthorized(t, err)
	if f.persistenceCalls() != 0 {
		t.Errorf("persistence calls = %d, want 0", f.persistenceCalls())
	}
}

func TestSave_NameAlreadyUsed(t *testing.T) {
	f := newFixture(t)
	f.filters.byUser["john"] = []models.IssueFilter{*filterOwnedBy(1, "My Issue", "john")}

	_, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue"}, johnSession())
	wantBadRequest(t, err, "Name already exists")
	if len(f.filters.inserted) != 0 {
		t.Errorf("inserts = %d, want 0", len(f.filters.inserted))
	}
}

func TestSave_OwnNameCollisionRegardlessOfSharedFlag(t *testing.T) {
	// The owner-scope collision fires even when the new filter is shared,
	// before the shared-scope check is reached.
	f := newFixture(t)
	f.filters.byUser["john"] = []models.IssueFilter{*filterOwnedBy(1, "My Issue", "john")}

	_, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue", Shared: true}, johnSession())
	wantBadRequest(t, err, "Name already exists")
}

func TestSave_SharedNameAlreadyUsedByOtherUser(t *testing.T) {
	f := newFixture(t)
	f.filters.shared = []models.IssueFilter{*sharedFilterOwnedBy(1, "My Issue", "henry")}

	_, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue", Shared: true}, johnSession())
	wantBadRequest(t, err, "Other users already share filters with the same name")
	if len(f.filters.inserted) != 0 {
		t.Errorf("inserts = %d, want 0", len(f.filters.inserted))
	}
}

func TestSave_SharedRequiresSharingPermission(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue", Shared: true}, johnSession())
	wantForbidden(t, err, "User cannot own this filter because of insufficient rights")

	f.auth.grant("john", models.GlobalPermissionSharing)
	filter, err := f.service.Save(context.Background(), &services.SaveFilterRequest{Name: "My Issue", Shared: true}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.Shared {
		t.Error("filter should be shared")
	}
}

func TestSave_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  *services.SaveFilterRequest
	}{
		{"blank name", &services.SaveFilterRequest{Name: ""}},
		{"name too long", &services.SaveFilterRequest{Name: strings.Repeat("x", 101)}},
		{"description too long", &services.SaveFilterRequest{Name: "My Issue", Description: strings.Repeat("x", 4001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.service.Save(context.Background(), tt.req, johnSession())
			if !errors.Is(err, domain.ErrBadRequest) {
				t.Fatalf("expected BadRequest, got %v", err)
			}
			if len(f.filters.inserted) != 0 {
				t.Errorf("inserts = %d, want 0", len(f.filters.inserted))
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Old Filter", "john")

	filter, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My New Filter", Owner: "john"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Name != "My New Filter" {
		t.Errorf("name = %q, want %q", filter.Name, "My New Filter")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
}

func TestUpdate_ShareWithPermission(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionSharing)
	f.filters.byID[1] = filterOwnedBy(1, "My Filter", "john")

	filter, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My Filter", Shared: true, Owner: "john"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.Shared {
		t.Error("filter should be shared")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
}

func TestUpdate_ShareWithoutPermission(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Filter", "john")

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My Filter", Shared: true, Owner: "john"}, johnSession())
	wantForbidden(t, err, "User cannot own this filter because of insufficient rights")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdate_SharingChangeByNonOwner(t *testing.T) {
	// John is admin and tries to unshare arthur's filter.
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionAdmin)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "Arthur Filter", "arthur")

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "Arthur Filter", Shared: false, Owner: "john"}, johnSession())
	wantForbidden(t, err, "Only owner of a filter can change sharing")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdate_WithoutChangingAnything(t *testing.T) {
	f := newFixture(t)
	existing := filterOwnedBy(1, "My Filter", "john")
	f.filters.byID[1] = existing
	f.filters.byUser["john"] = []models.IssueFilter{*existing}

	filter, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My Filter", Owner: "john"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Name != "My Filter" {
		t.Errorf("name = %q, want %q", filter.Name, "My Filter")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
}

func TestUpdate_UnshareRemovesOtherFavorites(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My Old Filter", "john")
	f.favorites.byFilter[1] = []models.FilterFavorite{
		{ID: 10, UserLogin: "john", FilterID: 1},
		{ID: 11, UserLogin: "arthur", FilterID: 1},
	}

	filter, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My New Filter", Shared: false, Owner: "john"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Name != "My New Filter" {
		t.Errorf("name = %q, want %q", filter.Name, "My New Filter")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
	if len(f.favorites.deletedIDs) != 1 || f.favorites.deletedIDs[0] != 11 {
		t.Errorf("deleted favorite ids = %v, want [11]", f.favorites.deletedIDs)
	}
}

func TestUpdate_OtherSharedFilterAsAdmin(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionAdmin)
	f.auth.grant("arthur", models.GlobalPermissionSharing)
	existing := sharedFilterOwnedBy(1, "My Old Filter", "arthur")
	existing.Description = "Old description"
	f.filters.byID[1] = existing

	filter, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My New Filter", Description: "New description", Shared: true, Owner: "arthur"},
		johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Name != "My New Filter" {
		t.Errorf("name = %q, want %q", filter.Name, "My New Filter")
	}
	if filter.Description != "New description" {
		t.Errorf("description = %q, want %q", filter.Description, "New description")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
}

func TestUpdate_OtherSharedFilterAsAdminOwnerLacksSharingPermission(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionAdmin)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My Old Filter", "arthur")

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My New Filter", Shared: true, Owner: "arthur"}, johnSession())
	wantForbidden(t, err, "User cannot own this filter because of insufficient rights")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My New Filter"}, johnSession())
	wantNotFound(t, err, "Filter not found: 1")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdate_SharedFilterOfOtherUserWithoutAdmin(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionUser)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My Old Filter", "arthur")

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My New Filter"}, johnSession())
	wantForbidden(t, err, "User is not authorized to modify this filter")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdate_NameAlreadyUsed(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Old Filter", "john")
	f.filters.byUser["john"] = []models.IssueFilter{*filterOwnedBy(2, "My Issue", "john")}

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My Issue", Owner: "john"}, johnSession())
	wantBadRequest(t, err, "Name already exists")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdate_OwnershipTransferByAdmin(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionAdmin)
	f.auth.grant("new.owner", models.GlobalPermissionSharing)
	existing := sharedFilterOwnedBy(1, "My filter", "former.owner")
	f.filters.byID[1] = existing
	f.filters.shared = []models.IssueFilter{*existing}

	filter, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My filter", Shared: true, Owner: "new.owner"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.UserLogin != "new.owner" {
		t.Errorf("owner = %q, want %q", filter.UserLogin, "new.owner")
	}
	if !filter.Shared {
		t.Error("filter should stay shared")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
	persisted := f.filters.updated[0]
	if persisted.UserLogin != "new.owner" || !persisted.Shared || persisted.Name != "My filter" {
		t.Errorf("persisted = %+v, want owner new.owner, shared, name preserved", persisted)
	}
}

func TestUpdate_OwnershipTransferDeniedWhenNotAdmin(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("dave.loper", models.GlobalPermissionScan)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My filter", "dave.loper")

	_, err := f.service.Update(context.Background(), 1,
		&services.UpdateFilterRequest{Name: "My filter", Shared: true, Owner: "new.owner"},
		models.NewUserSession("dave.loper", uuid.New()))
	wantForbidden(t, err, "User is not authorized to change the owner of this filter")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestUpdateFilterQuery(t *testing.T) {
	f := newFixture(t)
	f.serializer.serializeResult = "componentRoots=struts"
	f.filters.byID[1] = filterOwnedBy(1, "My Old Filter", "john")

	filter, err := f.service.UpdateFilterQuery(context.Background(), 1,
		map[string]interface{}{"componentRoots": "struts"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Data != "componentRoots=struts" {
		t.Errorf("data = %q, want %q", filter.Data, "componentRoots=struts")
	}
	if len(f.filters.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(f.filters.updated))
	}
}

func TestUpdateFilterQuery_NotOwner(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Old Filter", "arthur")

	_, err := f.service.UpdateFilterQuery(context.Background(), 1,
		map[string]interface{}{"componentRoots": "struts"}, johnSession())
	wantForbidden(t, err, "User is not authorized to modify this filter")
	if len(f.filters.updated) != 0 {
		t.Errorf("updates = %d, want 0", len(f.filters.updated))
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

	if err := f.service.Delete(context.Background(), 1, johnSession()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.filters.deletedIDs) != 1 || f.filters.deletedIDs[0] != 1 {
		t.Errorf("deleted ids = %v, want [1]", f.filters.deletedIDs)
	}
}

func TestDelete_RemovesFavoriteLinks(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")
	f.favorites.byFilter[1] = []models.FilterFavorite{{ID: 10, UserLogin: "john", FilterID: 1}}

	if err := f.service.Delete(context.Background(), 1, johnSession()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.favorites.deletedFilterIDs) != 1 || f.favorites.deletedFilterIDs[0] != 1 {
		t.Errorf("favorite cascade = %v, want [1]", f.favorites.deletedFilterIDs)
	}
	if len(f.filters.deletedIDs) != 1 || f.filters.deletedIDs[0] != 1 {
		t.Errorf("deleted ids = %v, want [1]", f.filters.deletedIDs)
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.service.Delete(context.Background(), 1, johnSession())
	wantNotFound(t, err, "Filter not found: 1")
	if len(f.filters.deletedIDs) != 0 {
		t.Errorf("deleted ids = %v, want none", f.filters.deletedIDs)
	}
}

func TestDelete_SharedFilterAsAdmin(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionAdmin)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My Issues", "arthur")

	if err := f.service.Delete(context.Background(), 1, johnSession()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.filters.deletedIDs) != 1 {
		t.Errorf("deleted ids = %v, want [1]", f.filters.deletedIDs)
	}
}

func TestDelete_PrivateFilterAsAdmin(t *testing.T) {
	// Even an admin cannot delete a private filter of someone else; the
	// failure surfaces as a read denial.
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionAdmin)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "arthur")

	err := f.service.Delete(context.Background(), 1, johnSession())
	wantForbidden(t, err, "User is not authorized to read this filter")
	if len(f.filters.deletedIDs) != 0 {
		t.Errorf("deleted ids = %v, want none", f.filters.deletedIDs)
	}
}

func TestDelete_SharedFilterWithoutAdmin(t *testing.T) {
	f := newFixture(t)
	f.auth.grant("john", models.GlobalPermissionUser)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My Issues", "arthur")

	err := f.service.Delete(context.Background(), 1, johnSession())
	wantForbidden(t, err, "User is not authorized to modify this filter")
	if len(f.filters.deletedIDs) != 0 {
		t.Errorf("deleted ids = %v, want none", f.filters.deletedIDs)
	}
}

func TestDelete_NotLoggedIn(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

	err := f.service.Delete(context.Background(), 1, models.AnonymousSession())
	wantUnauthorized(t, err)
	if f.persistenceCalls() != 0 {
		t.Errorf("persistence calls = %d, want 0", f.persistenceCalls())
	}
}

func TestCopy(t *testing.T) {
	f := newFixture(t)
	source := filterOwnedBy(1, "My Issues", "john")
	source.Data = "componentRoots=struts"
	source.Description = "Everything in struts"
	f.filters.byID[1] = source

	filter, err := f.service.Copy(context.Background(), 1,
		&services.CopyFilterRequest{Name: "Copy Of My Issue"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Name != "Copy Of My Issue" {
		t.Errorf("name = %q, want %q", filter.Name, "Copy Of My Issue")
	}
	if filter.UserLogin != "john" {
		t.Errorf("owner = %q, want %q", filter.UserLogin, "john")
	}
	if filter.Data != "componentRoots=struts" {
		t.Errorf("data = %q, want source data", filter.Data)
	}
	if filter.Description != "Everything in struts" {
		t.Errorf("description = %q, want source description", filter.Description)
	}
	if len(f.filters.inserted) != 1 {
		t.Fatalf("inserts = %d, want 1", len(f.filters.inserted))
	}
}

func TestCopy_SharedSourceBecomesPrivate(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = sharedFilterOwnedBy(1, "My Issues", "arthur")

	filter, err := f.service.Copy(context.Background(), 1,
		&services.CopyFilterRequest{Name: "Copy Of My Issue"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Shared {
		t.Error("copy must never be shared")
	}
	if filter.UserLogin != "john" {
		t.Errorf("owner = %q, want %q", filter.UserLogin, "john")
	}
}

func TestCopy_AddsFavoriteForCopier(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

	filter, err := f.service.Copy(context.Background(), 1,
		&services.CopyFilterRequest{Name: "Copy Of My Issue"}, johnSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.favorites.inserted) != 1 {
		t.Fatalf("favorite inserts = %d, want 1", len(f.favorites.inserted))
	}
	if f.favorites.inserted[0].FilterID != filter.ID {
		t.Errorf("favorite filter id = %d, want %d", f.favorites.inserted[0].FilterID, filter.ID)
	}
}

func TestCopy_UnreadableSource(t *testing.T) {
	f := newFixture(t)
	f.filters.byID[1] = filterOwnedBy(1, "My Issues", "eric")

	_, err := f.service.Copy(context.Background(), 1,
		&services.CopyFilterRequest{Name: "Copy Of My Issue"}, johnSession())
	wantForbidden(t, err, "User is not authorized to read this filter")
	if len(f.filters.inserted) != 0 {
		t.Errorf("inserts = %d, want 0", len(f.filters.inserted))
	}
}

func TestToggleFavorite(t *testing.T) {
	t.Run("adds a link when absent", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

		favorited, err := f.service.ToggleFavorite(context.Background(), 1, johnSession())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !favorited {
			t.Error("expected favorited = true")
		}
		if len(f.favorites.inserted) != 1 {
			t.Fatalf("favorite inserts = %d, want 1", len(f.favorites.inserted))
		}
		favorite := f.favorites.inserted[0]
		if favorite.UserLogin != "john" || favorite.FilterID != 1 {
			t.Errorf("favorite = %+v, want john/1", favorite)
		}
	})

	t.Run("works on another user's shared filter", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = sharedFilterOwnedBy(1, "My Issues", "arthur")

		favorited, err := f.service.ToggleFavorite(context.Background(), 1, johnSession())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !favorited {
			t.Error("expected favorited = true")
		}
	})

	t.Run("removes the link when present", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")
		f.favorites.byFilter[1] = []models.FilterFavorite{{ID: 10, UserLogin: "john", FilterID: 1}}

		favorited, err := f.service.ToggleFavorite(context.Background(), 1, johnSession())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if favorited {
			t.Error("expected favorited = false")
		}
		if len(f.favorites.deletedIDs) != 1 || f.favorites.deletedIDs[0] != 10 {
			t.Errorf("deleted favorite ids = %v, want [10]", f.favorites.deletedIDs)
		}
	})

	t.Run("filter not found", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.ToggleFavorite(context.Background(), 1, johnSession())
		wantNotFound(t, err, "Filter not found: 1")
		if len(f.favorites.deletedIDs) != 0 || len(f.favorites.inserted) != 0 {
			t.Error("no favorite writes expected")
		}
	})

	t.Run("not logged in", func(t *testing.T) {
		f := newFixture(t)
		f.filters.byID[1] = filterOwnedBy(1, "My Issues", "john")

		_, err := f.service.ToggleFavorite(context.Background(), 1, models.AnonymousSession())
		wantUnauthorized(t, err)
		if f.persistenceCalls() != 0 {
			t.Errorf("persistence calls = %d, want 0", f.persistenceCalls())
		}
	})
}

func TestExecute(t *testing.T) {
	f := newFixture(t)
	f.finder.result = &models.IssueQueryResult{Total: 3}
	query := &models.IssueQuery{Statuses: []string{"OPEN"}}

	result, err := f.service.Execute(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.finder.gotQuery != query {
		t.Error("query was not passed through to the finder")
	}
	if result.Total != 3 {
		t.Errorf("total = %d, want 3", result.Total)
	}
}

func TestSerializeFilterQuery_DropsUnknownKeys(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SerializeFilterQuery(map[string]interface{}{
		"componentRoots": "struts",
		"statuses":       "OPEN",
		"unknown":        "JOHN",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.serializer.serialized) != 1 {
		t.Fatalf("serializer calls = %d, want 1", len(f.serializer.serialized))
	}
	got := f.serializer.serialized[0]
	if len(got) != 2 || got["componentRoots"] != "struts" || got["statuses"] != "OPEN" {
		t.Errorf("serializer received %v, want only componentRoots and statuses", got)
	}
}

func TestDeserializeFilterQuery(t *testing.T) {
	f := newFixture(t)
	filter := &models.IssueFilter{Data: "componentRoots=struts"}

	if _, err := f.service.DeserializeFilterQuery(filter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.serializer.deserialized) != 1 || f.serializer.deserialized[0] != "componentRoots=struts" {
		t.Errorf("serializer received %v, want the raw data string", f.serializer.deserialized)
	}
}

func TestCanShareFilter(t *testing.T) {
	tests := []struct {
		name    string
		session models.UserSession
		perms   []models.GlobalPermission
		want    bool
	}{
		{"logged in with sharing permission", johnSession(), []models.GlobalPermission{models.GlobalPermissionSharing}, true},
		{"anonymous", models.AnonymousSession(), []models.GlobalPermission{models.GlobalPermissionSharing}, false},
		{"logged in without sharing permission", johnSession(), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.grant("john", tt.perms...)

			got, err := f.service.CanShareFilter(context.Background(), tt.session)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanShareFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFavoriteCascadeOnUpdate(t *testing.T) {
	tests := []struct {
		name         string
		beforeShared bool
		afterShared  bool
		want         bool
	}{
		{"stays private", false, false, false},
		{"becomes shared", false, true, false},
		{"stays shared", true, true, false},
		{"becomes private", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := &models.IssueFilter{ID: 1, Shared: tt.beforeShared, UserLogin: "john"}
			after := &models.IssueFilter{ID: 1, Shared: tt.afterShared, UserLogin: "john"}
			if got := favoriteCascadeOnUpdate(before, after); got != tt.want {
				t.Errorf("favoriteCascadeOnUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}

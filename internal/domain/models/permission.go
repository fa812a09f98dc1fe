package models

// GlobalPermission is a global permission token that can be granted to a
// login, independently of any project.
type GlobalPermission string

const (
	// GlobalPermissionSharing allows a user to own and maintain shared filters.
	GlobalPermissionSharing GlobalPermission = "shareFilter"

	// GlobalPermissionAdmin allows a user to act on filters owned by others.
	GlobalPermissionAdmin GlobalPermission = "admin"

	// GlobalPermissionUser is the baseline permission of a regular user.
	GlobalPermissionUser GlobalPermission = "user"

	// GlobalPermissionScan allows running analyses; it grants no filter rights.
	GlobalPermissionScan GlobalPermission = "scan"
)

// PermissionSet is the set of global permissions held by a login.
type PermissionSet map[GlobalPermission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...GlobalPermission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the given permission.
func (s PermissionSet) Has(p GlobalPermission) bool {
	_, ok := s[p]
	return ok
}

// HasSharing reports whether the holder may own or maintain shared filters.
func (s PermissionSet) HasSharing() bool { return s.Has(GlobalPermissionSharing) }

// HasAdmin reports whether the holder may act on behalf of other owners.
func (s PermissionSet) HasAdmin() bool { return s.Has(GlobalPermissionAdmin) }

package models

import "time"

// IssueFilter is a named, persisted issue search definition. A filter is
// private to its owner unless the shared flag is set, in which case it is
// visible and usable by any authenticated user.
type IssueFilter struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UserLogin   string    `json:"user"`
	Shared      bool      `json:"shared"`
	Data        string    `json:"data,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether the filter belongs to the given login.
func (f *IssueFilter) OwnedBy(login string) bool {
	return f.UserLogin == login
}

// FilterFavorite marks that a login has starred a filter.
type FilterFavorite struct {
	ID        int64  `json:"id"`
	UserLogin string `json:"user"`
	FilterID  int64  `json:"filter_id"`
}

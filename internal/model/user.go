package model

// User is the local profile.
type User struct {
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// DefaultUser returns the profile used before the user sets one.
func DefaultUser() User {
	return User{Name: DefaultUserName}
}

// Merge overlays the non-empty fields of patch onto u.
func (u User) Merge(patch User) User {
	if patch.Name != "" {
		u.Name = patch.Name
	}
	if patch.Logo != "" {
		u.Logo = patch.Logo
	}
	return u
}

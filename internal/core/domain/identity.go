package domain

import "time"

// User mirrors the persisted representation in the users table.
// Every user carries exactly one role; permissions are resolved
// through that role at request time.
type User struct {
	ID           string
	Email        string
	Name         string
	Age          *int
	PasswordHash string
	RoleID       string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Deactivate flips the account inactive. Returns true when the state changed.
func (u *User) Deactivate() bool {
	if !u.IsActive {
		return false
	}
	u.IsActive = false
	return true
}

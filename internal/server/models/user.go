package models

import "time"

// User is an account that owns files. Removing a user cascades to its files
// and their share links at the database level.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
	IsActive     bool
}

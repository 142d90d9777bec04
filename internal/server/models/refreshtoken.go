package models

import "time"

// RefreshToken is a server-stored token that lets a client obtain a new
// access token; it is rotated on every use.
type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}

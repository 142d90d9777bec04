package models

import "time"

// ShareLink is the capability to download one file without authentication.
// At most one link exists per file; saving a new configuration rotates the
// token and overwrites the policy in place.
//
// Password is stored and compared as the exact string the owner configured.
// That matches the system this replaces; it is a known security gap, not an
// accident.
type ShareLink struct {
	ID            string
	FileID        string
	Token         string
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	Password      *string
	DownloadLimit int64
	DownloadCount int64
}

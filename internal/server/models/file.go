package models

import "time"

// File is the metadata record for one stored upload. Filename is display
// only; StoragePath is the unique, immutable handle into the blob store.
//
// The deleted state is carried by DeletedAt alone: nil means active,
// non-nil means soft-deleted at that instant. The database keeps a separate
// is_deleted flag for indexing, but every write sets both columns in a
// single statement so they cannot drift.
type File struct {
	ID          string
	OwnerID     string
	Filename    string
	StoragePath string
	Size        int64
	UploadedAt  time.Time
	DeletedAt   *time.Time
}

// Deleted reports whether the file is in the trash.
func (f *File) Deleted() bool {
	return f.DeletedAt != nil
}

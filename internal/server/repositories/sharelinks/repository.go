// Package sharelinks provides persistence for share links: the single
// per-file capability rows that unauthenticated downloads are gated on.
package sharelinks

import (
	"context"

	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

// Repository describes the storage operations needed for share links.
type Repository interface {
	// Upsert creates the link for link.FileID or overwrites its policy and
	// token in place. download_count is never touched by an upsert.
	Upsert(ctx context.Context, link *models.ShareLink) (*models.ShareLink, error)

	// GetByToken returns the link carrying the given token, or
	// common.ErrorNotFound.
	GetByToken(ctx context.Context, token string) (*models.ShareLink, error)

	// GetByFileID returns the file's link, or common.ErrorNotFound when the
	// file has never been shared.
	GetByFileID(ctx context.Context, fileID string) (*models.ShareLink, error)

	// ConsumeSlot atomically claims one download slot on the link. It is the
	// compare-and-increment behind the download limit: when the limit is
	// exhausted no row matches and common.ErrDownloadLimitExceeded comes
	// back; otherwise the count after the increment is returned.
	ConsumeSlot(ctx context.Context, token string) (int64, error)
}

// Package files provides persistence for file metadata, including the
// soft-delete bookkeeping owner-scoped operations rely on.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

// Repository describes the storage operations needed for file metadata.
//
// All owner-scoped methods treat "absent" and "owned by someone else" the
// same way and return common.ErrNotFoundOrForbidden, so existence never
// leaks across accounts.
type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetActiveOwned(ctx context.Context, id, ownerID string) (*models.File, error)
	GetDeletedOwned(ctx context.Context, id, ownerID string) (*models.File, error)
	ListActive(ctx context.Context, ownerID, search string, limit, offset int) ([]*models.File, error)
	CountActive(ctx context.Context, ownerID, search string) (int64, error)
	ListDeleted(ctx context.Context, ownerID string) ([]*models.File, error)
	SoftDelete(ctx context.Context, id, ownerID string, at time.Time) error
	Restore(ctx context.Context, id, ownerID string) error
	Delete(ctx context.Context, id, ownerID string) error
	SelectExpiredTrash(ctx context.Context, cutoff time.Time) ([]*models.File, error)
}

// Package refreshtokens persists the opaque refresh tokens backing session
// renewal.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find looks up a refresh token by its opaque token string, returning
	// common.ErrorNotFound when it is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error
}

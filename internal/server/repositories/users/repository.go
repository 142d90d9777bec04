// Package users provides persistence for user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filescloud/internal/server/models"
)

// Repository describes the storage operations needed for user accounts.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByLogin(ctx context.Context, userName string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

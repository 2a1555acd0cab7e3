package api

import (
	"context"

	"homelink/internal/models"
)

// UserLookup loads stored accounts
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Package refreshtokens declares the server-side repository contract for
// refresh-token records and ships PostgreSQL, Redis and in-memory
// implementations of it.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// Repository persists refresh-token records. Records are never deleted.
//
// Update and Rotate only succeed while the stored record is still
// unrevoked; otherwise they fail with common.ErrConflict and leave the store
// untouched. Lookups of unknown tokens return common.ErrorNotFound.
type Repository interface {
	// Insert stores a new record. A duplicate token is common.ErrConflict.
	Insert(ctx context.Context, t *models.RefreshToken) error

	// FindByToken returns the record for token.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindByUser returns every record of userID, newest first.
	FindByUser(ctx context.Context, userID string) ([]models.RefreshToken, error)

	// Update writes the revocation fields of t.
	Update(ctx context.Context, t *models.RefreshToken) error

	// Rotate writes the revocation fields of old and inserts next as a
	// single unit of work.
	Rotate(ctx context.Context, old, next *models.RefreshToken) error
}

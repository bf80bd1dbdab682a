package ports

import (
	"context"

	"github.com/bft-labs/pryvlink/internal/domain"
)

// CursorRepository handles persistence of the incremental sync cursor.
type CursorRepository interface {
	// Load retrieves the last saved cursor.
	// Returns an empty cursor and nil error if none exists.
	Load(ctx context.Context) (domain.Cursor, error)

	// Save persists the cursor atomically.
	Save(ctx context.Context, cursor domain.Cursor) error
}

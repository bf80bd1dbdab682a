package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/pryvlink/internal/domain"
)

const cursorFileName = "cursor.json"

// CursorFileRepository implements ports.CursorRepository using a JSON file.
type CursorFileRepository struct {
	dir string
}

// NewCursorFileRepository creates a new CursorFileRepository for the given directory.
func NewCursorFileRepository(dir string) *CursorFileRepository {
	return &CursorFileRepository{dir: dir}
}

// Load retrieves the last saved cursor from disk.
// Returns an empty cursor and nil error if no cursor file exists.
func (r *CursorFileRepository) Load(ctx context.Context) (domain.Cursor, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Cursor{}, nil
		}
		return domain.Cursor{}, err
	}

	var cursor domain.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return domain.Cursor{}, err
	}
	return cursor, nil
}

// Save persists the cursor atomically (write to temp file, then rename).
func (r *CursorFileRepository) Save(ctx context.Context, cursor domain.Cursor) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the cursor file.
func (r *CursorFileRepository) Path() string {
	return filepath.Join(r.dir, cursorFileName)
}

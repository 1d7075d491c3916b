package processdata

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("process data not found")
	ErrConflict  = errors.New("process data version conflict")
	ErrMissingID = errors.New("process data id is required")
)

// Repo loads and saves process records.
//
// Save is optimistic: it succeeds only if the stored version equals
// rec.Version (zero meaning "does not exist yet") and returns the record with
// the bumped version.
type Repo interface {
	GetByID(ctx context.Context, id string) (ProcessData, error)
	Save(ctx context.Context, rec ProcessData) (ProcessData, error)
}

package processdata

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]ProcessData
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]ProcessData),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// GetByID returns a copy of the stored record.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (ProcessData, error) {
	if err := ctx.Err(); err != nil {
		return ProcessData{}, err
	}
	if strings.TrimSpace(id) == "" {
		return ProcessData{}, ErrMissingID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[id]
	if !ok {
		return ProcessData{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// Save stores rec if its version matches the stored one.
func (r *MemoryRepo) Save(ctx context.Context, rec ProcessData) (ProcessData, error) {
	if err := ctx.Err(); err != nil {
		return ProcessData{}, err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return ProcessData{}, ErrMissingID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.data[rec.ID]
	switch {
	case !ok && rec.Version != 0:
		return ProcessData{}, ErrConflict
	case ok && existing.Version != rec.Version:
		return ProcessData{}, ErrConflict
	}
	if ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.Version++
	rec.UpdatedAt = now
	r.data[rec.ID] = rec.Clone()
	return rec, nil
}

var _ Repo = (*MemoryRepo)(nil)

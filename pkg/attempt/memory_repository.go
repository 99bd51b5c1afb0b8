package attempt

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps records in process memory. State is lost on restart.
type MemoryRepository struct {
	records map[string]*Record
	mutex   sync.RWMutex
	keys    KeyedMutex
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*Record),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, userID string) (*Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.records[userID]
	if !exists {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, userID string, fn UpdateFunc) (*Record, error) {
	unlock := r.keys.Lock(userID)
	defer unlock()

	r.mutex.RLock()
	current := r.records[userID].Clone()
	r.mutex.RUnlock()

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	next = next.Clone()
	next.UserID = userID

	r.mutex.Lock()
	r.records[userID] = next
	r.mutex.Unlock()

	return next.Clone(), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID string) error {
	unlock := r.keys.Lock(userID)
	defer unlock()

	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.records, userID)
	return nil
}

func (r *MemoryRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for _, userID := range r.staleKeys(before) {
		unlock := r.keys.Lock(userID)
		// An Update may have refreshed the record since the scan
		r.mutex.Lock()
		if rec, ok := r.records[userID]; ok && rec.Stale(before) {
			delete(r.records, userID)
			n++
		}
		r.mutex.Unlock()
		unlock()
	}
	return n, nil
}

func (r *MemoryRepository) staleKeys(before time.Time) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var keys []string
	for userID, rec := range r.records {
		if rec.Stale(before) {
			keys = append(keys, userID)
		}
	}
	return keys
}

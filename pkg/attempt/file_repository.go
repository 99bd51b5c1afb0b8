package attempt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const attemptsFileName = "email_attempts.json"

// FileRepository implements Repository on a JSON file. Every write rewrites
// the file through a temp file and an atomic rename, so a crash leaves either
// the previous or the new state on disk.
type FileRepository struct {
	dataDir string
	records map[string]*Record
	mutex   sync.RWMutex
	saveMu  sync.Mutex
	keys    KeyedMutex
}

// attemptData represents the structure of data stored in the JSON file
type attemptData struct {
	Records []*Record `json:"records"`
}

// NewFileRepository creates a new file-based attempt repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir: dataDir,
		records: make(map[string]*Record),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileRepository) Get(ctx context.Context, userID string) (*Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.records[userID]
	if !exists {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *FileRepository) Update(ctx context.Context, userID string, fn UpdateFunc) (*Record, error) {
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
	previous, existed := r.records[userID]
	r.records[userID] = next
	r.mutex.Unlock()

	if err := r.save(); err != nil {
		// Rollback
		r.mutex.Lock()
		if existed {
			r.records[userID] = previous
		} else {
			delete(r.records, userID)
		}
		r.mutex.Unlock()
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	return next.Clone(), nil
}

func (r *FileRepository) Delete(ctx context.Context, userID string) error {
	unlock := r.keys.Lock(userID)
	defer unlock()

	r.mutex.Lock()
	previous, existed := r.records[userID]
	delete(r.records, userID)
	r.mutex.Unlock()

	if !existed {
		return nil
	}

	if err := r.save(); err != nil {
		r.mutex.Lock()
		r.records[userID] = previous
		r.mutex.Unlock()
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	r.mutex.RLock()
	var candidates []string
	for userID, rec := range r.records {
		if rec.Stale(before) {
			candidates = append(candidates, userID)
		}
	}
	r.mutex.RUnlock()

	removed := make(map[string]*Record)
	for _, userID := range candidates {
		unlock := r.keys.Lock(userID)
		// An Update may have refreshed the record since the scan
		r.mutex.Lock()
		if rec, ok := r.records[userID]; ok && rec.Stale(before) {
			removed[userID] = rec
			delete(r.records, userID)
		}
		r.mutex.Unlock()
		unlock()
	}

	if len(removed) == 0 {
		return 0, nil
	}

	if err := r.save(); err != nil {
		for userID, rec := range removed {
			unlock := r.keys.Lock(userID)
			r.mutex.Lock()
			if _, exists := r.records[userID]; !exists {
				r.records[userID] = rec
			}
			r.mutex.Unlock()
			unlock()
		}
		return 0, fmt.Errorf("failed to save: %w", err)
	}

	return int64(len(removed)), nil
}

// load reads attempt data from file
func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, attemptsFileName)

	// If file doesn't exist, start with an empty map
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var fileData attemptData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.records = make(map[string]*Record, len(fileData.Records))
	for _, rec := range fileData.Records {
		if rec == nil || rec.UserID == "" {
			continue
		}
		r.records[rec.UserID] = rec
	}

	return nil
}

// save writes attempt data to file atomically
func (r *FileRepository) save() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mutex.RLock()
	records := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	jsonData, err := json.MarshalIndent(attemptData{Records: records}, "", "  ")
	r.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, attemptsFileName+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, attemptsFileName)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

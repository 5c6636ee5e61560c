package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/google/uuid"
)

// Registry is the in-memory table of files, keyed by generated id. It is the
// only authority over local upload state.
type Registry struct {
	files  map[string]*models.FileRecord
	mu     sync.RWMutex
	remote Tombstoner
	newID  func() string
}

func NewRegistry(remote Tombstoner) *Registry {
	return &Registry{
		files:  make(map[string]*models.FileRecord),
		remote: remote,
		newID:  uuid.NewString,
	}
}

// Create registers a freshly selected file and returns its id.
func (r *Registry) Create(src models.Source) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, taken := r.files[id]; taken; _, taken = r.files[id] {
		id = r.newID()
	}
	r.files[id] = &models.FileRecord{
		ID:      id,
		Source:  src,
		Name:    src.Name(),
		Size:    src.Size(),
		Preview: models.PlaceholderPreview,
	}
	return id
}

// Insert adds rec under id unless the id is already tracked.
func (r *Registry) Insert(id string, rec models.FileRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[id]; exists {
		return false
	}
	rec.ID = id
	r.files[id] = &rec
	return true
}

func (r *Registry) Get(id string) (models.FileRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.files[id]
	if !exists {
		return models.FileRecord{}, false
	}
	return *rec, true
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.files[id]
	return exists
}

func (r *Registry) Update(id string, patch models.FilePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.files[id]
	if !exists {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	patch.Apply(rec)
	return nil
}

// MarkUploaded flags the record as present on the server and drops its source.
func (r *Registry) MarkUploaded(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.files[id]
	if !exists {
		return fmt.Errorf("mark uploaded %s: %w", id, ErrNotFound)
	}
	rec.ServerPresent = true
	rec.Source = nil
	return nil
}

// ReadFile returns the raw bytes of a record that still has its source.
func (r *Registry) ReadFile(id string) ([]byte, error) {
	r.mu.RLock()
	rec, exists := r.files[id]
	var src models.Source
	if exists {
		src = rec.Source
	}
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("read %s: %w", id, ErrNotFound)
	}
	if src == nil {
		return nil, fmt.Errorf("read %s: source no longer available", id)
	}

	f, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src.Name(), err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	return data, nil
}

// Remove deletes a record. Uploaded records are soft-deleted remotely first and
// only dropped locally once that write has been acknowledged.
func (r *Registry) Remove(ctx context.Context, id string) error {
	rec, exists := r.Get(id)
	if !exists {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}

	if rec.ServerPresent {
		if err := r.remote.MarkDeleted(ctx, id); err != nil {
			return fmt.Errorf("failed to soft-delete %s: %w", id, err)
		}
	}

	r.mu.Lock()
	delete(r.files, id)
	r.mu.Unlock()
	return nil
}

// Evict drops a record locally without touching the remote store.
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[id]; !exists {
		return false
	}
	delete(r.files, id)
	return true
}

// EvictUploaded drops a server-present record locally. Pending records are
// left alone.
func (r *Registry) EvictUploaded(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.files[id]
	if !exists || !rec.ServerPresent {
		return false
	}
	delete(r.files, id)
	return true
}

// List returns a snapshot of every record.
func (r *Registry) List() map[string]models.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files := make(map[string]models.FileRecord, len(r.files))
	for id, rec := range r.files {
		files[id] = *rec
	}
	return files
}

// Pending returns a snapshot of the records not yet on the server.
func (r *Registry) Pending() map[string]models.FileRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files := make(map[string]models.FileRecord)
	for id, rec := range r.files {
		if !rec.ServerPresent {
			files[id] = *rec
		}
	}
	return files
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

func (r *Registry) HasPending() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.files {
		if !rec.ServerPresent {
			return true
		}
	}
	return false
}

// ClearPending drops every record that was never uploaded and returns how many
// were removed. Nothing was persisted for them, so the remote store is untouched.
func (r *Registry) ClearPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.files {
		if !rec.ServerPresent {
			delete(r.files, id)
			removed++
		}
	}
	return removed
}

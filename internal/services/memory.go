package services

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
)

// MemoryStore keeps both collections in process. Used for local development
// and as the backing store in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	images   map[string]models.ImageDocument
	entries  map[string]models.PublicationEntry
	watchers map[int]*memoryWatcher
	nextID   int
}

type memoryWatcher struct {
	changed chan struct{}
	dropped chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		images:   make(map[string]models.ImageDocument),
		entries:  make(map[string]models.PublicationEntry),
		watchers: make(map[int]*memoryWatcher),
	}
}

func (m *MemoryStore) SaveImage(ctx context.Context, id string, doc models.ImageDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.images[id] = doc
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) GetThumbnail(ctx context.Context, id string, size models.ThumbnailSize) (models.Thumbnail, error) {
	if err := ctx.Err(); err != nil {
		return models.Thumbnail{}, err
	}
	m.mu.RLock()
	doc, exists := m.images[id]
	m.mu.RUnlock()
	if !exists {
		return models.Thumbnail{}, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	thumb, ok := doc.Thumbnails.Get(size)
	if !ok {
		return models.Thumbnail{}, fmt.Errorf("image %s thumbnail %s: %w", id, size, ErrNotFound)
	}
	return thumb, nil
}

// Image returns the stored document for id.
func (m *MemoryStore) Image(id string) (models.ImageDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, exists := m.images[id]
	return doc, exists
}

func (m *MemoryStore) SaveEntry(ctx context.Context, id string, entry models.PublicationEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[id] = entry
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *MemoryStore) MarkDeleted(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	entry, exists := m.entries[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	entry.IsDeleted = true
	m.entries[id] = entry
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *MemoryStore) Entries(ctx context.Context) (map[string]models.PublicationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries), nil
}

func (m *MemoryStore) Watch(ctx context.Context, fn Snapshot) error {
	w := &memoryWatcher{
		changed: make(chan struct{}, 1),
		dropped: make(chan struct{}),
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()

	w.changed <- struct{}{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.dropped:
			return ErrFeedClosed
		case <-w.changed:
			entries, err := m.Entries(ctx)
			if err != nil {
				return err
			}
			fn(entries)
		}
	}
}

// Interrupt drops every live watcher as if the connection had been lost.
func (m *MemoryStore) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.watchers {
		close(w.dropped)
		delete(m.watchers, id)
	}
}

func (m *MemoryStore) notify() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.watchers {
		select {
		case w.changed <- struct{}{}:
		default:
		}
	}
}

// Watchers reports how many Watch calls are currently attached.
func (m *MemoryStore) Watchers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers)
}

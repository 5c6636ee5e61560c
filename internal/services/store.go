// Package services holds the remote document store backends: the image
// collection, the publication index and the change feed that drives watchers.
package services

import (
	"context"
	"errors"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrFeedClosed = errors.New("change feed closed")
)

// ImageStore is the image-document collection, keyed by image id.
type ImageStore interface {
	// SaveImage writes doc under id and returns the key the store assigned.
	SaveImage(ctx context.Context, id string, doc models.ImageDocument) (string, error)
	GetThumbnail(ctx context.Context, id string, size models.ThumbnailSize) (models.Thumbnail, error)
}

// IndexStore is the per-publication index of uploaded images.
type IndexStore interface {
	SaveEntry(ctx context.Context, id string, entry models.PublicationEntry) error
	// MarkDeleted flags the entry as a tombstone instead of removing it.
	MarkDeleted(ctx context.Context, id string) error
	Entries(ctx context.Context) (map[string]models.PublicationEntry, error)
}

// Snapshot receives the full publication index.
type Snapshot func(entries map[string]models.PublicationEntry)

// Store is the complete remote document store.
type Store interface {
	ImageStore
	IndexStore
	// Watch delivers a snapshot right away and again after every change. It
	// blocks until ctx is done or the underlying feed is lost.
	Watch(ctx context.Context, fn Snapshot) error
}

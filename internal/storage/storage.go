// Package storage holds the local registry of selected and uploaded files.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("file not found in registry")

// Tombstoner soft-deletes an uploaded image in the remote store so that other
// observers drop it too.
type Tombstoner interface {
	MarkDeleted(ctx context.Context, id string) error
}

package services

import (
	"context"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"go.uber.org/zap"
)

// Feed announces and streams changes to a publication index.
type Feed interface {
	Notify(ctx context.Context, publicationID, imageID string) error
	// Listen returns a channel of changed image ids. The channel is closed
	// when ctx is done or the feed is gone.
	Listen(ctx context.Context, publicationID string) (<-chan string, error)
}

// RemoteStore is the networked Store: documents and index live in durable
// backends and every index write is announced on the feed.
type RemoteStore struct {
	ImageStore
	index         IndexStore
	feed          Feed
	publicationID string
	resync        time.Duration
	logger        *zap.Logger
}

func NewRemoteStore(images ImageStore, index IndexStore, feed Feed, publicationID string, resync time.Duration, logger *zap.Logger) *RemoteStore {
	return &RemoteStore{
		ImageStore:    images,
		index:         index,
		feed:          feed,
		publicationID: publicationID,
		resync:        resync,
		logger:        logger,
	}
}

func (r *RemoteStore) SaveEntry(ctx context.Context, id string, entry models.PublicationEntry) error {
	if err := r.index.SaveEntry(ctx, id, entry); err != nil {
		return err
	}
	r.announce(ctx, id)
	return nil
}

func (r *RemoteStore) MarkDeleted(ctx context.Context, id string) error {
	if err := r.index.MarkDeleted(ctx, id); err != nil {
		return err
	}
	r.announce(ctx, id)
	return nil
}

func (r *RemoteStore) Entries(ctx context.Context) (map[string]models.PublicationEntry, error) {
	return r.index.Entries(ctx)
}

// The write already landed; watchers catch up on the next resync if the
// notification is lost.
func (r *RemoteStore) announce(ctx context.Context, id string) {
	if err := r.feed.Notify(ctx, r.publicationID, id); err != nil {
		r.logger.Warn("[WATCH] change notification failed", zap.String("image_id", id), zap.Error(err))
	}
}

func (r *RemoteStore) Watch(ctx context.Context, fn Snapshot) error {
	changes, err := r.feed.Listen(ctx, r.publicationID)
	if err != nil {
		return err
	}

	if err := r.snapshot(ctx, fn); err != nil {
		return err
	}

	var tick <-chan time.Time
	if r.resync > 0 {
		ticker := time.NewTicker(r.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrFeedClosed
			}
			if err := r.snapshot(ctx, fn); err != nil {
				return err
			}
		case <-tick:
			if err := r.snapshot(ctx, fn); err != nil {
				return err
			}
		}
	}
}

func (r *RemoteStore) snapshot(ctx context.Context, fn Snapshot) error {
	entries, err := r.index.Entries(ctx)
	if err != nil {
		return err
	}
	fn(entries)
	return nil
}

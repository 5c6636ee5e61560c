package uploader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/metrics"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/storage"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Subscription is a running reconciliation of the publication index.
type Subscription struct {
	cancel  context.CancelFunc
	done    chan struct{}
	fetches sync.WaitGroup
}

// Stop ends the subscription and waits for its goroutines to exit.
func (sub *Subscription) Stop() {
	sub.cancel()
	<-sub.done
}

func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Watch keeps the registry in line with the remote publication index until
// ctx is done or Stop is called. Lost subscriptions are re-established with
// exponential backoff.
func (s *Service) Watch(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	go s.watchLoop(ctx, sub)
	return sub
}

func (s *Service) watchLoop(ctx context.Context, sub *Subscription) {
	defer close(sub.done)
	defer sub.fetches.Wait()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.BackoffInitial
	b.MaxInterval = s.opts.BackoffMax
	b.Reset()

	for {
		err := s.store.Watch(ctx, func(entries map[string]models.PublicationEntry) {
			b.Reset()
			s.reconcile(ctx, sub, entries)
		})
		if ctx.Err() != nil {
			s.logger.Info("[WATCH] subscription stopped")
			return
		}

		wait := b.NextBackOff()
		metrics.WatchReconnectsTotal.Inc()
		s.logger.Warn("[WATCH] subscription lost, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("[WATCH] subscription stopped")
			return
		case <-timer.C:
		}
	}
}

// reconcile materializes remote entries that are not tracked locally and
// drops uploaded records whose entry has been tombstoned. Pending records and
// records with an upload in flight are never touched.
func (s *Service) reconcile(ctx context.Context, sub *Subscription, entries map[string]models.PublicationEntry) {
	for id, entry := range entries {
		if s.uploading(id) {
			continue
		}

		if entry.IsDeleted {
			if s.registry.EvictUploaded(id) {
				s.logger.Info("[WATCH] file removed remotely", zap.String("id", id))
			}
			continue
		}

		added := s.registry.Insert(id, models.FileRecord{
			Name:          entry.Name,
			Preview:       models.PlaceholderPreview,
			ServerPresent: true,
		})
		if !added {
			continue
		}

		metrics.WatchMaterializedTotal.Inc()
		s.logger.Debug("[WATCH] file added remotely", zap.String("id", id), zap.String("name", entry.Name))

		sub.fetches.Add(1)
		go func() {
			defer sub.fetches.Done()
			s.fetchPreview(ctx, id)
		}()
	}
}

func (s *Service) fetchPreview(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	thumb, err := s.store.GetThumbnail(ctx, id, models.ThumbnailSmall)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("[WATCH] thumbnail fetch failed", zap.String("id", id), zap.Error(err))
		}
		return
	}

	if err := s.registry.Update(id, models.WithPreview(thumb.ImageData)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("[WATCH] preview update failed", zap.String("id", id), zap.Error(err))
	}
}

package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/metrics"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/storage"
	"github.com/File-Sharing-BondBridg/Publication-Images/uploads/previews"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UploadOne renders both thumbnails for a pending record and persists the
// image document and the publication entry. The record only becomes
// server-present once both writes succeed.
func (s *Service) UploadOne(ctx context.Context, id string) error {
	rec, exists := s.registry.Get(id)
	if !exists {
		return fmt.Errorf("upload %s: %w", id, storage.ErrNotFound)
	}
	if rec.ServerPresent {
		return nil
	}
	if !s.begin(id) {
		return fmt.Errorf("upload %s: %w", id, ErrInProgress)
	}
	defer s.end(id)

	start := time.Now()
	defer func() { metrics.UploadDuration.Observe(time.Since(start).Seconds()) }()

	doc, err := s.render(ctx, id, rec)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(resultLabel(err)).Inc()
		s.logger.Warn("[UPLOAD] thumbnail rendering failed", zap.String("id", id), zap.Error(err))
		return err
	}

	if err := s.persist(ctx, id, doc); err != nil {
		metrics.UploadsTotal.WithLabelValues("remote_error").Inc()
		s.logger.Error("[UPLOAD] persist failed", zap.String("id", id), zap.Error(err))
		return err
	}

	if err := s.registry.MarkUploaded(id); err != nil {
		// Removed while the upload was running.
		metrics.UploadsTotal.WithLabelValues("stale").Inc()
		s.tombstone(ctx, id)
		s.logger.Info("[UPLOAD] record removed during upload", zap.String("id", id))
		return nil
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("[UPLOAD] file uploaded", zap.String("id", id), zap.String("name", rec.Name))
	return nil
}

// UploadPending uploads every pending record independently and reports the
// outcome per id.
func (s *Service) UploadPending(ctx context.Context) map[string]error {
	pending := s.registry.Pending()
	results := make(map[string]error, len(pending))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for id := range pending {
		g.Go(func() error {
			err := s.UploadOne(ctx, id)
			mu.Lock()
			results[id] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) render(ctx context.Context, id string, rec models.FileRecord) (models.ImageDocument, error) {
	var small, large previews.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		small, err = s.thumbnail(gctx, rec.Preview, s.opts.SmallBound, models.ThumbnailSmall)
		return err
	})
	g.Go(func() error {
		var err error
		large, err = s.thumbnail(gctx, rec.Preview, s.opts.LargeBound, models.ThumbnailLarge)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.ImageDocument{}, fmt.Errorf("upload %s: %w", id, err)
	}

	return models.ImageDocument{
		Name: rec.Name,
		Thumbnails: models.Thumbnails{
			Small: models.Thumbnail{OwnerID: id, ImageData: small.Data},
			Large: models.Thumbnail{OwnerID: id, ImageData: large.Data},
		},
	}, nil
}

func (s *Service) thumbnail(ctx context.Context, preview string, bound int, size models.ThumbnailSize) (previews.Result, error) {
	res, err := previews.Generate(ctx, preview, bound, bound, s.opts.Quality)
	metrics.ThumbnailsTotal.WithLabelValues(string(size), resultLabel(err)).Inc()
	return res, err
}

// persist writes the image document and the index entry concurrently. If
// only the entry landed it is tombstoned again so it cannot surface as an
// uploaded file.
func (s *Service) persist(ctx context.Context, id string, doc models.ImageDocument) error {
	var imageErr, entryErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()

		key, err := s.store.SaveImage(wctx, id, doc)
		switch {
		case err != nil:
			imageErr = fmt.Errorf("%w: image document %s: %w", ErrRemoteWrite, id, err)
		case key != id:
			imageErr = fmt.Errorf("%w: image document %s stored as %s", ErrKeyMismatch, id, key)
		}
	}()

	go func() {
		defer wg.Done()
		wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()

		if err := s.store.SaveEntry(wctx, id, models.PublicationEntry{Name: doc.Name}); err != nil {
			entryErr = fmt.Errorf("%w: publication entry %s: %w", ErrRemoteWrite, id, err)
		}
	}()

	wg.Wait()
	if imageErr != nil && entryErr == nil {
		s.tombstone(ctx, id)
	}
	return errors.Join(imageErr, entryErr)
}

func (s *Service) tombstone(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()

	if err := s.store.MarkDeleted(ctx, id); err != nil {
		s.logger.Error("[UPLOAD] failed to tombstone entry", zap.String("id", id), zap.Error(err))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, previews.ErrDecode):
		return "decode_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

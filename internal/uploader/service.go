// Package uploader drives files from the local registry to the remote store
// and folds remote changes back into the registry.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/services"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/storage"
	"github.com/File-Sharing-BondBridg/Publication-Images/uploads/previews"
	"go.uber.org/zap"
)

var (
	ErrRemoteWrite = errors.New("remote write failed")
	ErrKeyMismatch = errors.New("store assigned a different key")
	ErrInProgress  = errors.New("upload already in progress")
)

// Options tunes thumbnail rendering and remote I/O.
type Options struct {
	SmallBound     int
	LargeBound     int
	Quality        float64
	WriteTimeout   time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Concurrency    int
}

func DefaultOptions() Options {
	return Options{
		SmallBound:     200,
		LargeBound:     600,
		Quality:        1.0,
		WriteTimeout:   10 * time.Second,
		BackoffInitial: time.Second,
		BackoffMax:     30 * time.Second,
		Concurrency:    4,
	}
}

type Service struct {
	registry *storage.Registry
	store    services.Store
	logger   *zap.Logger
	opts     Options

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(registry *storage.Registry, store services.Store, logger *zap.Logger, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Service{
		registry: registry,
		store:    store,
		logger:   logger,
		opts:     opts,
		inflight: make(map[string]struct{}),
	}
}

// Select registers a newly picked file and renders its raw preview.
func (s *Service) Select(ctx context.Context, src models.Source) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := s.registry.Create(src)
	data, err := s.registry.ReadFile(id)
	if err != nil {
		s.registry.Evict(id)
		return "", err
	}
	if err := s.registry.Update(id, models.WithPreview(previews.DataURL(data))); err != nil {
		return "", err
	}

	s.logger.Debug("[UPLOAD] file selected",
		zap.String("id", id),
		zap.String("name", src.Name()),
		zap.Int64("size", src.Size()),
	)
	return id, nil
}

// Remove deletes a record, soft-deleting it remotely when it was uploaded.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.registry.Remove(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrRemoteWrite, err)
	}
	s.logger.Info("[UPLOAD] file removed", zap.String("id", id))
	return nil
}

func (s *Service) ClearPending() int {
	removed := s.registry.ClearPending()
	if removed > 0 {
		s.logger.Info("[UPLOAD] pending queue cleared", zap.Int("removed", removed))
	}
	return removed
}

// Thumbnail reads a stored rendition of an uploaded file.
func (s *Service) Thumbnail(ctx context.Context, id string, size models.ThumbnailSize) (models.Thumbnail, error) {
	rec, exists := s.registry.Get(id)
	if !exists {
		return models.Thumbnail{}, fmt.Errorf("thumbnail %s: %w", id, storage.ErrNotFound)
	}
	if !rec.ServerPresent {
		return models.Thumbnail{}, fmt.Errorf("thumbnail %s: not uploaded yet: %w", id, services.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	return s.store.GetThumbnail(ctx, id, size)
}

func (s *Service) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) end(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *Service) uploading(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[id]
	return busy
}

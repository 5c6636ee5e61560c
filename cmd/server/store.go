package main

import (
	"context"
	"fmt"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/configuration"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/nats"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/services"
	"go.uber.org/zap"
)

type storeBackend struct {
	store  services.Store
	checks map[string]handlers.Check
	closer []func()
}

func (b *storeBackend) Close() {
	for i := len(b.closer) - 1; i >= 0; i-- {
		b.closer[i]()
	}
}

// buildStore wires the configured remote store. The remote backend keeps the
// publication index in Postgres, image documents in Postgres or MinIO, and
// change notifications on NATS.
func buildStore(ctx context.Context, cfg *configuration.Config, logger *zap.Logger) (*storeBackend, error) {
	b := &storeBackend{checks: make(map[string]handlers.Check)}

	if cfg.StoreBackend == configuration.StoreMemory {
		mem := services.NewMemoryStore()
		b.store = mem
		b.checks["store"] = func(ctx context.Context) error {
			_, err := mem.Entries(ctx)
			return err
		}
		logger.Info("using in-memory store")
		return b, nil
	}

	db, err := services.ConnectPostgres(cfg.Database.ConnectionString(), cfg.PublicationID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	b.closer = append(b.closer, func() { _ = db.Close() })
	b.checks["postgres"] = db.CheckConnection

	var images services.ImageStore = db
	if cfg.ImageBackend == configuration.ImagesMinio {
		m := cfg.MinIO
		minioService, err := services.InitializeMinio(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.BucketName, m.UseSSL, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
		}
		images = minioService
		b.checks["minio"] = minioService.CheckConnection
	}

	feed, err := nats.NewClient(cfg.NATSURL, cfg.Watch.BackoffInitial, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closer = append(b.closer, feed.Close)
	b.checks["nats"] = func(context.Context) error { return feed.CheckConnection() }

	cached := services.NewCachedImages(images, cfg.Thumbnails.CacheSize, cfg.Thumbnails.CacheTTL)
	b.store = services.NewRemoteStore(cached, db, feed, cfg.PublicationID, cfg.Watch.Resync, logger)
	return b, nil
}

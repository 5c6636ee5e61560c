package services

import (
	"context"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/metrics"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type thumbnailKey struct {
	id   string
	size models.ThumbnailSize
}

// CachedImages serves thumbnail reads from an expiring LRU in front of an
// ImageStore. Writes go through and refresh the cached entries.
type CachedImages struct {
	ImageStore
	cache *expirable.LRU[thumbnailKey, models.Thumbnail]
}

func NewCachedImages(next ImageStore, size int, ttl time.Duration) *CachedImages {
	return &CachedImages{
		ImageStore: next,
		cache:      expirable.NewLRU[thumbnailKey, models.Thumbnail](size, nil, ttl),
	}
}

func (c *CachedImages) SaveImage(ctx context.Context, id string, doc models.ImageDocument) (string, error) {
	key, err := c.ImageStore.SaveImage(ctx, id, doc)
	if err != nil {
		return "", err
	}
	c.cache.Add(thumbnailKey{key, models.ThumbnailSmall}, doc.Thumbnails.Small)
	c.cache.Add(thumbnailKey{key, models.ThumbnailLarge}, doc.Thumbnails.Large)
	return key, nil
}

func (c *CachedImages) GetThumbnail(ctx context.Context, id string, size models.ThumbnailSize) (models.Thumbnail, error) {
	k := thumbnailKey{id, size}
	if thumb, ok := c.cache.Get(k); ok {
		metrics.ThumbnailCacheHits.Inc()
		return thumb, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	thumb, err := c.ImageStore.GetThumbnail(ctx, id, size)
	if err != nil {
		return models.Thumbnail{}, err
	}
	c.cache.Add(k, thumb)
	return thumb, nil
}

// Len is the number of cached thumbnails.
func (c *CachedImages) Len() int {
	return c.cache.Len()
}

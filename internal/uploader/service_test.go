package uploader

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/services"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/storage"
	"github.com/File-Sharing-BondBridg/Publication-Images/uploads/previews"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// faultyStore wraps a MemoryStore with injectable write failures.
type faultyStore struct {
	*services.MemoryStore
	imageErr error
	entryErr error
	key      string
	hold     chan struct{}
	started  chan struct{}
}

func (f *faultyStore) SaveImage(ctx context.Context, id string, doc models.ImageDocument) (string, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.hold != nil {
		<-f.hold
	}
	if f.imageErr != nil {
		return "", f.imageErr
	}
	key, err := f.MemoryStore.SaveImage(ctx, id, doc)
	if f.key != "" {
		return f.key, err
	}
	return key, err
}

func (f *faultyStore) SaveEntry(ctx context.Context, id string, entry models.PublicationEntry) error {
	if f.entryErr != nil {
		return f.entryErr
	}
	return f.MemoryStore.SaveEntry(ctx, id, entry)
}

func jpegSource(t *testing.T, name string, w, h int) models.BytesSource {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return models.BytesSource{FileName: name, Data: buf.Bytes()}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.WriteTimeout = time.Second
	opts.BackoffInitial = 5 * time.Millisecond
	opts.BackoffMax = 20 * time.Millisecond
	return opts
}

func newTestService(t *testing.T, store services.Store) (*Service, *storage.Registry) {
	registry := storage.NewRegistry(store)
	return NewService(registry, store, zaptest.NewLogger(t), testOptions()), registry
}

func decodedSize(t *testing.T, dataURL string) (int, int) {
	t.Helper()
	raw, mediaType, err := previews.ParseDataURL(dataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mediaType)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestSelect_RendersPreview(t *testing.T) {
	svc, registry := newTestService(t, services.NewMemoryStore())

	id, err := svc.Select(context.Background(), jpegSource(t, "a.jpg", 40, 30))
	require.NoError(t, err)

	rec, ok := registry.Get(id)
	require.True(t, ok)
	assert.False(t, rec.ServerPresent)
	assert.Equal(t, "a.jpg", rec.Name)
	assert.Contains(t, rec.Preview, "data:image/jpeg;base64,")
}

func TestUploadOne_PersistsBothDocuments(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	svc, registry := newTestService(t, store)

	id, err := svc.Select(ctx, jpegSource(t, "landscape.jpg", 800, 600))
	require.NoError(t, err)
	require.NoError(t, svc.UploadOne(ctx, id))

	rec, ok := registry.Get(id)
	require.True(t, ok)
	assert.True(t, rec.ServerPresent)
	assert.Nil(t, rec.Source)
	assert.False(t, registry.HasPending())

	doc, ok := store.Image(id)
	require.True(t, ok)
	assert.Equal(t, "landscape.jpg", doc.Name)
	assert.Equal(t, id, doc.Thumbnails.Small.OwnerID)
	assert.Equal(t, id, doc.Thumbnails.Large.OwnerID)

	w, h := decodedSize(t, doc.Thumbnails.Small.ImageData)
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
	w, h = decodedSize(t, doc.Thumbnails.Large.ImageData)
	assert.Equal(t, 600, w)
	assert.Equal(t, 450, h)

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationEntry{Name: "landscape.jpg"}, entries[id])
}

func TestUploadOne_AlreadyUploadedIsNoop(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{MemoryStore: services.NewMemoryStore()}
	svc, registry := newTestService(t, store)
	require.True(t, registry.Insert("remote-1", models.FileRecord{Name: "r.jpg", ServerPresent: true}))

	store.imageErr = errors.New("must not be called")
	assert.NoError(t, svc.UploadOne(ctx, "remote-1"))
}

func TestUploadOne_UnknownID(t *testing.T) {
	svc, _ := newTestService(t, services.NewMemoryStore())
	assert.ErrorIs(t, svc.UploadOne(context.Background(), "missing"), storage.ErrNotFound)
}

func TestUploadOne_DecodeError(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	svc, registry := newTestService(t, store)

	id, err := svc.Select(ctx, models.BytesSource{FileName: "notes.txt", Data: []byte("plain text, not an image")})
	require.NoError(t, err)

	err = svc.UploadOne(ctx, id)
	assert.ErrorIs(t, err, previews.ErrDecode)

	rec, _ := registry.Get(id)
	assert.False(t, rec.ServerPresent)
	_, stored := store.Image(id)
	assert.False(t, stored)
	entries, _ := store.Entries(ctx)
	assert.Empty(t, entries)
}

func TestUploadOne_ImageWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{MemoryStore: services.NewMemoryStore(), imageErr: errors.New("connection reset")}
	svc, registry := newTestService(t, store)

	id, err := svc.Select(ctx, jpegSource(t, "a.jpg", 64, 64))
	require.NoError(t, err)

	err = svc.UploadOne(ctx, id)
	assert.ErrorIs(t, err, ErrRemoteWrite)

	rec, _ := registry.Get(id)
	assert.False(t, rec.ServerPresent)

	// The entry that did land is tombstoned so it never surfaces as uploaded.
	entries, _ := store.Entries(ctx)
	assert.True(t, entries[id].IsDeleted)

	// Retrying after the store recovers completes the upload.
	store.imageErr = nil
	require.NoError(t, svc.UploadOne(ctx, id))
	entries, _ = store.Entries(ctx)
	assert.False(t, entries[id].IsDeleted)
	rec, _ = registry.Get(id)
	assert.True(t, rec.ServerPresent)
}

func TestUploadOne_EntryWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{MemoryStore: services.NewMemoryStore(), entryErr: errors.New("permission denied")}
	svc, registry := newTestService(t, store)

	id, err := svc.Select(ctx, jpegSource(t, "a.jpg", 64, 64))
	require.NoError(t, err)

	err = svc.UploadOne(ctx, id)
	assert.ErrorIs(t, err, ErrRemoteWrite)
	assert.ErrorContains(t, err, "permission denied")

	rec, _ := registry.Get(id)
	assert.False(t, rec.ServerPresent)
	assert.True(t, registry.HasPending())
}

func TestUploadOne_KeyMismatch(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{MemoryStore: services.NewMemoryStore(), key: "other-key"}
	svc, registry := newTestService(t, store)

	id, err := svc.Select(ctx, jpegSource(t, "a.jpg", 64, 64))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UploadOne(ctx, id), ErrKeyMismatch)
	rec, _ := registry.Get(id)
	assert.False(t, rec.ServerPresent)
}

func TestUploadOne_RemovedDuringUpload(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{
		MemoryStore: services.NewMemoryStore(),
		hold:        make(chan struct{}),
		started:     make(chan struct{}),
	}
	svc, registry := newTestService(t, store)

	id, err := svc.Select(ctx, jpegSource(t, "a.jpg", 64, 64))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.UploadOne(ctx, id) }()

	<-store.started
	assert.ErrorIs(t, svc.UploadOne(ctx, id), ErrInProgress)
	require.NoError(t, svc.Remove(ctx, id))
	close(store.hold)

	require.NoError(t, <-done)
	assert.False(t, registry.Has(id))

	entries, _ := store.Entries(ctx)
	assert.True(t, entries[id].IsDeleted)
}

func TestUploadPending_IndependentResults(t *testing.T) {
	ctx := context.Background()
	svc, registry := newTestService(t, services.NewMemoryStore())

	good, err := svc.Select(ctx, jpegSource(t, "good.jpg", 64, 48))
	require.NoError(t, err)
	bad, err := svc.Select(ctx, models.BytesSource{FileName: "bad.jpg", Data: []byte{0xff, 0xd8, 0x00}})
	require.NoError(t, err)

	results := svc.UploadPending(ctx)
	require.Len(t, results, 2)
	assert.NoError(t, results[good])
	assert.ErrorIs(t, results[bad], previews.ErrDecode)

	pending := registry.Pending()
	assert.Len(t, pending, 1)
	assert.Contains(t, pending, bad)
}

func TestClearPending(t *testing.T) {
	ctx := context.Background()
	svc, registry := newTestService(t, services.NewMemoryStore())

	uploaded, err := svc.Select(ctx, jpegSource(t, "up.jpg", 32, 32))
	require.NoError(t, err)
	require.NoError(t, svc.UploadOne(ctx, uploaded))
	for _, name := range []string{"a.jpg", "b.jpg"} {
		_, err := svc.Select(ctx, jpegSource(t, name, 16, 16))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, svc.ClearPending())
	assert.Equal(t, 1, registry.Count())
	assert.True(t, registry.Has(uploaded))
}

func TestThumbnail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, services.NewMemoryStore())

	id, err := svc.Select(ctx, jpegSource(t, "a.jpg", 64, 64))
	require.NoError(t, err)

	_, err = svc.Thumbnail(ctx, id, models.ThumbnailSmall)
	assert.ErrorIs(t, err, services.ErrNotFound)

	require.NoError(t, svc.UploadOne(ctx, id))
	thumb, err := svc.Thumbnail(ctx, id, models.ThumbnailLarge)
	require.NoError(t, err)
	assert.Equal(t, id, thumb.OwnerID)

	_, err = svc.Thumbnail(ctx, "missing", models.ThumbnailSmall)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

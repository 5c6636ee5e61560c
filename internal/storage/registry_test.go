package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTombstoner struct {
	calls []string
	err   error
}

func (f *fakeTombstoner) MarkDeleted(_ context.Context, id string) error {
	f.calls = append(f.calls, id)
	return f.err
}

func source(name string) models.BytesSource {
	return models.BytesSource{FileName: name, Data: []byte("content of " + name)}
}

func TestRegistry_CreateGeneratesUniquePendingRecords(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := r.Create(source("photo.jpg"))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		rec, ok := r.Get(id)
		require.True(t, ok)
		assert.False(t, rec.ServerPresent)
		assert.NotNil(t, rec.Source)
		assert.Equal(t, models.PlaceholderPreview, rec.Preview)
		assert.Equal(t, "photo.jpg", rec.Name)
		assert.Equal(t, int64(len("content of photo.jpg")), rec.Size)
	}
	assert.Equal(t, 50, r.Count())
}

func TestRegistry_CreateRetriesOnIDCollision(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	ids := []string{"a", "a", "b"}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	assert.Equal(t, "a", r.Create(source("one")))
	assert.Equal(t, "b", r.Create(source("two")))
}

func TestRegistry_Update(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	id := r.Create(source("a.png"))

	require.NoError(t, r.Update(id, models.WithPreview("data:image/png;base64,AAAA")))
	rec, _ := r.Get(id)
	assert.Equal(t, "data:image/png;base64,AAAA", rec.Preview)
	assert.Equal(t, "a.png", rec.Name)

	err := r.Update("missing", models.WithPreview("x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ReadFile(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	id := r.Create(source("a.png"))

	data, err := r.ReadFile(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("content of a.png"), data)

	_, err = r.ReadFile("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.MarkUploaded(id))
	_, err = r.ReadFile(id)
	assert.Error(t, err)
}

func TestRegistry_RemovePendingDoesNotTouchRemote(t *testing.T) {
	remote := &fakeTombstoner{}
	r := NewRegistry(remote)
	id := r.Create(source("a.png"))

	require.NoError(t, r.Remove(context.Background(), id))
	assert.Empty(t, remote.calls)
	assert.False(t, r.Has(id))
}

func TestRegistry_RemoveUploadedSoftDeletesOnce(t *testing.T) {
	remote := &fakeTombstoner{}
	r := NewRegistry(remote)
	id := r.Create(source("a.png"))
	require.NoError(t, r.MarkUploaded(id))

	require.NoError(t, r.Remove(context.Background(), id))
	assert.Equal(t, []string{id}, remote.calls)
	assert.False(t, r.Has(id))
}

func TestRegistry_RemoveKeepsRecordWhenSoftDeleteFails(t *testing.T) {
	remote := &fakeTombstoner{err: errors.New("network down")}
	r := NewRegistry(remote)
	id := r.Create(source("a.png"))
	require.NoError(t, r.MarkUploaded(id))

	err := r.Remove(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.err)
	assert.Equal(t, []string{id}, remote.calls)
	assert.True(t, r.Has(id))
}

func TestRegistry_RemoveMissing(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	assert.ErrorIs(t, r.Remove(context.Background(), "nope"), ErrNotFound)
}

func TestRegistry_ClearPendingLeavesUploadedRecords(t *testing.T) {
	remote := &fakeTombstoner{}
	r := NewRegistry(remote)

	first := r.Create(source("1.png"))
	second := r.Create(source("2.png"))
	uploaded := r.Create(source("3.png"))
	require.NoError(t, r.MarkUploaded(uploaded))
	require.True(t, r.Insert("remote-id", models.FileRecord{Name: "remote.png", ServerPresent: true}))

	before := r.Count()
	require.True(t, r.HasPending())

	assert.Equal(t, 2, r.ClearPending())
	assert.Equal(t, before-2, r.Count())
	assert.False(t, r.HasPending())
	assert.False(t, r.Has(first))
	assert.False(t, r.Has(second))
	assert.True(t, r.Has(uploaded))
	assert.True(t, r.Has("remote-id"))
	assert.Empty(t, remote.calls)
}

func TestRegistry_InsertOnlyWhenAbsent(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	require.True(t, r.Insert("x", models.FileRecord{Name: "first", ServerPresent: true}))
	assert.False(t, r.Insert("x", models.FileRecord{Name: "second", ServerPresent: true}))

	rec, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, "x", rec.ID)
	assert.Equal(t, "first", rec.Name)
}

func TestRegistry_MarkUploadedEvictsSource(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	id := r.Create(source("a.png"))

	require.NoError(t, r.MarkUploaded(id))
	rec, _ := r.Get(id)
	assert.True(t, rec.ServerPresent)
	assert.Nil(t, rec.Source)

	assert.ErrorIs(t, r.MarkUploaded("missing"), ErrNotFound)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	id := r.Create(source("a.png"))

	list := r.List()
	rec := list[id]
	rec.Name = "changed"
	list[id] = rec

	got, _ := r.Get(id)
	assert.Equal(t, "a.png", got.Name)
	assert.Len(t, r.Pending(), 1)
}

func TestRegistry_Evict(t *testing.T) {
	remote := &fakeTombstoner{}
	r := NewRegistry(remote)
	require.True(t, r.Insert("x", models.FileRecord{ServerPresent: true}))

	assert.True(t, r.Evict("x"))
	assert.False(t, r.Evict("x"))
	assert.Empty(t, remote.calls)
}

func TestRegistry_EvictUploadedSkipsPending(t *testing.T) {
	r := NewRegistry(&fakeTombstoner{})
	pending := r.Create(source("a.jpg"))
	require.True(t, r.Insert("remote", models.FileRecord{ServerPresent: true}))

	assert.False(t, r.EvictUploaded(pending))
	assert.True(t, r.Has(pending))
	assert.True(t, r.EvictUploaded("remote"))
	assert.False(t, r.EvictUploaded("remote"))
}

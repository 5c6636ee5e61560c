package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, ImagesPostgres, cfg.ImageBackend)
	assert.Equal(t, "-Juqip8bcmF7u3z97fbe", cfg.PublicationID)
	assert.Equal(t, 200, cfg.Thumbnails.SmallBound)
	assert.Equal(t, 600, cfg.Thumbnails.LargeBound)
	assert.Equal(t, 1.0, cfg.Thumbnails.Quality)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, time.Second, cfg.Watch.BackoffInitial)
	assert.Equal(t, 30*time.Second, cfg.Watch.BackoffMax)
	assert.Empty(t, cfg.CLAMAVURL)
	assert.False(t, cfg.TraceEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "remote")
	t.Setenv("IMAGE_BACKEND", "minio")
	t.Setenv("THUMB_SMALL", "150")
	t.Setenv("THUMB_QUALITY", "0.8")
	t.Setenv("WATCH_RESYNC", "1m")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("DD_TRACE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRemote, cfg.StoreBackend)
	assert.Equal(t, ImagesMinio, cfg.ImageBackend)
	assert.Equal(t, 150, cfg.Thumbnails.SmallBound)
	assert.Equal(t, 0.8, cfg.Thumbnails.Quality)
	assert.Equal(t, time.Minute, cfg.Watch.Resync)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.True(t, cfg.TraceEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"THUMB_SMALL":           "big",
		"REMOTE_WRITE_TIMEOUT":  "soon",
		"STORE_BACKEND":         "firebase",
		"IMAGE_BACKEND":         "s3",
		"THUMB_QUALITY":         "1.5",
		"WATCH_BACKOFF_INITIAL": "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "pubs", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/pubs?sslmode=disable", db.ConnectionString())
}

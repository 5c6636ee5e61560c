package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage stores image documents and the publication index in PostgreSQL.
type PostgresStorage struct {
	db            *sql.DB
	publicationID string
	logger        *zap.Logger
}

// ConnectPostgres opens the pool, pings it and makes sure the tables exist.
func ConnectPostgres(connectionString, publicationID string, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	p := NewPostgresStorage(db, publicationID, logger)
	if err := p.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("[DB] connected to PostgreSQL", zap.String("publication_id", publicationID))
	return p, nil
}

// NewPostgresStorage wraps an already opened pool.
func NewPostgresStorage(db *sql.DB, publicationID string, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, publicationID: publicationID, logger: logger}
}

func (p *PostgresStorage) createTables(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS images (
        id VARCHAR(64) PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        thumbnails JSONB NOT NULL,
        created_at TIMESTAMPTZ DEFAULT NOW()
    );

    CREATE TABLE IF NOT EXISTS publication_images (
        publication_id VARCHAR(64) NOT NULL,
        image_id VARCHAR(64) NOT NULL,
        name VARCHAR(255) NOT NULL,
        is_deleted BOOLEAN NOT NULL DEFAULT false,
        updated_at TIMESTAMPTZ DEFAULT NOW(),
        PRIMARY KEY (publication_id, image_id)
    );

    CREATE INDEX IF NOT EXISTS idx_publication_images_live
        ON publication_images(publication_id) WHERE NOT is_deleted;
    `
	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *PostgresStorage) SaveImage(ctx context.Context, id string, doc models.ImageDocument) (string, error) {
	thumbnails, err := json.Marshal(doc.Thumbnails)
	if err != nil {
		return "", fmt.Errorf("failed to marshal thumbnails: %w", err)
	}

	query := `
    INSERT INTO images (id, name, thumbnails)
    VALUES ($1, $2, $3)
    ON CONFLICT (id) DO UPDATE SET
        name = EXCLUDED.name,
        thumbnails = EXCLUDED.thumbnails
    RETURNING id
    `

	var key string
	if err := p.db.QueryRowContext(ctx, query, id, doc.Name, string(thumbnails)).Scan(&key); err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", id, err)
	}
	return key, nil
}

func (p *PostgresStorage) GetThumbnail(ctx context.Context, id string, size models.ThumbnailSize) (models.Thumbnail, error) {
	query := `SELECT thumbnails -> $2::text FROM images WHERE id = $1`

	var raw []byte
	err := p.db.QueryRowContext(ctx, query, id, string(size)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && raw == nil) {
		return models.Thumbnail{}, fmt.Errorf("image %s thumbnail %s: %w", id, size, ErrNotFound)
	}
	if err != nil {
		return models.Thumbnail{}, fmt.Errorf("failed to load thumbnail %s: %w", id, err)
	}

	var thumb models.Thumbnail
	if err := json.Unmarshal(raw, &thumb); err != nil {
		return models.Thumbnail{}, fmt.Errorf("failed to parse thumbnail %s: %w", id, err)
	}
	return thumb, nil
}

func (p *PostgresStorage) SaveEntry(ctx context.Context, id string, entry models.PublicationEntry) error {
	query := `
    INSERT INTO publication_images (publication_id, image_id, name, is_deleted)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (publication_id, image_id) DO UPDATE SET
        name = EXCLUDED.name,
        is_deleted = EXCLUDED.is_deleted,
        updated_at = NOW()
    `
	if _, err := p.db.ExecContext(ctx, query, p.publicationID, id, entry.Name, entry.IsDeleted); err != nil {
		return fmt.Errorf("failed to save publication entry %s: %w", id, err)
	}
	return nil
}

func (p *PostgresStorage) MarkDeleted(ctx context.Context, id string) error {
	query := `
    UPDATE publication_images SET is_deleted = true, updated_at = NOW()
    WHERE publication_id = $1 AND image_id = $2
    `
	result, err := p.db.ExecContext(ctx, query, p.publicationID, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStorage) Entries(ctx context.Context) (map[string]models.PublicationEntry, error) {
	query := `
    SELECT image_id, name, is_deleted
    FROM publication_images WHERE publication_id = $1
    `
	rows, err := p.db.QueryContext(ctx, query, p.publicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query publication entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]models.PublicationEntry)
	for rows.Next() {
		var id string
		var entry models.PublicationEntry
		if err := rows.Scan(&id, &entry.Name, &entry.IsDeleted); err != nil {
			return nil, fmt.Errorf("failed to scan publication entry: %w", err)
		}
		entries[id] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CheckConnection is used by the health endpoint.
func (p *PostgresStorage) CheckConnection(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStorage) Close() error {
	return p.db.Close()
}

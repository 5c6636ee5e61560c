package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const imagePrefix = "images"

// MinioService keeps image documents as JSON objects in a bucket.
type MinioService struct {
	Client     *minio.Client
	BucketName string
	logger     *zap.Logger
}

func InitializeMinio(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*MinioService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("[MinIO] created bucket", zap.String("bucket", bucket))
	}

	logger.Info("[MinIO] connected", zap.String("endpoint", endpoint), zap.String("bucket", bucket))
	return &MinioService{Client: client, BucketName: bucket, logger: logger}, nil
}

// CheckConnection is used by the health endpoint.
func (m *MinioService) CheckConnection(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("minio service not initialized")
	}
	_, err := m.Client.BucketExists(ctx, m.BucketName)
	return err
}

func (m *MinioService) SaveImage(ctx context.Context, id string, doc models.ImageDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal image %s: %w", id, err)
	}

	info, err := m.Client.PutObject(
		ctx,
		m.BucketName,
		ObjectName(id),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload image %s: %w", id, err)
	}
	return ImageID(info.Key), nil
}

func (m *MinioService) GetThumbnail(ctx context.Context, id string, size models.ThumbnailSize) (models.Thumbnail, error) {
	obj, err := m.Client.GetObject(ctx, m.BucketName, ObjectName(id), minio.GetObjectOptions{})
	if err != nil {
		return models.Thumbnail{}, fmt.Errorf("failed to open image %s: %w", id, err)
	}
	defer obj.Close()

	var doc models.ImageDocument
	if err := json.NewDecoder(obj).Decode(&doc); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return models.Thumbnail{}, fmt.Errorf("image %s: %w", id, ErrNotFound)
		}
		return models.Thumbnail{}, fmt.Errorf("failed to read image %s: %w", id, err)
	}

	thumb, ok := doc.Thumbnails.Get(size)
	if !ok {
		return models.Thumbnail{}, fmt.Errorf("image %s thumbnail %s: %w", id, size, ErrNotFound)
	}
	return thumb, nil
}

// ObjectName maps an image id to its object key.
func ObjectName(id string) string {
	return path.Join(imagePrefix, id+".json")
}

// ImageID is the inverse of ObjectName.
func ImageID(objectName string) string {
	base := path.Base(objectName)
	return base[:len(base)-len(path.Ext(base))]
}

// Package photos хранит фотографии товаров в MinIO.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var ErrNotImage = errors.New("file is not a supported image")

// Store хранилище фотографий
type Store interface {
	Upload(ctx context.Context, itemID string, data []byte) (string, error)
	Remove(ctx context.Context, name string) error
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage определяет тип изображения по содержимому, а не по имени файла
func DetectImage(data []byte) (contentType, ext string, err error) {
	contentType = http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	return contentType, ext, nil
}

// ObjectName имя объекта для фото товара
func ObjectName(itemID, ext string, at time.Time) string {
	return fmt.Sprintf("item_%s_%s_%d%s", itemID, uuid.NewString()[:8], at.Unix(), ext)
}

// Config параметры MinIO
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinioStore struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

// NewMinioStore подключается к MinIO и создает bucket, если его нет
func NewMinioStore(ctx context.Context, cfg Config, log *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("Bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Upload сохраняет фото и возвращает имя объекта
func (s *MinioStore) Upload(ctx context.Context, itemID string, data []byte) (string, error) {
	contentType, ext, err := DetectImage(data)
	if err != nil {
		return "", err
	}

	name := ObjectName(itemID, ext, time.Now())
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	s.log.Debug("Photo uploaded", zap.String("object", name))
	return name, nil
}

// Remove удаляет фото; отсутствие объекта ошибкой не считается
func (s *MinioStore) Remove(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

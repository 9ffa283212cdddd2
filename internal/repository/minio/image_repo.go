package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo реализует репозиторий изображений поверх MinIO.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Upload загружает изображение в MinIO и возвращает ключ объекта.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) (string, error) {
	bucket := image.Bucket
	if bucket == "" {
		bucket = i.cfg.BucketName
	}

	info, err := i.mc.PutObject(ctx, bucket, image.ObjectKey, bytes.NewReader(image.Bytes), int64(len(image.Bytes)),
		minio.PutObjectOptions{ContentType: image.Format.ContentType()},
	)
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return info.Key, nil
}

// Get читает объект целиком. Объекты больше maxSize не читаются.
func (i *ImageRepo) Get(ctx context.Context, key string, maxSize int64) ([]byte, error) {
	obj, err := i.mc.GetObject(ctx, i.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, i.mapErr(err)
	}
	defer obj.Close()

	// Stat выполняет запрос и возвращает NoSuchKey для отсутствующего объекта
	stat, err := obj.Stat()
	if err != nil {
		return nil, i.mapErr(err)
	}

	if stat.Size > maxSize {
		return nil, e.ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(obj, maxSize+1))
	if err != nil {
		return nil, i.mapErr(err)
	}

	if int64(len(data)) > maxSize {
		return nil, e.ErrImageTooLarge
	}

	return data, nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (i *ImageRepo) mapErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return e.ErrImageNotFound
	}

	return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrImageFetchFailed, err))
}

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

func (sb *S3Backend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	objInfo, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}

	return &data.ObjectStat{
		Key:        key,
		Size:       objInfo.Size,
		ModifyTime: objInfo.LastModified,
		ETag:       objInfo.ETag,
	}, nil
}

func (sb *S3Backend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	objInfo, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, mapError(err)
	}

	// Ranged GETs beyond the object end are rejected with InvalidRange
	if len(buf) == 0 || offset >= objInfo.Size {
		return 0, nil
	}

	end := min(offset+int64(len(buf)), objInfo.Size) - 1
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(offset, end); err != nil {
		return 0, err
	}

	object, err := sb.client.GetObject(ctx, sb.bucketName, key, opts)
	if err != nil {
		return 0, mapError(err)
	}
	defer object.Close()

	n, err := io.ReadFull(object, buf[:end-offset+1])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, mapError(err)
	}

	return n, nil
}

func (sb *S3Backend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// S3 doesn't support partial writes - we need to read-modify-write
	var existing []byte
	object, err := sb.client.GetObject(ctx, sb.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, mapError(err)
	}
	existing, err = io.ReadAll(object)
	object.Close()
	if err != nil {
		if err := mapError(err); !errors.Is(err, data.ErrNotExist) {
			return 0, err
		}
		existing = nil
	}

	content := backend.WriteAt(existing, offset, buf)
	if err := sb.put(ctx, key, content); err != nil {
		return 0, err
	}

	return len(buf), nil
}

func (sb *S3Backend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.put(ctx, key, buf)
}

func (sb *S3Backend) RemoveObject(ctx context.Context, key string) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// RemoveObject succeeds for absent keys, so existence is checked first
	if _, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{}); err != nil {
		return mapError(err)
	}

	return mapError(sb.client.RemoveObject(ctx, sb.bucketName, key, minio.RemoveObjectOptions{}))
}

func (sb *S3Backend) put(ctx context.Context, key string, content []byte) error {
	_, err := sb.client.PutObject(ctx, sb.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	errResponse := minio.ToErrorResponse(err)
	if errResponse.Code == "NoSuchKey" {
		return data.ErrNotExist
	}

	return err
}

package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

func (ab *AWSBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	result, err := ab.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ab.bucket),
		Key:    aws.String(ab.objectKey(key)),
	})
	if err != nil {
		return nil, mapError(err)
	}

	stat := &data.ObjectStat{
		Key:  key,
		Size: aws.ToInt64(result.ContentLength),
		ETag: aws.ToString(result.ETag),
	}
	if result.LastModified != nil {
		stat.ModifyTime = *result.LastModified
	}

	return stat, nil
}

func (ab *AWSBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	stat, err := ab.StatObject(ctx, key)
	if err != nil {
		return 0, err
	}

	// Ranged GETs beyond the object end are rejected with InvalidRange
	if len(buf) == 0 || offset >= stat.Size {
		return 0, nil
	}

	end := min(offset+int64(len(buf)), stat.Size) - 1
	result, err := ab.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ab.bucket),
		Key:    aws.String(ab.objectKey(key)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end)),
	})
	if err != nil {
		return 0, mapError(err)
	}
	defer result.Body.Close()

	n, err := io.ReadFull(result.Body, buf[:end-offset+1])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, err
	}

	return n, nil
}

func (ab *AWSBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	existing, err := ab.readAll(ctx, key)
	if err != nil && !errors.Is(err, data.ErrNotExist) {
		return 0, err
	}

	if err := ab.put(ctx, key, backend.WriteAt(existing, offset, buf)); err != nil {
		return 0, err
	}

	return len(buf), nil
}

func (ab *AWSBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	return ab.put(ctx, key, buf)
}

func (ab *AWSBackend) RemoveObject(ctx context.Context, key string) error {
	// DeleteObject succeeds for absent keys, so existence is checked first
	if _, err := ab.StatObject(ctx, key); err != nil {
		return err
	}

	_, err := ab.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ab.bucket),
		Key:    aws.String(ab.objectKey(key)),
	})
	return mapError(err)
}

func (ab *AWSBackend) readAll(ctx context.Context, key string) ([]byte, error) {
	result, err := ab.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ab.bucket),
		Key:    aws.String(ab.objectKey(key)),
	})
	if err != nil {
		return nil, mapError(err)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

func (ab *AWSBackend) put(ctx context.Context, key string, content []byte) error {
	_, err := ab.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(ab.bucket),
		Key:           aws.String(ab.objectKey(key)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/octet-stream"),
	})
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return data.ErrNotExist
	}

	return err
}

// Package minio provides an ObjectStore backed by a MinIO server.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"gamemaker-server/core"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Options configures the MinIO client built by NewStore.
type Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

type minioStore struct {
	client *minio.Client
}

// NewStore connects to the MinIO endpoint. The endpoint may be given with or
// without an http(s) scheme; a scheme overrides UseSSL.
func NewStore(opts Options) (*minioStore, error) {
	endpoint, secure := opts.Endpoint, opts.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "http://"), false
	}

	client, err := minio.New(strings.TrimSuffix(endpoint, "/"), &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client *minio.Client) *minioStore {
	return &minioStore{client: client}
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *minioStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key}).Warn("Object not found")
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return obj, nil
}

func (s *minioStore) Put(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	opts := minio.PutObjectOptions{}
	if contentType != "" {
		opts.ContentType = contentType
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(content), int64(len(content)), opts)
	if err != nil {
		logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key}).WithError(err).Error("Failed to upload object")
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

func (s *minioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *minioStore) PreSignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expires, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *minioStore) Metadata(ctx context.Context, bucket, key string) (*core.ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return &core.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

func (s *minioStore) ListObjects(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	infos := make([]core.ObjectInfo, 0)
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	for obj := range s.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		infos = append(infos, core.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return infos, nil
}

var _ core.ObjectStore = (*minioStore)(nil)

// Package storage keeps generated panels.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
)

// MinioConfig describes an S3 compatible bucket.
type MinioConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PresignTTL time.Duration
	// URLCacheSize bounds how many presigned links are reused.
	URLCacheSize int
}

type presignedURL struct {
	url       string
	reuseTill time.Time
}

// MinioStore implements generation.MediaStore on MinIO/S3 and hands out
// presigned GET links.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
	urls       *lru.Cache
	now        func() time.Time
}

// NewMinioStore connects and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return newMinioStore(client, cfg)
}

func newMinioStore(client *minio.Client, cfg MinioConfig) (*MinioStore, error) {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	size := cfg.URLCacheSize
	if size <= 0 {
		size = 4096
	}
	urls, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("init url cache: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, presignTTL: ttl, urls: urls, now: time.Now}, nil
}

func objectKey(id string) string {
	return "panels/" + id
}

// Put uploads a panel.
func (m *MinioStore) Put(ctx context.Context, media *generation.Media) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectKey(media.ID),
		bytes.NewReader(media.Data), int64(len(media.Data)),
		minio.PutObjectOptions{ContentType: media.ContentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Get downloads a panel.
func (m *MinioStore) Get(ctx context.Context, id string) (*generation.Media, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, m.translate(id, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, m.translate(id, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return &generation.Media{ID: id, ContentType: info.ContentType, Data: data}, nil
}

// URL returns a presigned GET link. A link is handed out again until half of
// its lifetime has passed so session polls see stable URLs.
func (m *MinioStore) URL(ctx context.Context, id string) (string, error) {
	now := m.now()
	if cached, ok := m.urls.Get(id); ok {
		if entry := cached.(presignedURL); now.Before(entry.reuseTill) {
			return entry.url, nil
		}
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey(id), m.presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	m.urls.Add(id, presignedURL{url: u.String(), reuseTill: now.Add(m.presignTTL / 2)})
	return u.String(), nil
}

// Ping checks bucket reachability for readiness probes.
func (m *MinioStore) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

func (m *MinioStore) translate(id string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", generation.ErrMediaNotFound, id)
	}
	return fmt.Errorf("get object: %w", err)
}

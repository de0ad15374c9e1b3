package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by GetObject and DeleteObject when the
// requested key does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// Config contains the information required to talk to an object store.
type Config struct {
	Provider  string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	FSRoot    string
}

// Client represents the storage capabilities the pipeline expects.
// EnsureBucket is idempotent; DeleteObject reports a missing key as
// ErrNotFound rather than swallowing it, callers decide whether a miss
// matters.
type Client interface {
	EnsureBucket(ctx context.Context, bucket string) error
	UploadFile(ctx context.Context, localPath, bucket, key string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	Close() error
}

// New creates an object store client based on the given configuration.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "minio", "s3":
		return newMinioClient(cfg)
	case "fs":
		return newFSClient(cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

// UploadAll uploads every local file under bucket as <prefix>/<basename>.
// It is not transactional: the first failing artifact aborts the loop
// and whatever already uploaded stays in place.
func UploadAll(ctx context.Context, c Client, bucket, prefix string, files []string) error {
	for _, path := range files {
		key := filepath.Base(path)
		if prefix != "" {
			key = prefix + "/" + key
		}
		if err := c.UploadFile(ctx, path, bucket, key); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return nil
}

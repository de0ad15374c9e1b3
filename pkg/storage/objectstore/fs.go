package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// fsClient maps buckets to directories under a root path. It exists so
// tests and local development need no object-store daemon.
type fsClient struct {
	root string
}

func newFSClient(root string) (Client, error) {
	if root == "" {
		dir, err := os.MkdirTemp("", "audioflow-store-*")
		if err != nil {
			return nil, fmt.Errorf("create store root: %w", err)
		}
		root = dir
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &fsClient{root: root}, nil
}

func (f *fsClient) objectPath(bucket, key string) string {
	return filepath.Join(f.root, bucket, filepath.FromSlash(key))
}

func (f *fsClient) EnsureBucket(ctx context.Context, bucket string) error {
	return os.MkdirAll(filepath.Join(f.root, bucket), 0o755)
}

func (f *fsClient) UploadFile(ctx context.Context, localPath, bucket, key string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	dst := f.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create prefix dir: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (f *fsClient) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(f.objectPath(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (f *fsClient) DeleteObject(ctx context.Context, bucket, key string) error {
	err := os.Remove(f.objectPath(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (f *fsClient) Close() error {
	return nil
}

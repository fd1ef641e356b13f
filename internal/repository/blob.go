package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/joseph-ayodele/doc-intake/internal/common"
)

// BlobStore archives original files. Put is idempotent: writing a key that
// already exists succeeds without replacing the stored object.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// BlobKey names the archived original of a file: <owner>/<sha256><.ext>.
func BlobKey(ownerID, contentHash, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ownerID + "/" + contentHash + ext
}

// OpenBlobStore returns the GCS store when bucket is set, the directory store
// when dir is set, and nil otherwise.
func OpenBlobStore(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (BlobStore, func() error, error) {
	switch {
	case cfg.BlobBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		return NewGCSBlobStore(client.Bucket(cfg.BlobBucket), logger), client.Close, nil
	case cfg.BlobDir != "":
		return NewDirBlobStore(cfg.BlobDir, logger), func() error { return nil }, nil
	}
	return nil, func() error { return nil }, nil
}

type GCSBlobStore struct {
	bucket *storage.BucketHandle
	logger *slog.Logger
}

func NewGCSBlobStore(bucket *storage.BucketHandle, logger *slog.Logger) *GCSBlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSBlobStore{bucket: bucket, logger: logger}
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// Put writes the object only if it doesn't already exist.
func (s *GCSBlobStore) Put(ctx context.Context, key string, r io.Reader) error {
	writer := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			s.logger.Debug("blob already stored", "key", key)
			return nil
		}
		s.logger.Error("failed to copy content to GCS object", "key", key, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			s.logger.Debug("blob already stored", "key", key)
			return nil
		}
		s.logger.Error("failed to close GCS writer", "key", key, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func (s *GCSBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	return rc, nil
}

// DirBlobStore keeps originals under a local directory.
type DirBlobStore struct {
	root   string
	logger *slog.Logger
}

func NewDirBlobStore(root string, logger *slog.Logger) *DirBlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirBlobStore{root: root, logger: logger}
}

func (s *DirBlobStore) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: blob key %q", common.ErrInvalidInput, key)
	}
	return p, nil
}

func (s *DirBlobStore) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		s.logger.Debug("blob already stored", "key", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write blob: %w", err)
	}
	return f.Close()
}

func (s *DirBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

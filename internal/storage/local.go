package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalVideoStore writes videos under a directory on local disk. Used in
// development and single-node deployments; the router serves Root at /media.
type LocalVideoStore struct {
	Root    string
	BaseURL string
}

// NewLocalVideoStore creates the root directory if needed
func NewLocalVideoStore(root, baseURL string) (*LocalVideoStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalVideoStore{Root: root, BaseURL: baseURL}, nil
}

// SaveVideo writes data atomically via a temp file and rename
func (s *LocalVideoStore) SaveVideo(ctx context.Context, data []byte, accountID, filename, contentType string) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := videoKey(time.Now(), accountID, filename, contentType)
	path := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create video dir: %w", err)
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write video: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to finalize video: %w", err)
	}

	return &UploadResult{
		Key:  key,
		URL:  strings.TrimSuffix(s.BaseURL, "/") + "/media/" + key,
		Size: int64(len(data)),
	}, nil
}

// DeleteVideo removes a stored video. Missing files are not an error.
func (s *LocalVideoStore) DeleteVideo(ctx context.Context, key string) error {
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := os.Remove(filepath.Join(s.Root, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return nil
}

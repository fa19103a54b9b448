// Package local stores blobs on the local filesystem under a two-level
// hash fan-out, one file per unique content hash.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeos/graph-service/internal/config"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (registryblob.Store, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.BlobLocalPath == "" {
				return nil, fmt.Errorf("local blob store: FORGE_BLOB_PATH is required")
			}
			if err := os.MkdirAll(cfg.BlobLocalPath, 0o755); err != nil {
				return nil, fmt.Errorf("local blob store: create root: %w", err)
			}
			return &LocalStore{root: cfg.BlobLocalPath}, nil
		},
	})
}

type LocalStore struct {
	root string
}

func (s *LocalStore) path(hash string) string {
	a, b := registryblob.ShardPath(hash)
	return filepath.Join(s.root, a, b, hash)
}

func (s *LocalStore) Store(ctx context.Context, content string) (string, error) {
	if content == "" {
		return "", nil
	}
	ref := registryblob.Ref(content)
	hash, _ := registryblob.ParseRef(ref)
	path := s.path(hash)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("local blob store: create shard dir: %w", err)
	}
	// Write through a temp name so readers never see a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", fmt.Errorf("local blob store: create temp: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("local blob store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("local blob store: rename: %w", err)
	}
	return ref, nil
}

func (s *LocalStore) Resolve(ctx context.Context, ref string) (string, error) {
	hash, err := registryblob.ParseRef(ref)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path(hash))
	if os.IsNotExist(err) {
		return "", &registrystore.NotFoundError{Resource: "blob", ID: ref}
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	hash, err := registryblob.ParseRef(ref)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(s.path(hash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ registryblob.Store = (*LocalStore)(nil)

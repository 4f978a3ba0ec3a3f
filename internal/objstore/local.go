package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

// localStore maps bucket/key onto dir/bucket/key. It backs local runs and
// tests.
type localStore struct {
	dir    string
	bucket string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(ctx context.Context, args Args) (Store, error) {
	_ = ctx
	cfg := &localConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return NewLocal(cfg.Dir, args.Bucket), nil
}

func NewLocal(dir, bucket string) Store {
	if bucket == "" {
		bucket = "default"
	}
	return &localStore{dir: dir, bucket: bucket}
}

func (s *localStore) path(loc Location) (string, error) {
	bucket := loc.Bucket
	if bucket == "" {
		bucket = s.bucket
	}
	if loc.Key == "" {
		return "", fmt.Errorf("object key is required")
	}
	clean := filepath.Clean("/" + loc.Key)
	if strings.Contains(bucket, "/") || strings.Contains(bucket, "..") {
		return "", fmt.Errorf("invalid bucket name")
	}
	return filepath.Join(s.dir, bucket, clean), nil
}

func (s *localStore) Get(ctx context.Context, loc Location) (io.ReadCloser, error) {
	_ = ctx
	p, err := s.path(loc)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %s: %w", loc, appErr.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (s *localStore) Put(ctx context.Context, loc Location, body []byte, opts PutOptions) error {
	_ = ctx
	_ = opts
	p, err := s.path(loc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0o644)
}

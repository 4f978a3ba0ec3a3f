package objstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/xxxsen/wellmeet-pipeline/internal/config"
)

// Location addresses one object. An empty Bucket means the store's default
// bucket.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return l.Bucket + "/" + l.Key
}

type PutOptions struct {
	ContentType     string
	ContentEncoding string
}

type Store interface {
	Get(ctx context.Context, loc Location) (io.ReadCloser, error)
	Put(ctx context.Context, loc Location, body []byte, opts PutOptions) error
}

type Args struct {
	Bucket string
	AWS    aws.Config
	Data   interface{}
}

type Factory func(ctx context.Context, args Args) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(ctx context.Context, cfg config.StorageConfig, awsCfg aws.Config) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("storage.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	return factory(ctx, Args{Bucket: cfg.Bucket, AWS: awsCfg, Data: cfg.Data})
}

// Join builds an object key from a directory prefix and a name.
func Join(dir, name string) string {
	dir = strings.Trim(dir, "/")
	name = strings.TrimPrefix(name, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}

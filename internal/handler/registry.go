package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	appErr "github.com/xxxsen/wellmeet-pipeline/internal/pkg/errors"
)

// Func is one pipeline function: it takes the raw invocation event and
// returns a JSON-encodable result.
type Func func(ctx context.Context, event json.RawMessage) (interface{}, error)

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (Func, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("function %q: %w", name, appErr.ErrUnknownFunction)
	}
	return fn, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Invoke(ctx context.Context, name string, event json.RawMessage) (interface{}, error) {
	fn, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, event)
}

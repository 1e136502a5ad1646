// Package registry provides process-wide lazily-initialized shared
// instances. Concurrent first use of a key constructs exactly one instance;
// every caller observes the same one.
package registry

import (
	"fmt"
	"io"
	"sync"
)

// Registry holds named singletons. The zero value is not usable; call New.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]any
	order     []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{instances: make(map[string]any)}
}

var std = New()

// Default returns the process-wide registry.
func Default() *Registry { return std }

// Shared returns the instance stored under key, constructing it with ctor on
// first use. The fast path takes only a read lock; construction is
// serialized behind the write lock with a second existence check, so ctor
// runs at most once per key.
func Shared[T any](r *Registry, key string, ctor func() (T, error)) (T, error) {
	r.mu.RLock()
	v, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		return assert[T](key, v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.instances[key]; ok {
		return assert[T](key, v)
	}

	inst, err := ctor()
	if err != nil {
		var zero T
		return zero, err
	}
	r.instances[key] = inst
	r.order = append(r.order, key)
	return inst, nil
}

func assert[T any](key string, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("registry key %q holds %T, requested different type", key, v)
	}
	return t, nil
}

// Shutdown closes every constructed instance implementing io.Closer, in
// reverse construction order, and empties the registry. It returns the
// first close error encountered.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for i := len(r.order) - 1; i >= 0; i-- {
		if c, ok := r.instances[r.order[i]].(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	r.instances = make(map[string]any)
	r.order = nil
	return firstErr
}

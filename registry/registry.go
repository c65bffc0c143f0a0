// Package registry resolves the small integer ids carried in the
// StreamHeader to concrete capability implementations, so new backends
// can register themselves without touching the stream codec. The
// pipeline resolves cipher suite and compression ids through it; PRF
// ids and digest algorithm ids are resolved by packages kdf and digest
// directly.
//
// A sync.RWMutex-guarded map keyed by a fixed-size id, with
// Register/Get/Remove, generalized from "UUID -> user account" to
// "small integer id -> capability implementation".
package registry

import (
	"sync"

	"github.com/xtls/segflow/errs"
)

// Registry is a concurrency-safe id -> implementation table.
type Registry[T any] struct {
	mu    sync.RWMutex
	impls map[uint8]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{impls: make(map[uint8]T)}
}

// Register binds id to impl. Re-registering an id overwrites the
// previous binding; callers register once at init.
func (r *Registry[T]) Register(id uint8, impl T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[id] = impl
}

// Get resolves id to its bound implementation.
func (r *Registry[T]) Get(id uint8) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.impls[id]
	if !ok {
		var zero T
		return zero, errs.Protocol("registry_get", errUnknownID(id))
	}
	return impl, nil
}

// Remove unregisters id.
func (r *Registry[T]) Remove(id uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.impls, id)
}

type unknownIDError struct{ id uint8 }

func (e unknownIDError) Error() string {
	return "unknown registry id"
}

func errUnknownID(id uint8) error {
	return unknownIDError{id: id}
}

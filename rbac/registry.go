package rbac

import (
	"errors"
	"sync"
)

var (
	// ErrRegistryFrozen is returned when interning a new name after Freeze.
	ErrRegistryFrozen = errors.New("permission registry frozen")
	// ErrEmptyName is returned for empty permission or role names.
	ErrEmptyName = errors.New("name cannot be empty")
)

// Registry maps permission names to stable bit positions. Bits are assigned in
// registration order and never reused for the lifetime of the process.
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName []string
	frozen    bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{nameToBit: make(map[string]int)}
}

// Intern returns the bit for name, assigning the next free bit when name is new.
// After Freeze only already-known names resolve.
func (r *Registry) Intern(name string) (int, error) {
	if name == "" {
		return -1, ErrEmptyName
	}

	r.mu.RLock()
	bit, ok := r.nameToBit[name]
	r.mu.RUnlock()
	if ok {
		return bit, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if bit, ok := r.nameToBit[name]; ok {
		return bit, nil
	}
	if r.frozen {
		return -1, ErrRegistryFrozen
	}

	bit = len(r.bitToName)
	r.nameToBit[name] = bit
	r.bitToName = append(r.bitToName, name)
	return bit, nil
}

// Bit returns the bit for name, or false if it was never interned.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for bit, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.bitToName) {
		return "", false
	}
	return r.bitToName[bit], true
}

// Freeze locks the permission vocabulary. Roles can still be (re)defined from
// known names.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of interned permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bitToName)
}

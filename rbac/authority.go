package rbac

import (
	"sort"
	"sync"
)

// Authority holds role definitions and user role assignments.
//
// Authority is safe for concurrent use. Role definitions are snapshots: a role's
// mask is owned by the Authority and never shared with another role.
type Authority struct {
	registry *Registry

	mu    sync.RWMutex
	roles map[string]Mask
	users map[string]map[string]struct{}
}

// NewAuthority creates an Authority interning permissions into registry. A nil
// registry gets a fresh one.
func NewAuthority(registry *Registry) *Authority {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Authority{
		registry: registry,
		roles:    make(map[string]Mask),
		users:    make(map[string]map[string]struct{}),
	}
}

// Registry returns the permission registry backing a.
func (a *Authority) Registry() *Registry {
	return a.registry
}

func (a *Authority) maskOf(permissions []string) (Mask, error) {
	var m Mask
	for _, p := range permissions {
		bit, err := a.registry.Intern(p)
		if err != nil {
			return nil, err
		}
		m.Set(bit)
	}
	return m, nil
}

// DefineRole sets name's permissions, replacing any previous definition.
func (a *Authority) DefineRole(name string, permissions ...string) error {
	if name == "" {
		return ErrEmptyName
	}
	m, err := a.maskOf(permissions)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.roles[name] = m
	return nil
}

// ExtendRole defines name as base's current permissions plus additional. An
// undefined base contributes nothing.
func (a *Authority) ExtendRole(name, base string, additional ...string) error {
	if name == "" {
		return ErrEmptyName
	}
	extra, err := a.maskOf(additional)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.roles[name] = a.roles[base].Union(extra)
	return nil
}

// AssignRole grants role to userID. Assigning twice is a no-op. The role need
// not be defined yet; undefined roles grant nothing.
func (a *Authority) AssignRole(userID, role string) error {
	if userID == "" || role == "" {
		return ErrEmptyName
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	set, ok := a.users[userID]
	if !ok {
		set = make(map[string]struct{})
		a.users[userID] = set
	}
	set[role] = struct{}{}
	return nil
}

// RevokeRole removes one assignment. Missing assignments are ignored.
func (a *Authority) RevokeRole(userID, role string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	set, ok := a.users[userID]
	if !ok {
		return
	}
	delete(set, role)
	if len(set) == 0 {
		delete(a.users, userID)
	}
}

// Can reports whether any role assigned to userID grants permission.
func (a *Authority) Can(userID, permission string) bool {
	bit, ok := a.registry.Bit(permission)
	if !ok {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for role := range a.users[userID] {
		if a.roles[role].Has(bit) {
			return true
		}
	}
	return false
}

// HasRole reports whether role is assigned to userID.
func (a *Authority) HasRole(userID, role string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.users[userID][role]
	return ok
}

// Roles returns userID's assigned roles, sorted.
func (a *Authority) Roles(userID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]string, 0, len(a.users[userID]))
	for role := range a.users[userID] {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// Permissions returns the permissions granted by role, sorted. Undefined roles
// return an empty slice.
func (a *Authority) Permissions(role string) []string {
	a.mu.RLock()
	mask := a.roles[role].Clone()
	a.mu.RUnlock()

	out := make([]string, 0, mask.Count())
	for _, bit := range mask.Bits() {
		if name, ok := a.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RoleCount returns the number of defined roles.
func (a *Authority) RoleCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.roles)
}

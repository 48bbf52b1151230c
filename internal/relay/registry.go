package relay

import (
	"errors"
	"sync"
)

// ErrDuplicateIdentity means an identity was admitted while already live.
var ErrDuplicateIdentity = errors.New("duplicate connection identity")

// ConnID identifies one live connection. It is never sent to clients.
type ConnID string

// Registry maps live connection identities to their outboxes. All operations
// serialize on one mutex; callbacks run under it and must not block.
type Registry struct {
	mu      sync.Mutex
	entries map[ConnID]*Outbox
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ConnID]*Outbox)}
}

// Admit registers outbox under id.
func (r *Registry) Admit(id ConnID, outbox *Outbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return ErrDuplicateIdentity
	}
	r.entries[id] = outbox
	return nil
}

// Remove deletes id and closes its outbox. Returns false if id was absent.
func (r *Registry) Remove(id ConnID) bool {
	r.mu.Lock()
	outbox, exists := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !exists {
		return false
	}
	outbox.Close()
	return true
}

// ForEachExcept calls fn for every entry other than id, in no particular order.
func (r *Registry) ForEachExcept(id ConnID, fn func(ConnID, *Outbox)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for other, outbox := range r.entries {
		if other == id {
			continue
		}
		fn(other, outbox)
	}
}

// SendTo pushes f to id's outbox. An absent id is silently skipped and
// reported as (false, nil).
func (r *Registry) SendTo(id ConnID, f Frame) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outbox, exists := r.entries[id]
	if !exists {
		return false, nil
	}
	if err := outbox.Push(f); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.entries[id]
	return exists
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs returns a snapshot of the registered identities.
func (r *Registry) IDs() []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ConnID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

package document

import (
	"sync"

	"codehint/internal/errors"
)

// Registry owns the set of tracked documents, in registration order.
type Registry struct {
	mu      sync.RWMutex
	docs    []*Document
	byName  map[string]*Document
	deleted []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Document),
	}
}

// Register starts tracking buf under name. Names are unique.
func (r *Registry) Register(name string, buf Buffer) (*Document, error) {
	if name == "" {
		return nil, errors.New(errors.InvalidName, "document name is empty", nil)
	}
	if buf == nil {
		return nil, errors.Newf(errors.InvalidName, "document %q has no buffer", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return nil, errors.Newf(errors.DuplicateDocument, "document %q is already registered", name).
			WithDetails(map[string]string{"name": name})
	}

	doc := newDocument(name, buf)
	r.docs = append(r.docs, doc)
	r.byName[name] = doc
	if r.dropDeletedLocked(name) {
		// the engine still holds the old contents under this name
		doc.dirty = &DirtyRange{From: 0, To: buf.LineCount()}
	}
	return doc, nil
}

// FindByName looks a document up by its name.
func (r *Registry) FindByName(name string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byName[name]
	return doc, ok
}

// FindByInstance looks a document up by the identity of its buffer.
func (r *Registry) FindByInstance(buf Buffer) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs {
		if doc.buf == buf {
			return doc, true
		}
	}
	return nil, false
}

// Unregister stops tracking name. The engine is told to forget it on the next request.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	doc, ok := r.byName[name]
	if !ok {
		r.mu.Unlock()
		return errors.Newf(errors.DocumentNotFound, "no document named %q", name)
	}
	delete(r.byName, name)
	for i, d := range r.docs {
		if d == doc {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			break
		}
	}
	r.deleted = append(r.deleted, name)
	r.mu.Unlock()

	doc.close()
	return nil
}

// Documents returns a snapshot of the tracked documents in registration order.
func (r *Registry) Documents() []*Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// Len returns the number of tracked documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// TakeDeleted returns and clears the names unregistered since the last call.
func (r *Registry) TakeDeleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.deleted
	r.deleted = nil
	return out
}

// RestoreDeleted puts names back on the pending-delete list after a failed
// request. Names registered again in the meantime are skipped.
func (r *Registry) RestoreDeleted(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, live := r.byName[name]; live {
			continue
		}
		r.deleted = append(r.deleted, name)
	}
}

func (r *Registry) dropDeletedLocked(name string) bool {
	for i, n := range r.deleted {
		if n == name {
			r.deleted = append(r.deleted[:i], r.deleted[i+1:]...)
			return true
		}
	}
	return false
}

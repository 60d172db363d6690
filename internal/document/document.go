package document

import (
	"sync"
)

// Buffer is the live text of an open document. The editor owns it; this
// package only reads from it.
type Buffer interface {
	LineCount() int
	Line(n int) string
	Value() string
	// Range returns the text between two positions.
	Range(from, to Position) string
	TabSize() int
	// IndexFromPos and PosFromIndex convert between positions and
	// byte offsets from the start of the document.
	IndexFromPos(p Position) int
	PosFromIndex(off int) Position
}

// ChangeNotifier is implemented by buffers that can report edits as they happen.
// The returned function removes the subscription.
type ChangeNotifier interface {
	OnChange(fn func(Edit)) (cancel func())
}

// CachedCall is the last resolved call target used for argument hints.
type CachedCall struct {
	Pos   Position
	Value interface{}
}

// Document is one tracked buffer together with its dirty state.
type Document struct {
	name string
	buf  Buffer

	mu         sync.Mutex
	dirty      *DirtyRange
	cachedCall *CachedCall
	generation uint64
	edits      uint64
	detach     func()
}

func newDocument(name string, buf Buffer) *Document {
	return &Document{name: name, buf: buf}
}

// Name returns the unique key the engine knows the document by.
func (d *Document) Name() string {
	return d.name
}

// Buffer returns the live text handle.
func (d *Document) Buffer() Buffer {
	return d.buf
}

// LineCount is a convenience for d.Buffer().LineCount().
func (d *Document) LineCount() int {
	return d.buf.LineCount()
}

// Dirty returns the current dirty range, if any.
func (d *Document) Dirty() (DirtyRange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty == nil {
		return DirtyRange{}, false
	}
	return *d.dirty, true
}

// ApplyEdit merges e into the dirty range, drops the cached call target if
// the edit starts at or before it, and bumps the generation.
// It returns the merged range and whether the cached call was invalidated.
func (d *Document) ApplyEdit(e Edit) (DirtyRange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	merged := MergeEdit(d.dirty, e)
	d.dirty = &merged
	d.generation++
	d.edits++

	invalidated := false
	if c := d.cachedCall; c != nil {
		if c.Pos.Line > e.From.Line || (c.Pos.Line == e.From.Line && c.Pos.Ch >= e.From.Ch) {
			d.cachedCall = nil
			invalidated = true
		}
	}
	return merged, invalidated
}

// ClearDirty marks the document as fully known to the engine and returns the
// range that was cleared.
func (d *Document) ClearDirty() (DirtyRange, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty == nil {
		return DirtyRange{}, false
	}
	prev := *d.dirty
	d.dirty = nil
	return prev, true
}

// MarkDirty widens the dirty range to include r.
func (d *Document) MarkDirty(r DirtyRange) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty == nil {
		d.dirty = &r
		return
	}
	merged := d.dirty.Union(r)
	d.dirty = &merged
}

// MarkAllDirty marks every line of the document dirty.
func (d *Document) MarkAllDirty() {
	d.MarkDirty(DirtyRange{From: 0, To: d.buf.LineCount()})
}

// Generation identifies the document state that a query was built against.
func (d *Document) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// NextGeneration bumps and returns the generation. Replies carrying an older
// generation are stale.
func (d *Document) NextGeneration() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	return d.generation
}

// EditCount is the number of edits applied since registration.
func (d *Document) EditCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edits
}

// CachedCall returns the cached call target, if still valid.
func (d *Document) CachedCall() (CachedCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cachedCall == nil {
		return CachedCall{}, false
	}
	return *d.cachedCall, true
}

// SetCachedCall stores the call target resolved at pos.
func (d *Document) SetCachedCall(pos Position, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cachedCall = &CachedCall{Pos: pos, Value: value}
}

// SetDetach installs the function that removes the buffer subscription.
func (d *Document) SetDetach(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detach = fn
}

func (d *Document) close() {
	d.mu.Lock()
	fn := d.detach
	d.detach = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

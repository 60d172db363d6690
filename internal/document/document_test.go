package document

import (
	"strings"
	"testing"

	"codehint/internal/errors"
)

// fakeBuffer is a read-only Buffer over a fixed line slice.
type fakeBuffer struct {
	lines []string
}

func newFakeBuffer(n int) *fakeBuffer {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "x"
	}
	return &fakeBuffer{lines: lines}
}

func (b *fakeBuffer) LineCount() int    { return len(b.lines) }
func (b *fakeBuffer) Line(n int) string { return b.lines[n] }
func (b *fakeBuffer) Value() string     { return strings.Join(b.lines, "\n") }
func (b *fakeBuffer) TabSize() int      { return 4 }
func (b *fakeBuffer) Range(from, to Position) string {
	return b.Value()[b.IndexFromPos(from):b.IndexFromPos(to)]
}
func (b *fakeBuffer) IndexFromPos(p Position) int {
	off := 0
	for i := 0; i < p.Line; i++ {
		off += len(b.lines[i]) + 1
	}
	return off + p.Ch
}
func (b *fakeBuffer) PosFromIndex(off int) Position {
	for i, l := range b.lines {
		if off <= len(l) {
			return Pos(i, off)
		}
		off -= len(l) + 1
	}
	return Pos(len(b.lines)-1, len(b.lines[len(b.lines)-1]))
}

func TestDocument_ApplyEdit(t *testing.T) {
	doc := newDocument("a.js", newFakeBuffer(30))

	if _, ok := doc.Dirty(); ok {
		t.Fatal("new document should be clean")
	}

	gen := doc.Generation()
	r, _ := doc.ApplyEdit(Edit{From: Pos(5, 0), To: Pos(5, 0), Text: []string{"a", "b"}})
	if r != (DirtyRange{From: 5, To: 7}) {
		t.Errorf("ApplyEdit() = %+v, want {5 7}", r)
	}
	if got, ok := doc.Dirty(); !ok || got != r {
		t.Errorf("Dirty() = %+v, %v, want %+v, true", got, ok, r)
	}
	if doc.Generation() <= gen {
		t.Error("ApplyEdit should bump the generation")
	}
	if doc.EditCount() != 1 {
		t.Errorf("EditCount() = %d, want 1", doc.EditCount())
	}

	prev, ok := doc.ClearDirty()
	if !ok || prev != r {
		t.Errorf("ClearDirty() = %+v, %v, want %+v, true", prev, ok, r)
	}
	if _, ok := doc.Dirty(); ok {
		t.Error("document should be clean after ClearDirty")
	}
}

func TestDocument_CachedCallInvalidation(t *testing.T) {
	tests := []struct {
		name        string
		cached      Position
		edit        Position
		invalidated bool
	}{
		{"edit on earlier line", Pos(10, 4), Pos(3, 0), true},
		{"edit same line before", Pos(10, 4), Pos(10, 2), true},
		{"edit exactly at", Pos(10, 4), Pos(10, 4), true},
		{"edit same line after", Pos(10, 4), Pos(10, 5), false},
		{"edit on later line", Pos(10, 4), Pos(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newDocument("a.js", newFakeBuffer(30))
			doc.SetCachedCall(tt.cached, "fn(a: number)")

			_, got := doc.ApplyEdit(Edit{From: tt.edit, To: tt.edit, Text: []string{"z"}})
			if got != tt.invalidated {
				t.Errorf("invalidated = %v, want %v", got, tt.invalidated)
			}
			_, stillCached := doc.CachedCall()
			if stillCached == tt.invalidated {
				t.Errorf("CachedCall present = %v, want %v", stillCached, !tt.invalidated)
			}
		})
	}
}

func TestDocument_MarkDirty(t *testing.T) {
	doc := newDocument("a.js", newFakeBuffer(30))

	doc.MarkDirty(DirtyRange{From: 5, To: 8})
	doc.MarkDirty(DirtyRange{From: 2, To: 6})
	if got, _ := doc.Dirty(); got != (DirtyRange{From: 2, To: 8}) {
		t.Errorf("Dirty() = %+v, want {2 8}", got)
	}

	doc.MarkAllDirty()
	if got, _ := doc.Dirty(); got != (DirtyRange{From: 0, To: 30}) {
		t.Errorf("Dirty() = %+v, want {0 30}", got)
	}
}

func TestRegistry_RegisterAndFind(t *testing.T) {
	reg := NewRegistry()
	buf := newFakeBuffer(3)

	doc, err := reg.Register("a.js", buf)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got, ok := reg.FindByName("a.js"); !ok || got != doc {
		t.Error("FindByName should return the registered document")
	}
	if got, ok := reg.FindByInstance(buf); !ok || got != doc {
		t.Error("FindByInstance should return the registered document")
	}
	if _, ok := reg.FindByInstance(newFakeBuffer(3)); ok {
		t.Error("FindByInstance should not match a different buffer")
	}
	if _, ok := reg.FindByName("b.js"); ok {
		t.Error("FindByName should miss unknown names")
	}
}

func TestRegistry_RegisterErrors(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Register("a.js", newFakeBuffer(1)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		docName string
		buf     Buffer
		code    errors.ErrorCode
	}{
		{"duplicate", "a.js", newFakeBuffer(1), errors.DuplicateDocument},
		{"empty name", "", newFakeBuffer(1), errors.InvalidName},
		{"nil buffer", "c.js", nil, errors.InvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Register(tt.docName, tt.buf)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Register() error = %v, want code %s", err, tt.code)
			}
		})
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	doc, _ := reg.Register("a.js", newFakeBuffer(3))
	_, _ = reg.Register("b.js", newFakeBuffer(3))

	detached := false
	doc.SetDetach(func() { detached = true })

	if err := reg.Unregister("a.js"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if !detached {
		t.Error("Unregister should remove the buffer subscription")
	}
	if _, ok := reg.FindByName("a.js"); ok {
		t.Error("unregistered document should not be found")
	}
	if docs := reg.Documents(); len(docs) != 1 || docs[0].Name() != "b.js" {
		t.Errorf("Documents() = %v, want [b.js]", docs)
	}
	if err := reg.Unregister("a.js"); !errors.HasCode(err, errors.DocumentNotFound) {
		t.Errorf("second Unregister() error = %v, want DOCUMENT_NOT_FOUND", err)
	}

	deleted := reg.TakeDeleted()
	if len(deleted) != 1 || deleted[0] != "a.js" {
		t.Errorf("TakeDeleted() = %v, want [a.js]", deleted)
	}
	if again := reg.TakeDeleted(); len(again) != 0 {
		t.Errorf("TakeDeleted() twice = %v, want empty", again)
	}

	reg.RestoreDeleted(deleted)
	if got := reg.TakeDeleted(); len(got) != 1 {
		t.Errorf("after RestoreDeleted, TakeDeleted() = %v, want [a.js]", got)
	}
}

func TestRegistry_ReregisterAfterPendingDelete(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Register("a.js", newFakeBuffer(3))
	_ = reg.Unregister("a.js")

	doc, err := reg.Register("a.js", newFakeBuffer(5))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got, ok := doc.Dirty(); !ok || got != (DirtyRange{From: 0, To: 5}) {
		t.Errorf("Dirty() = %+v, %v, want {0 5}, true", got, ok)
	}
	if deleted := reg.TakeDeleted(); len(deleted) != 0 {
		t.Errorf("TakeDeleted() = %v, want empty", deleted)
	}
}

// Package textbuf is an in-memory document.Buffer that reports every
// mutation as a document.Edit. The CLI and tests use it in place of an
// editor buffer.
package textbuf

import (
	"strings"
	"sync"

	"codehint/internal/document"
)

// Buffer is a line-oriented text buffer.
type Buffer struct {
	// editMu keeps edits and their notifications in one order
	editMu    sync.Mutex
	mu        sync.RWMutex
	lines     []string
	tabSize   int
	listeners map[int]func(document.Edit)
	nextID    int
}

// New creates a buffer holding text.
func New(text string) *Buffer {
	return &Buffer{
		lines:     splitLines(text),
		tabSize:   4,
		listeners: make(map[int]func(document.Edit)),
	}
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// SetTabSize changes the tab width used for indentation.
func (b *Buffer) SetTabSize(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > 0 {
		b.tabSize = n
	}
}

func (b *Buffer) TabSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tabSize
}

func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Line returns line n, or "" when n is out of range.
func (b *Buffer) Line(n int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n < 0 || n >= len(b.lines) {
		return ""
	}
	return b.lines[n]
}

func (b *Buffer) Value() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}

func (b *Buffer) Range(from, to document.Position) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	from, to = b.clip(from), b.clip(to)
	if to.Before(from) {
		from, to = to, from
	}
	if from.Line == to.Line {
		return b.lines[from.Line][from.Ch:to.Ch]
	}
	var sb strings.Builder
	sb.WriteString(b.lines[from.Line][from.Ch:])
	for i := from.Line + 1; i < to.Line; i++ {
		sb.WriteByte('\n')
		sb.WriteString(b.lines[i])
	}
	sb.WriteByte('\n')
	sb.WriteString(b.lines[to.Line][:to.Ch])
	return sb.String()
}

func (b *Buffer) IndexFromPos(p document.Position) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p = b.clip(p)
	off := 0
	for i := 0; i < p.Line; i++ {
		off += len(b.lines[i]) + 1
	}
	return off + p.Ch
}

func (b *Buffer) PosFromIndex(off int) document.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if off < 0 {
		off = 0
	}
	for i, l := range b.lines {
		if off <= len(l) {
			return document.Pos(i, off)
		}
		off -= len(l) + 1
	}
	last := len(b.lines) - 1
	return document.Pos(last, len(b.lines[last]))
}

// clip bounds p to the buffer. Callers hold the lock.
func (b *Buffer) clip(p document.Position) document.Position {
	last := len(b.lines) - 1
	if p.Line < 0 {
		return document.Pos(0, 0)
	}
	if p.Line > last {
		return document.Pos(last, len(b.lines[last]))
	}
	if p.Ch < 0 {
		p.Ch = 0
	}
	if n := len(b.lines[p.Line]); p.Ch > n {
		p.Ch = n
	}
	return p
}

// Replace swaps the text in [from, to) for text and notifies listeners in
// subscription order. It returns the edit that was applied.
func (b *Buffer) Replace(from, to document.Position, text string) document.Edit {
	b.editMu.Lock()
	defer b.editMu.Unlock()

	b.mu.Lock()
	from, to = b.clip(from), b.clip(to)
	if to.Before(from) {
		from, to = to, from
	}

	inserted := splitLines(text)
	edit := document.Edit{From: from, To: to, Text: inserted}

	head := b.lines[from.Line][:from.Ch]
	tail := b.lines[to.Line][to.Ch:]
	repl := make([]string, len(inserted))
	copy(repl, inserted)
	repl[0] = head + repl[0]
	repl[len(repl)-1] += tail

	lines := make([]string, 0, len(b.lines)-(to.Line-from.Line)+len(repl)-1)
	lines = append(lines, b.lines[:from.Line]...)
	lines = append(lines, repl...)
	lines = append(lines, b.lines[to.Line+1:]...)
	b.lines = lines

	listeners := b.snapshotListeners()
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(edit)
	}
	return edit
}

// Insert adds text at p.
func (b *Buffer) Insert(p document.Position, text string) document.Edit {
	return b.Replace(p, p, text)
}

// Delete removes the text in [from, to).
func (b *Buffer) Delete(from, to document.Position) document.Edit {
	return b.Replace(from, to, "")
}

// SetValue replaces the whole contents.
func (b *Buffer) SetValue(text string) document.Edit {
	b.mu.RLock()
	last := len(b.lines) - 1
	end := document.Pos(last, len(b.lines[last]))
	b.mu.RUnlock()
	return b.Replace(document.Pos(0, 0), end, text)
}

// OnChange subscribes fn to every edit. The returned func unsubscribes.
func (b *Buffer) OnChange(fn func(document.Edit)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *Buffer) snapshotListeners() []func(document.Edit) {
	out := make([]func(document.Edit), 0, len(b.listeners))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.listeners[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

var (
	_ document.Buffer         = (*Buffer)(nil)
	_ document.ChangeNotifier = (*Buffer)(nil)
)

package document

import "fmt"

// Position is a zero-based line/character address inside a document.
// Ch counts bytes within the line.
type Position struct {
	Line int `json:"line" yaml:"line"`
	Ch   int `json:"ch" yaml:"ch"`
}

// Pos is shorthand for Position{Line: line, Ch: ch}.
func Pos(line, ch int) Position {
	return Position{Line: line, Ch: ch}
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Ch < o.Ch)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Ch)
}

// Edit describes one incremental text mutation: the range [From, To) in the
// pre-edit document is replaced by Text, one element per resulting line.
// Text always has at least one element; a pure deletion carries [""].
type Edit struct {
	From Position `json:"from"`
	To   Position `json:"to"`
	Text []string `json:"text"`
}

// InsertedEndLine is the last line touched by the inserted text, in post-edit numbering.
func (e Edit) InsertedEndLine() int {
	n := len(e.Text)
	if n == 0 {
		n = 1
	}
	return e.From.Line + n - 1
}

// LineDelta is the net number of lines the edit adds (negative when it removes lines).
func (e Edit) LineDelta() int {
	return e.InsertedEndLine() - e.To.Line
}

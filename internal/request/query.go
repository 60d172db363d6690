package request

import (
	"encoding/json"

	"codehint/internal/document"
)

// Common query types.
const (
	TypeCompletions = "completions"
	TypeType        = "type"
	TypeDefinition  = "definition"
	TypeDocs        = "documentation"
	TypeRefs        = "refs"
)

// Query is the engine operation a request carries.
type Query struct {
	Type string
	// Start is set only when a selection exists.
	Start *document.Position
	// End is filled from the selection when nil.
	End               *document.Position
	File              FileRef
	LineCharPositions bool
	Flags             Flags
}

// Flags are optional engine switches passed through verbatim.
type Flags struct {
	Types           bool
	Docs            bool
	URLs            bool
	Origins         bool
	CaseInsensitive bool
	PreferFunction  bool
	// Extra holds engine-specific keys not modeled above.
	Extra map[string]interface{}
}

// NewQuery wraps a query type shorthand.
func NewQuery(typ string) Query {
	return Query{Type: typ}
}

// At sets an explicit end position.
func (q Query) At(p document.Position) Query {
	q.End = &p
	return q
}

func (q Query) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, 8+len(q.Flags.Extra))
	for k, v := range q.Flags.Extra {
		m[k] = v
	}
	m["type"] = q.Type
	if q.Start != nil {
		m["start"] = q.Start
	}
	if q.End != nil {
		m["end"] = q.End
	}
	if !q.File.IsZero() {
		m["file"] = q.File
	}
	if q.LineCharPositions {
		m["lineCharPositions"] = true
	}
	setFlag(m, "types", q.Flags.Types)
	setFlag(m, "docs", q.Flags.Docs)
	setFlag(m, "urls", q.Flags.URLs)
	setFlag(m, "origins", q.Flags.Origins)
	setFlag(m, "caseInsensitive", q.Flags.CaseInsensitive)
	setFlag(m, "preferFunction", q.Flags.PreferFunction)
	return json.Marshal(m)
}

func setFlag(m map[string]interface{}, key string, on bool) {
	if on {
		m[key] = true
	}
}

// Selection is the editor's cursor or selected range.
type Selection struct {
	From document.Position
	To   document.Position
}

// Cursor is an empty selection at p.
func Cursor(p document.Position) Selection {
	return Selection{From: p, To: p}
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.From == s.To
}

// normalized orders the endpoints.
func (s Selection) normalized() Selection {
	if s.To.Before(s.From) {
		s.From, s.To = s.To, s.From
	}
	return s
}

// resolve fills End (and Start, for a non-empty selection) when the caller
// did not supply them.
func (q *Query) resolve(sel Selection) {
	if q.End != nil {
		return
	}
	sel = sel.normalized()
	end := sel.To
	q.End = &end
	if !sel.Empty() {
		start := sel.From
		q.Start = &start
	}
}

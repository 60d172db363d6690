package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"codehint/internal/document"
	"codehint/internal/errors"
	"codehint/internal/fragment"
	"codehint/internal/request"
)

var identRe = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)

// WordEngine is a minimal in-process engine. It completes identifiers seen
// in known files and definition globals, and reports function signatures
// for type queries. It is enough to drive the local transport end to end.
type WordEngine struct {
	mu      sync.Mutex
	files   map[string]string
	known   map[string]bool
	globals map[string]string
	getFile FileGetter
}

// NewWordEngine is an EngineFactory.
func NewWordEngine(cfg EngineConfig) (Engine, error) {
	e := &WordEngine{
		files:   make(map[string]string),
		known:   make(map[string]bool),
		globals: make(map[string]string),
		getFile: cfg.GetFile,
	}
	for i, raw := range cfg.Defs {
		var def map[string]json.RawMessage
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("definition %d: %w", i, err)
		}
		for name, body := range def {
			if strings.HasPrefix(name, "!") {
				continue
			}
			e.globals[name] = defType(body)
		}
	}
	return e, nil
}

// defType extracts a "!type" annotation from a definition entry.
func defType(body json.RawMessage) string {
	var s string
	if json.Unmarshal(body, &s) == nil {
		return s
	}
	var obj struct {
		Type string `json:"!type"`
	}
	if json.Unmarshal(body, &obj) == nil && obj.Type != "" {
		return obj.Type
	}
	return ""
}

// AddFile implements Engine.
func (e *WordEngine) AddFile(name string) {
	e.mu.Lock()
	e.known[name] = true
	e.mu.Unlock()
}

// Files returns the names of files the engine holds text for.
func (e *WordEngine) Files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.files))
	for n := range e.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Request implements Engine.
func (e *WordEngine) Request(ctx context.Context, req *request.Request) (json.RawMessage, error) {
	e.mu.Lock()
	for _, f := range req.Files {
		switch f.Kind {
		case fragment.Full:
			e.files[f.Name] = f.Text
		case fragment.Delete:
			delete(e.files, f.Name)
			delete(e.known, f.Name)
		}
	}
	e.mu.Unlock()

	q := req.Query
	if q == nil {
		return json.RawMessage(`{}`), nil
	}
	text, err := e.queryText(ctx, req)
	if err != nil {
		return nil, err
	}
	if q.End == nil {
		return nil, errors.New(errors.InvalidQuery, "query has no end position", nil)
	}

	switch q.Type {
	case request.TypeCompletions:
		return e.completions(q, text)
	case request.TypeType:
		return e.typeAt(q, text)
	default:
		return nil, errors.Newf(errors.InvalidQuery, "unsupported query type %q", q.Type)
	}
}

func (e *WordEngine) queryText(ctx context.Context, req *request.Request) (string, error) {
	if i, ok := req.Query.File.Index(); ok {
		if i >= len(req.Files) {
			return "", errors.Newf(errors.InvalidQuery, "file reference #%d out of range", i)
		}
		return req.Files[i].Text, nil
	}
	name, _ := req.Query.File.Name()

	e.mu.Lock()
	text, ok := e.files[name]
	e.mu.Unlock()
	if ok {
		return text, nil
	}
	if e.getFile == nil {
		return "", errors.Newf(errors.FileReadFailure, "unknown file %s", name)
	}
	text, err := e.getFile(ctx, name)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	e.files[name] = text
	e.mu.Unlock()
	return text, nil
}

func (e *WordEngine) completions(q *request.Query, text string) (json.RawMessage, error) {
	lines := strings.Split(text, "\n")
	end := clampPos(lines, *q.End)
	line := lines[end.Line]

	from := end.Ch
	for from > 0 && isIdentByte(line[from-1]) {
		from--
	}
	prefix := line[from:end.Ch]
	match := strings.HasPrefix
	if q.Flags.CaseInsensitive {
		match = func(s, p string) bool {
			return strings.HasPrefix(strings.ToLower(s), strings.ToLower(p))
		}
	}

	e.mu.Lock()
	seen := make(map[string]string)
	for _, src := range append(e.texts(), text) {
		for _, w := range identRe.FindAllString(src, -1) {
			if _, ok := seen[w]; !ok {
				seen[w] = ""
			}
		}
	}
	for g, typ := range e.globals {
		seen[g] = typ
	}
	e.mu.Unlock()

	type item struct {
		Name string `json:"name"`
		Type string `json:"type,omitempty"`
	}
	items := make([]item, 0)
	for w, typ := range seen {
		if w == prefix || !match(w, prefix) {
			continue
		}
		it := item{Name: w}
		if q.Flags.Types {
			it.Type = typ
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	start := document.Pos(end.Line, from)
	return json.Marshal(map[string]interface{}{
		"start":       location(q, lines, start),
		"end":         location(q, lines, end),
		"completions": items,
		"isProperty":  from > 0 && line[from-1] == '.',
	})
}

func (e *WordEngine) typeAt(q *request.Query, text string) (json.RawMessage, error) {
	lines := strings.Split(text, "\n")
	pos := clampPos(lines, *q.End)
	line := lines[pos.Line]

	from, to := pos.Ch, pos.Ch
	for from > 0 && isIdentByte(line[from-1]) {
		from--
	}
	for to < len(line) && isIdentByte(line[to]) {
		to++
	}
	word := line[from:to]
	if word == "" {
		return json.Marshal(map[string]interface{}{"type": "?", "guess": true})
	}

	e.mu.Lock()
	sources := append(e.texts(), text)
	global, isGlobal := e.globals[word]
	e.mu.Unlock()

	decl := regexp.MustCompile(`(?:function\s+` + regexp.QuoteMeta(word) + `|` +
		regexp.QuoteMeta(word) + `\s*[=:]\s*function)\s*\(([^)]*)\)`)
	for _, src := range sources {
		if m := decl.FindStringSubmatch(src); m != nil {
			return json.Marshal(map[string]interface{}{
				"type": "fn(" + normalizeParams(m[1]) + ")",
				"name": word,
			})
		}
	}
	if isGlobal && global != "" {
		return json.Marshal(map[string]interface{}{"type": global, "name": word})
	}
	return json.Marshal(map[string]interface{}{"type": "?", "name": word, "guess": true})
}

// texts must be called with e.mu held.
func (e *WordEngine) texts() []string {
	out := make([]string, 0, len(e.files))
	for _, t := range e.files {
		out = append(out, t)
	}
	return out
}

func normalizeParams(s string) string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func location(q *request.Query, lines []string, p document.Position) interface{} {
	if q.LineCharPositions {
		return p
	}
	off := 0
	for i := 0; i < p.Line; i++ {
		off += len(lines[i]) + 1
	}
	return off + p.Ch
}

func clampPos(lines []string, p document.Position) document.Position {
	if p.Line < 0 {
		p.Line = 0
	}
	if p.Line >= len(lines) {
		p.Line = len(lines) - 1
	}
	if p.Ch < 0 {
		p.Ch = 0
	}
	if p.Ch > len(lines[p.Line]) {
		p.Ch = len(lines[p.Line])
	}
	return p
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

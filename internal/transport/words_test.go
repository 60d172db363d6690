package transport

import (
	"context"
	"encoding/json"
	"testing"

	"codehint/internal/document"
	"codehint/internal/errors"
	"codehint/internal/fragment"
	"codehint/internal/request"
)

func newWords(t *testing.T, defs ...string) *WordEngine {
	t.Helper()
	raw := make([]json.RawMessage, len(defs))
	for i, d := range defs {
		raw[i] = json.RawMessage(d)
	}
	e, err := NewWordEngine(EngineConfig{Defs: raw})
	if err != nil {
		t.Fatalf("NewWordEngine() error = %v", err)
	}
	return e.(*WordEngine)
}

func TestWordEngine_Completions(t *testing.T) {
	e := newWords(t, `{"!name":"ecma5","parseInt":"fn(string: string) -> number","parseFloat":{"!type":"fn(string: string) -> number"}}`)

	text := "var counter = 0;\nfunction countUp() {}\ncou\nparse"
	q := request.NewQuery(request.TypeCompletions).At(document.Pos(2, 3))
	q.File = request.ByName("a.js")
	q.LineCharPositions = true

	raw, err := e.Request(context.Background(), &request.Request{
		Query: &q,
		Files: []fragment.Fragment{{Kind: fragment.Full, Name: "a.js", Text: text}},
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	resp, err := request.DecodeCompletions(raw)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Start.Pos != document.Pos(2, 0) || resp.End.Pos != document.Pos(2, 3) {
		t.Errorf("range = %v..%v, want 2:0..2:3", resp.Start.Pos, resp.End.Pos)
	}
	names := make([]string, len(resp.Completions))
	for i, c := range resp.Completions {
		names[i] = c.Name
	}
	if len(names) != 2 || names[0] != "countUp" || names[1] != "counter" {
		t.Errorf("completions = %v, want [countUp counter]", names)
	}

	q2 := request.NewQuery(request.TypeCompletions).At(document.Pos(3, 5))
	q2.File = request.ByName("a.js")
	q2.Flags.Types = true
	raw, err = e.Request(context.Background(), &request.Request{Query: &q2})
	if err != nil {
		t.Fatal(err)
	}
	resp, err = request.DecodeCompletions(raw)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Start.IsPos || resp.Start.Offset != 43 {
		t.Errorf("Start = %+v, want offset 43", resp.Start)
	}
	if len(resp.Completions) != 2 {
		t.Fatalf("completions = %+v, want parseFloat and parseInt", resp.Completions)
	}
	if c := resp.Completions[0]; c.Name != "parseFloat" || c.Type != "fn(string: string) -> number" {
		t.Errorf("completions[0] = %+v", c)
	}
}

func TestWordEngine_FragmentQuery(t *testing.T) {
	e := newWords(t)
	q := request.NewQuery(request.TypeType).At(document.Pos(1, 4))
	q.File = request.FragmentIndex(0)

	raw, err := e.Request(context.Background(), &request.Request{
		Query: &q,
		Files: []fragment.Fragment{{
			Kind:        fragment.Part,
			Name:        "big.js",
			OffsetLines: 120,
			Text:        "function add(a, b) {\n    add(1, 2);\n}",
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := request.DecodeType(raw)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Type != "fn(a, b)" || resp.Name != "add" {
		t.Errorf("type = %+v, want fn(a, b) named add", resp)
	}
	if len(e.Files()) != 0 {
		t.Errorf("part entries should not be stored, got %v", e.Files())
	}
}

func TestWordEngine_FilesAndDeletes(t *testing.T) {
	e := newWords(t)
	ctx := context.Background()

	_, err := e.Request(ctx, &request.Request{Files: []fragment.Fragment{
		{Kind: fragment.Full, Name: "a.js", Text: "a"},
		{Kind: fragment.Full, Name: "b.js", Text: "b"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Request(ctx, &request.Request{Files: []fragment.Fragment{fragment.Deleted("a.js")}})
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Files(); len(got) != 1 || got[0] != "b.js" {
		t.Errorf("Files() = %v, want [b.js]", got)
	}
}

func TestWordEngine_UsesGetFile(t *testing.T) {
	e, err := NewWordEngine(EngineConfig{GetFile: func(ctx context.Context, name string) (string, error) {
		if name == "lib.js" {
			return "function helper(x) {}", nil
		}
		return "", errors.Newf(errors.FileReadFailure, "no %s", name)
	}})
	if err != nil {
		t.Fatal(err)
	}

	q := request.NewQuery(request.TypeType).At(document.Pos(0, 10))
	q.File = request.ByName("lib.js")
	raw, err := e.Request(context.Background(), &request.Request{Query: &q})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	resp, _ := request.DecodeType(raw)
	if resp.Type != "fn(x)" {
		t.Errorf("type = %q, want fn(x)", resp.Type)
	}

	q.File = request.ByName("other.js")
	if _, err := e.Request(context.Background(), &request.Request{Query: &q}); !errors.HasCode(err, errors.FileReadFailure) {
		t.Errorf("Request(unknown file) error = %v, want FILE_READ_FAILURE", err)
	}
}

func TestWordEngine_Errors(t *testing.T) {
	if _, err := NewWordEngine(EngineConfig{Defs: []json.RawMessage{json.RawMessage(`[1]`)}}); err == nil {
		t.Error("NewWordEngine() should reject non-object definitions")
	}

	e := newWords(t)
	q := request.NewQuery("refs").At(document.Pos(0, 0))
	q.File = request.ByName("a.js")
	_, err := e.Request(context.Background(), &request.Request{
		Query: &q,
		Files: []fragment.Fragment{{Kind: fragment.Full, Name: "a.js", Text: "x"}},
	})
	if !errors.HasCode(err, errors.InvalidQuery) {
		t.Errorf("Request(refs) error = %v, want INVALID_QUERY", err)
	}
}

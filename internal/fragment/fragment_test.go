package fragment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"codehint/internal/document"
	"codehint/internal/slogutil"
	"codehint/internal/textbuf"
)

func newDoc(t *testing.T, text string) *document.Document {
	t.Helper()
	doc, err := document.NewRegistry().Register("a.js", textbuf.New(text))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func newBuilder() *Builder {
	return NewBuilder(DefaultOptions(), Lexer{}, slogutil.NewDiscardLogger())
}

// topLevelFunctions returns n ten-line functions at indentation 0.
func topLevelFunctions(n int) string {
	var sb strings.Builder
	for f := 0; f < n; f++ {
		fmt.Fprintf(&sb, "function f%d(x) {\n", f)
		for j := 1; j <= 8; j++ {
			fmt.Fprintf(&sb, "  var v%d = x + %d;\n", j, j)
		}
		sb.WriteString("}")
		if f < n-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func TestCountColumn(t *testing.T) {
	tests := []struct {
		line string
		tab  int
		want int
	}{
		{"x", 4, 0},
		{"    x", 4, 4},
		{"\tx", 4, 4},
		{"  \tx", 4, 4},
		{"\t\tx", 4, 8},
		{" \t x", 4, 5},
		{"\tx", 8, 8},
		{"", 4, 0},
		{"   ", 4, 3},
	}
	for _, tt := range tests {
		if got := CountColumn(tt.line, tt.tab); got != tt.want {
			t.Errorf("CountColumn(%q, %d) = %d, want %d", tt.line, tt.tab, got, tt.want)
		}
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("") || !IsBlank(" \t ") {
		t.Error("whitespace-only lines should be blank")
	}
	if IsBlank("  }") {
		t.Error("IsBlank(\"  }\") = true, want false")
	}
}

func TestBuilder_TopLevelFunction(t *testing.T) {
	doc := newDoc(t, topLevelFunctions(30))
	b := newBuilder()

	frag := b.Around(context.Background(), doc, document.Pos(14, 3), document.Pos(14, 3))

	if frag.Kind != Part {
		t.Errorf("Kind = %q, want part", frag.Kind)
	}
	if frag.Name != "a.js" {
		t.Errorf("Name = %q, want a.js", frag.Name)
	}
	if frag.OffsetLines != 10 {
		t.Errorf("OffsetLines = %d, want 10 (declaration of f1)", frag.OffsetLines)
	}
	lines := strings.Split(frag.Text, "\n")
	if lines[0] != "function f1(x) {" {
		t.Errorf("first fragment line = %q", lines[0])
	}
	if !strings.HasPrefix(frag.Text, "function f1(x) {\n") || strings.Contains(frag.Text, "function f2") {
		t.Errorf("fragment should hold only f1:\n%s", frag.Text)
	}
	queryLine := 14 - frag.OffsetLines
	if queryLine < 0 || queryLine >= len(lines)-1 {
		t.Errorf("query line %d not inside fragment of %d lines", 14, len(lines))
	}
}

func TestBuilder_NestedPicksOutermost(t *testing.T) {
	text := strings.Join([]string{
		"function outer() {",
		"  function inner() {",
		"    var a;",
		"    return a;",
		"  }",
		"  var b;",
		"}",
		"var after = 1;",
	}, "\n")
	doc := newDoc(t, text)

	frag := newBuilder().Around(context.Background(), doc, document.Pos(3, 4), document.Pos(3, 4))
	if frag.OffsetLines != 0 {
		t.Errorf("OffsetLines = %d, want 0", frag.OffsetLines)
	}
	want := strings.Join([]string{
		"function outer() {",
		"  function inner() {",
		"    var a;",
		"    return a;",
		"  }",
		"  var b;",
		"",
	}, "\n")
	if frag.Text != want {
		t.Errorf("Text = %q, want %q", frag.Text, want)
	}
}

func TestBuilder_CommentedKeywordIgnored(t *testing.T) {
	text := strings.Join([]string{
		"// function old() {",
		"  function real() {",
		"    x();",
		"  }",
		"var y;",
	}, "\n")
	doc := newDoc(t, text)

	frag := newBuilder().Around(context.Background(), doc, document.Pos(2, 4), document.Pos(2, 4))
	if frag.OffsetLines != 1 {
		t.Errorf("OffsetLines = %d, want 1", frag.OffsetLines)
	}
	if frag.Text != "  function real() {\n    x();\n" {
		t.Errorf("Text = %q", frag.Text)
	}
}

func TestBuilder_BlankLinesDoNotEndFragment(t *testing.T) {
	text := strings.Join([]string{
		"function f() {",
		"  var a;",
		"",
		"  return a;",
		"}",
		"var z;",
	}, "\n")
	doc := newDoc(t, text)

	frag := newBuilder().Around(context.Background(), doc, document.Pos(1, 2), document.Pos(1, 2))
	if !strings.Contains(frag.Text, "return a;") {
		t.Errorf("blank line ended the fragment early: %q", frag.Text)
	}
	if strings.Contains(frag.Text, "var z;") {
		t.Errorf("fragment ran past the closing brace: %q", frag.Text)
	}
}

func TestBuilder_NoKeywordUsesScanBound(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("var v%d;", i)
	}
	doc := newDoc(t, strings.Join(lines, "\n"))

	frag := newBuilder().Around(context.Background(), doc, document.Pos(80, 0), document.Pos(80, 0))
	if frag.OffsetLines != 29 {
		t.Errorf("OffsetLines = %d, want 29", frag.OffsetLines)
	}
	got := strings.Split(frag.Text, "\n")
	if got[0] != "var v29;" {
		t.Errorf("first line = %q, want var v29;", got[0])
	}
	// forward bound is the last line, which is excluded
	if got[len(got)-2] != "var v98;" {
		t.Errorf("last full line = %q, want var v98;", got[len(got)-2])
	}
}

func TestBuilder_QueryOnLastLine(t *testing.T) {
	doc := newDoc(t, "var a;\nvar b;\nvar c;")

	frag := newBuilder().Around(context.Background(), doc, document.Pos(2, 3), document.Pos(2, 3))
	if frag.OffsetLines != 0 {
		t.Errorf("OffsetLines = %d, want 0", frag.OffsetLines)
	}
	if frag.Text != "var a;\nvar b;\nvar c;" {
		t.Errorf("Text = %q, want the whole document", frag.Text)
	}
}

func TestBuilder_SelectionEndInsideFragment(t *testing.T) {
	doc := newDoc(t, topLevelFunctions(30))

	// selection end beyond where the indentation scan stops
	frag := newBuilder().Around(context.Background(), doc, document.Pos(12, 0), document.Pos(22, 0))
	n := strings.Count(frag.Text, "\n")
	if frag.OffsetLines+n <= 22 {
		t.Errorf("fragment lines [%d, %d) do not contain selection end 22", frag.OffsetLines, frag.OffsetLines+n)
	}
}

func TestLexer_KeywordLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []bool
	}{
		{"declaration", []string{"function f() {"}, []bool{true}},
		{"expression", []string{"x = function() {};"}, []bool{true}},
		{"single-quoted string", []string{"var s = 'function';"}, []bool{false}},
		{"double-quoted string with escape", []string{`var s = "a\"function";`}, []bool{false}},
		{"line comment", []string{"// function"}, []bool{false}},
		{"property access", []string{"a.function();"}, []bool{false}},
		{"longer identifier", []string{"var functional = 1;"}, []bool{false}},
		{"after string", []string{"var s = 'x'; function g() {}"}, []bool{true}},
		{"block comment across lines", []string{"/*", "function", "*/ function g() {}"}, []bool{false, false, true}},
		{"template across lines", []string{"var t = `", "function", "`; function h() {}"}, []bool{false, false, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lexer{}.KeywordLines(context.Background(), tt.lines, []string{"function"})
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("line %d (%q) = %v, want %v", i, tt.lines[i], got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewClassifier(t *testing.T) {
	if c, err := NewClassifier("lexer"); err != nil || c == nil {
		t.Errorf("NewClassifier(lexer) = %v, %v", c, err)
	}
	if c, err := NewClassifier("auto"); err != nil || c == nil {
		t.Errorf("NewClassifier(auto) = %v, %v", c, err)
	}
	if _, err := NewClassifier("regex"); err == nil {
		t.Error("NewClassifier(regex) should fail")
	}
}

func TestFragment_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		frag Fragment
		want string
	}{
		{"full", Fragment{Kind: Full, Name: "a.js", Text: "x"}, `{"type":"full","name":"a.js","text":"x"}`},
		{"part", Fragment{Kind: Part, Name: "a.js", OffsetLines: 10, Text: "y"}, `{"type":"part","name":"a.js","offsetLines":10,"text":"y"}`},
		{"delete", Deleted("old.js"), `{"type":"delete","name":"old.js"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.frag)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}

			var back Fragment
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatal(err)
			}
			if back != tt.frag {
				t.Errorf("Unmarshal() = %+v, want %+v", back, tt.frag)
			}
		})
	}
}

func TestBuilder_NegativeScanBoundsClamped(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("var x%d = 0;", i)
	}
	doc := newDoc(t, strings.Join(lines, "\n"))
	b := NewBuilder(Options{ScanBackLines: -5, ScanForwardLines: -1, Keywords: []string{"function"}}, nil, slogutil.NewDiscardLogger())

	frag := b.Around(context.Background(), doc, document.Pos(3, 2), document.Pos(3, 2))

	if frag.OffsetLines != 2 {
		t.Errorf("OffsetLines = %d, want 2", frag.OffsetLines)
	}
	if !strings.Contains(frag.Text, "var x3 = 0;") {
		t.Errorf("fragment should contain the query line:\n%s", frag.Text)
	}
}

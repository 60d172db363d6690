// Package fragment builds reduced-size stand-ins for large documents: the
// smallest enclosing function body around a query position.
package fragment

import (
	"context"
	"encoding/json"
	"log/slog"

	"codehint/internal/document"
	"codehint/internal/slogutil"
)

// Kind is the file entry type understood by the engine.
type Kind string

const (
	Full   Kind = "full"
	Part   Kind = "part"
	Delete Kind = "delete"
)

// Fragment is one file entry of a request.
type Fragment struct {
	Kind Kind
	Name string
	// OffsetLines is the document line that line 0 of Text corresponds to.
	// Always 0 for full documents.
	OffsetLines int
	Text        string
}

// MarshalJSON emits the engine's file shape: delete entries carry only a
// name, part entries add offsetLines.
func (f Fragment) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case Delete:
		return json.Marshal(struct {
			Type Kind   `json:"type"`
			Name string `json:"name"`
		}{f.Kind, f.Name})
	case Part:
		return json.Marshal(struct {
			Type        Kind   `json:"type"`
			Name        string `json:"name"`
			OffsetLines int    `json:"offsetLines"`
			Text        string `json:"text"`
		}{f.Kind, f.Name, f.OffsetLines, f.Text})
	default:
		return json.Marshal(struct {
			Type Kind   `json:"type"`
			Name string `json:"name"`
			Text string `json:"text"`
		}{f.Kind, f.Name, f.Text})
	}
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        Kind   `json:"type"`
		Name        string `json:"name"`
		OffsetLines int    `json:"offsetLines"`
		Text        string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Fragment{Kind: raw.Type, Name: raw.Name, OffsetLines: raw.OffsetLines, Text: raw.Text}
	return nil
}

// FullDocument returns the whole document as a full file entry.
func FullDocument(doc *document.Document) Fragment {
	return Fragment{Kind: Full, Name: doc.Name(), Text: doc.Buffer().Value()}
}

// Deleted returns a file entry telling the engine to forget name.
func Deleted(name string) Fragment {
	return Fragment{Kind: Delete, Name: name}
}

// Options bounds the scan around the query position.
type Options struct {
	ScanBackLines    int
	ScanForwardLines int
	// Keywords introduce a function scope.
	Keywords []string
}

// DefaultOptions returns the scan window used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ScanBackLines:    50,
		ScanForwardLines: 20,
		Keywords:         []string{"function"},
	}
}

// Builder locates enclosing function bodies. It is a heuristic, not a
// parser: it looks at no more than ScanBackLines+ScanForwardLines lines.
type Builder struct {
	opts       Options
	classifier Classifier
	logger     *slog.Logger
}

// NewBuilder creates a builder. A nil classifier uses the Lexer. Negative
// scan bounds are treated as zero.
func NewBuilder(opts Options, classifier Classifier, logger *slog.Logger) *Builder {
	if classifier == nil {
		classifier = Lexer{}
	}
	opts.ScanBackLines = max(opts.ScanBackLines, 0)
	opts.ScanForwardLines = max(opts.ScanForwardLines, 0)
	return &Builder{
		opts:       opts,
		classifier: classifier,
		logger:     slogutil.Component(logger, "fragment"),
	}
}

// Around returns a part fragment of doc that contains the lines from start to end.
func (b *Builder) Around(ctx context.Context, doc *document.Document, start, end document.Position) Fragment {
	buf := doc.Buffer()
	tab := buf.TabSize()
	last := buf.LineCount() - 1

	// scan upward for the least-indented keyword line
	lo := start.Line - 1 - b.opts.ScanBackLines
	if lo < 0 {
		lo = 0
	}
	window := make([]string, 0, start.Line-lo)
	for p := lo; p < start.Line; p++ {
		window = append(window, buf.Line(p))
	}
	hasKeyword := b.classifier.KeywordLines(ctx, window, b.opts.Keywords)

	minLine, minIndent := -1, -1
	for p := start.Line - 1; p >= lo; p-- {
		if !hasKeyword[p-lo] {
			continue
		}
		indent := CountColumn(window[p-lo], tab)
		if minIndent >= 0 && minIndent <= indent {
			continue
		}
		minIndent, minLine = indent, p
	}
	if minLine < 0 {
		minLine = lo
	}

	hi := start.Line + b.opts.ScanForwardLines
	if hi > last {
		hi = last
	}

	endLine := hi
	if minIndent >= 0 && minIndent != CountColumn(buf.Line(start.Line), tab) {
		for endLine = start.Line + 1; endLine < hi; endLine++ {
			line := buf.Line(endLine)
			if IsBlank(line) {
				continue
			}
			if CountColumn(line, tab) <= minIndent {
				break
			}
		}
	}
	if endLine <= end.Line {
		endLine = end.Line + 1
	}

	to := document.Pos(endLine, 0)
	if endLine > last {
		to = document.Pos(last, len(buf.Line(last)))
	}

	b.logger.Debug("Fragment built",
		"doc", doc.Name(),
		"from", minLine,
		"to", endLine,
		"indent", minIndent,
	)

	return Fragment{
		Kind:        Part,
		Name:        doc.Name(),
		OffsetLines: minLine,
		Text:        buf.Range(document.Pos(minLine, 0), to),
	}
}

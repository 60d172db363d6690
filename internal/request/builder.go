package request

import (
	"context"
	"log/slog"

	"codehint/internal/document"
	"codehint/internal/errors"
	"codehint/internal/fragment"
	"codehint/internal/metrics"
	"codehint/internal/slogutil"
)

// Payload describes what the active document contributed to a request.
type Payload string

const (
	PayloadNone Payload = "none"
	PayloadFull Payload = "full"
	PayloadPart Payload = "part"
)

// Options are the thresholds for choosing a fragment over the full document.
type Options struct {
	LargeDocumentLines   int
	MaxFragmentDirtySpan int
	FragmentsEnabled     bool
}

// DefaultOptions returns the built-in thresholds.
func DefaultOptions() Options {
	return Options{
		LargeDocumentLines:   250,
		MaxFragmentDirtySpan: 100,
		FragmentsEnabled:     true,
	}
}

// Builder assembles requests from the registry's dirty state.
type Builder struct {
	registry  *document.Registry
	fragments *fragment.Builder
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewBuilder creates a request builder. frags may be nil when fragments are disabled.
func NewBuilder(reg *document.Registry, frags *fragment.Builder, opts Options, logger *slog.Logger, m *metrics.Metrics) *Builder {
	if frags == nil {
		opts.FragmentsEnabled = false
	}
	return &Builder{
		registry:  reg,
		fragments: frags,
		opts:      opts,
		logger:    slogutil.Component(logger, "request"),
		metrics:   m,
	}
}

// Result is a built request plus what the caller needs to interpret the reply.
type Result struct {
	Request *Request
	// OffsetLines must be added to engine-reported lines when a fragment was sent.
	OffsetLines int
	Payload     Payload
	Doc         *document.Document
	// Generation is the document state the request was built against.
	Generation uint64

	// documents whose dirty range Build dropped, for Rollback
	cleared []*document.Document
	deleted []string
}

// Build produces the request for query q on doc. The selection supplies
// q.End (and q.Start) when the query does not set them.
func (b *Builder) Build(ctx context.Context, doc *document.Document, q Query, sel Selection, allowFragments bool) (*Result, error) {
	if doc == nil {
		return nil, errors.New(errors.DocumentNotFound, "no active document", nil)
	}
	if q.Type == "" {
		return nil, errors.New(errors.InvalidQuery, "query type is empty", nil)
	}

	q.resolve(sel)
	start := *q.End
	if q.Start != nil {
		start = *q.Start
	}

	res := &Result{
		Request:    &Request{Files: []fragment.Fragment{}},
		Payload:    PayloadNone,
		Doc:        doc,
		Generation: doc.NextGeneration(),
	}

	if dirty, ok := doc.Dirty(); ok {
		if allowFragments && b.useFragment(doc, dirty, start.Line, q.End.Line) {
			frag := b.fragments.Around(ctx, doc, start, *q.End)
			res.Request.Files = append(res.Request.Files, frag)
			res.OffsetLines = frag.OffsetLines
			res.Payload = PayloadPart

			q.File = FragmentIndex(0)
			q.End = shift(q.End, -frag.OffsetLines)
			q.Start = shift(q.Start, -frag.OffsetLines)
		} else {
			res.Request.Files = append(res.Request.Files, b.takeFull(res, doc))
			res.Payload = PayloadFull
			q.File = ByName(doc.Name())
		}
	} else {
		q.File = ByName(doc.Name())
	}

	b.appendOthers(res, doc)

	q.LineCharPositions = true
	res.Request.Query = &q

	b.logger.Debug("Request built",
		"doc", doc.Name(),
		"type", q.Type,
		"payload", string(res.Payload),
		"files", len(res.Request.Files),
		"offsetLines", res.OffsetLines,
	)
	b.metrics.RecordRequest(string(res.Payload), len(res.Request.Files))
	return res, nil
}

// FullSync ships doc's whole contents with no query attached, along with
// any pending deletes. It is used by the debounced large-document flush.
func (b *Builder) FullSync(doc *document.Document) *Result {
	res := &Result{
		Request:    &Request{Files: []fragment.Fragment{}},
		Payload:    PayloadFull,
		Doc:        doc,
		Generation: doc.Generation(),
	}
	res.Request.Files = append(res.Request.Files, b.takeFull(res, doc))
	for _, name := range b.takeDeleted(res) {
		res.Request.Files = append(res.Request.Files, fragment.Deleted(name))
	}
	b.metrics.RecordRequest("sync", len(res.Request.Files))
	return res
}

func (b *Builder) useFragment(doc *document.Document, dirty document.DirtyRange, startLine, endLine int) bool {
	return b.opts.FragmentsEnabled &&
		doc.LineCount() > b.opts.LargeDocumentLines &&
		dirty.Span() < b.opts.MaxFragmentDirtySpan &&
		dirty.Covers(startLine, endLine)
}

// takeFull clears doc's dirty range before reading its text, so an edit
// landing in between marks the document dirty again rather than being lost.
func (b *Builder) takeFull(res *Result, doc *document.Document) fragment.Fragment {
	if _, ok := doc.ClearDirty(); ok {
		res.cleared = append(res.cleared, doc)
	}
	return fragment.FullDocument(doc)
}

// appendOthers adds every other dirty document in full, then pending deletes.
func (b *Builder) appendOthers(res *Result, active *document.Document) {
	for _, d := range b.registry.Documents() {
		if d == active {
			continue
		}
		if _, ok := d.Dirty(); !ok {
			continue
		}
		res.Request.Files = append(res.Request.Files, b.takeFull(res, d))
	}
	for _, name := range b.takeDeleted(res) {
		res.Request.Files = append(res.Request.Files, fragment.Deleted(name))
	}
}

func (b *Builder) takeDeleted(res *Result) []string {
	names := b.registry.TakeDeleted()
	res.deleted = append(res.deleted, names...)
	return names
}

// Rollback restores the dirty state dropped by Build after the request
// failed, so the next request ships those documents again.
func (r *Result) Rollback(reg *document.Registry) {
	for _, doc := range r.cleared {
		doc.MarkAllDirty()
	}
	if len(r.deleted) > 0 {
		reg.RestoreDeleted(r.deleted)
	}
}

// ClearedDocuments returns the names of documents shipped in full.
func (r *Result) ClearedDocuments() []string {
	names := make([]string, len(r.cleared))
	for i, doc := range r.cleared {
		names[i] = doc.Name()
	}
	return names
}

// Absolute maps an engine-reported location back to document coordinates.
func (r *Result) Absolute(loc Location) document.Position {
	if loc.IsPos {
		return document.Pos(loc.Pos.Line+r.OffsetLines, loc.Pos.Ch)
	}
	buf := r.Doc.Buffer()
	base := buf.IndexFromPos(document.Pos(r.OffsetLines, 0))
	return buf.PosFromIndex(base + loc.Offset)
}

func shift(p *document.Position, lines int) *document.Position {
	if p == nil {
		return nil
	}
	out := document.Pos(p.Line+lines, p.Ch)
	return &out
}

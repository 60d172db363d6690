// Package tracker folds edit events into document dirty ranges and flushes
// large documents to the engine when their dirty span grows too wide.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"codehint/internal/document"
	"codehint/internal/metrics"
	"codehint/internal/slogutil"
)

// Syncer ships a document's full contents to the engine and clears its dirty range.
type Syncer interface {
	SyncDocument(ctx context.Context, doc *document.Document) error
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context, doc *document.Document) error

func (f SyncerFunc) SyncDocument(ctx context.Context, doc *document.Document) error {
	return f(ctx, doc)
}

// Options controls when a debounced sync is scheduled.
type Options struct {
	// LargeDocumentLines is the line count above which syncs are considered.
	LargeDocumentLines int
	// SyncDirtySpan is the dirty span above which a sync is scheduled.
	SyncDirtySpan int
	// Debounce is the quiet period before the sync fires.
	Debounce time.Duration
	// SyncTimeout bounds each sync call. Zero means no deadline.
	SyncTimeout time.Duration
}

// DefaultOptions returns the thresholds used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		LargeDocumentLines: 250,
		SyncDirtySpan:      100,
		Debounce:           100 * time.Millisecond,
	}
}

// Tracker applies edits in delivery order and owns one debouncer per document.
type Tracker struct {
	opts    Options
	syncer  Syncer
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	debouncers map[*document.Document]*Debouncer
	closed     bool
}

// New creates a tracker. syncer may be nil, in which case large documents
// are never flushed outside the query path.
func New(opts Options, syncer Syncer, logger *slog.Logger, m *metrics.Metrics) *Tracker {
	return &Tracker{
		opts:       opts,
		syncer:     syncer,
		logger:     slogutil.Component(logger, "tracker"),
		metrics:    m,
		debouncers: make(map[*document.Document]*Debouncer),
	}
}

// OnEdit merges e into doc's dirty range and schedules a full sync when a
// large document accumulates a wide dirty span.
func (t *Tracker) OnEdit(doc *document.Document, e document.Edit) {
	r, invalidated := doc.ApplyEdit(e)
	t.metrics.RecordEdit()

	if invalidated {
		t.logger.Debug("Cached call target invalidated",
			"doc", doc.Name(),
			"line", e.From.Line,
		)
	}

	if t.syncer == nil {
		return
	}
	if doc.LineCount() > t.opts.LargeDocumentLines && r.Span() > t.opts.SyncDirtySpan {
		t.schedule(doc)
	}
}

// Watch subscribes the tracker to buf's edits for doc, when buf can report them.
// The subscription is removed when doc is unregistered.
func (t *Tracker) Watch(doc *document.Document) {
	n, ok := doc.Buffer().(document.ChangeNotifier)
	if !ok {
		return
	}
	cancel := n.OnChange(func(e document.Edit) {
		t.OnEdit(doc, e)
	})
	doc.SetDetach(func() {
		cancel()
		t.Forget(doc)
	})
}

func (t *Tracker) schedule(doc *document.Document) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	d, ok := t.debouncers[doc]
	if !ok {
		d = NewDebouncer(t.opts.Debounce)
		t.debouncers[doc] = d
	}
	t.mu.Unlock()

	d.Trigger(func() { t.fire(doc) })
}

// fire re-checks the dirty span, since a query may have shipped the
// document while the timer was pending.
func (t *Tracker) fire(doc *document.Document) {
	r, dirty := doc.Dirty()
	if !dirty || r.Span() <= t.opts.SyncDirtySpan {
		t.logger.Debug("Debounced sync skipped", "doc", doc.Name(), "dirty", dirty, "span", r.Span())
		t.metrics.RecordSync("skipped")
		return
	}

	ctx := context.Background()
	if t.opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.SyncTimeout)
		defer cancel()
	}

	t.logger.Debug("Debounced sync fired", "doc", doc.Name(), "from", r.From, "to", r.To)
	if err := t.syncer.SyncDocument(ctx, doc); err != nil {
		t.logger.Warn("Debounced sync failed", "doc", doc.Name(), "error", err.Error())
		t.metrics.RecordSync("failed")
		return
	}
	t.metrics.RecordSync("fired")
}

// Pending reports whether a sync is scheduled for doc.
func (t *Tracker) Pending(doc *document.Document) bool {
	t.mu.Lock()
	d, ok := t.debouncers[doc]
	t.mu.Unlock()
	return ok && d.Pending()
}

// Flush runs every pending sync now.
func (t *Tracker) Flush() {
	t.mu.Lock()
	ds := make([]*Debouncer, 0, len(t.debouncers))
	for _, d := range t.debouncers {
		ds = append(ds, d)
	}
	t.mu.Unlock()

	for _, d := range ds {
		d.Flush()
	}
}

// Forget cancels any pending sync for doc and drops its debouncer.
func (t *Tracker) Forget(doc *document.Document) {
	t.mu.Lock()
	d, ok := t.debouncers[doc]
	delete(t.debouncers, doc)
	t.mu.Unlock()
	if ok {
		d.Cancel()
	}
}

// Close cancels all pending syncs. Later edits are still merged but never flushed.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	ds := t.debouncers
	t.debouncers = make(map[*document.Document]*Debouncer)
	t.mu.Unlock()

	for _, d := range ds {
		d.Cancel()
	}
}

// Package hints is the session façade: it owns the document registry, the
// change tracker and the request builder, and drives queries through a
// transport.
package hints

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"codehint/internal/document"
	"codehint/internal/errors"
	"codehint/internal/fragment"
	"codehint/internal/metrics"
	"codehint/internal/request"
	"codehint/internal/slogutil"
	"codehint/internal/tracker"
	"codehint/internal/transport"
)

// Manager coordinates one editing session.
type Manager struct {
	session   string
	registry  *document.Registry
	tracker   *tracker.Tracker
	builder   *request.Builder
	transport transport.Transport
	dropStale bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a manager over reg. frags may be nil to disable fragments.
func New(reg *document.Registry, t transport.Transport, frags *fragment.Builder, opts Options, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if reg == nil {
		reg = document.NewRegistry()
	}
	session := uuid.NewString()
	logger = slogutil.Component(logger, "hints").With("session", session)

	mgr := &Manager{
		session:   session,
		registry:  reg,
		transport: t,
		dropStale: opts.DropStale,
		logger:    logger,
		metrics:   m,
	}
	mgr.builder = request.NewBuilder(reg, frags, opts.Request, logger, m)
	mgr.tracker = tracker.New(opts.Tracker, tracker.SyncerFunc(mgr.Sync), logger, m)
	return mgr
}

// Session is the unique id of this manager.
func (m *Manager) Session() string {
	return m.session
}

// Registry exposes the tracked documents.
func (m *Manager) Registry() *document.Registry {
	return m.registry
}

// Tracker exposes the change tracker, for editors that deliver edits
// themselves instead of through a ChangeNotifier buffer.
func (m *Manager) Tracker() *tracker.Tracker {
	return m.tracker
}

// Attach registers buf under name, announces it to the engine and starts
// following its edits.
func (m *Manager) Attach(name string, buf document.Buffer) (*document.Document, error) {
	doc, err := m.registry.Register(name, buf)
	if err != nil {
		return nil, err
	}
	m.transport.AddFile(name)
	m.tracker.Watch(doc)
	m.metrics.SetDocuments(m.registry.Len())

	m.logger.Info("Document registered", "doc", name, "lines", buf.LineCount())
	return doc, nil
}

// Detach stops tracking name. The engine forgets it on the next request.
func (m *Manager) Detach(name string) error {
	if err := m.registry.Unregister(name); err != nil {
		return err
	}
	m.metrics.SetDocuments(m.registry.Len())
	m.logger.Info("Document unregistered", "doc", name)
	return nil
}

// Reply is an engine answer together with the request it belongs to.
type Reply struct {
	Raw    json.RawMessage
	Result *request.Result
	// Stale is set when the document changed while the query was in flight
	// and stale replies are not dropped.
	Stale bool
}

// Query builds and sends q for doc. On transport failure the dirty state
// consumed by the request is restored.
func (m *Manager) Query(ctx context.Context, doc *document.Document, q request.Query, sel request.Selection) (*Reply, error) {
	res, err := m.builder.Build(ctx, doc, q, sel, true)
	if err != nil {
		return nil, err
	}

	raw, err := m.send(ctx, res)
	if err != nil {
		m.logger.Warn("Query failed",
			"doc", doc.Name(),
			"type", q.Type,
			"error", err.Error(),
		)
		return nil, err
	}

	reply := &Reply{Raw: raw, Result: res}
	if doc.Generation() != res.Generation {
		m.metrics.RecordStale()
		if m.dropStale {
			m.logger.Debug("Stale response dropped",
				"doc", doc.Name(),
				"built", res.Generation,
				"current", doc.Generation(),
			)
			return nil, errors.Newf(errors.StaleResponse, "reply for %s is out of date", doc.Name())
		}
		reply.Stale = true
	}
	return reply, nil
}

// Completions are completion candidates in document coordinates.
type Completions struct {
	From  document.Position
	To    document.Position
	Items []request.Completion
	Guess bool
	Stale bool
}

// Completions asks the engine for candidates at the selection.
func (m *Manager) Completions(ctx context.Context, doc *document.Document, sel request.Selection) (*Completions, error) {
	q := request.NewQuery(request.TypeCompletions)
	q.Flags.Types = true
	q.Flags.Docs = true
	q.Flags.URLs = true

	reply, err := m.Query(ctx, doc, q, sel)
	if err != nil {
		return nil, err
	}
	resp, err := request.DecodeCompletions(reply.Raw)
	if err != nil {
		return nil, errors.New(errors.TransportFailure, "malformed completions reply", err)
	}
	return &Completions{
		From:  reply.Result.Absolute(resp.Start),
		To:    reply.Result.Absolute(resp.End),
		Items: resp.Completions,
		Guess: resp.Guess,
		Stale: reply.Stale,
	}, nil
}

// TypeAt asks the engine for the type of the expression at the selection.
func (m *Manager) TypeAt(ctx context.Context, doc *document.Document, sel request.Selection) (*request.TypeResponse, error) {
	reply, err := m.Query(ctx, doc, request.NewQuery(request.TypeType), sel)
	if err != nil {
		return nil, err
	}
	resp, err := request.DecodeType(reply.Raw)
	if err != nil {
		return nil, errors.New(errors.TransportFailure, "malformed type reply", err)
	}
	return resp, nil
}

// ArgHint describes the call surrounding the cursor.
type ArgHint struct {
	Callee   string
	Pos      document.Position
	Type     string
	Params   []string
	ArgIndex int
	// Cached is set when the callee type came from the document's cache.
	Cached bool
}

// ArgHints resolves the function whose argument list encloses pos. The
// callee's type is cached per document until an edit at or before the
// callee invalidates it.
//
// When pos is not inside a call's argument list ArgHints returns a nil hint
// and a nil error.
func (m *Manager) ArgHints(ctx context.Context, doc *document.Document, pos document.Position) (*ArgHint, error) {
	c, ok := findCall(doc.Buffer(), pos)
	if !ok {
		return nil, nil
	}

	hint := &ArgHint{Callee: c.Callee, Pos: c.Pos, ArgIndex: c.ArgIndex}
	if cached, ok := doc.CachedCall(); ok && cached.Pos == c.Pos {
		if typ, ok := cached.Value.(string); ok {
			hint.Type = typ
			hint.Params = Params(typ)
			hint.Cached = true
			return hint, nil
		}
	}

	q := request.NewQuery(request.TypeType).At(document.Pos(c.Pos.Line, c.Pos.Ch+len(c.Callee)))
	q.Flags.PreferFunction = true
	reply, err := m.Query(ctx, doc, q, request.Cursor(pos))
	if err != nil {
		return nil, err
	}
	resp, err := request.DecodeType(reply.Raw)
	if err != nil {
		return nil, errors.New(errors.TransportFailure, "malformed type reply", err)
	}

	hint.Type = resp.Type
	hint.Params = Params(resp.Type)
	if !reply.Stale {
		doc.SetCachedCall(c.Pos, resp.Type)
	}
	return hint, nil
}

// Sync ships doc in full with no query. It is the tracker's flush path and
// can be called directly.
func (m *Manager) Sync(ctx context.Context, doc *document.Document) error {
	res := m.builder.FullSync(doc)
	_, err := m.send(ctx, res)
	return err
}

// send refuses a request that breaks the file-list invariants with
// INVALID_QUERY before it reaches the transport. On any failure the dirty
// state consumed by the build is restored.
func (m *Manager) send(ctx context.Context, res *request.Result) (json.RawMessage, error) {
	if err := res.Request.Validate(); err != nil {
		res.Rollback(m.registry)
		m.logger.Error("Malformed request not sent",
			"doc", res.Doc.Name(),
			"error", err.Error(),
		)
		return nil, err
	}
	raw, err := m.transport.Query(ctx, res.Request)
	if err != nil {
		res.Rollback(m.registry)
		return nil, err
	}
	return raw, nil
}

// Flush runs pending debounced syncs now.
func (m *Manager) Flush() {
	m.tracker.Flush()
}

// Close stops pending syncs and closes the transport.
func (m *Manager) Close() error {
	m.tracker.Close()
	return m.transport.Close()
}

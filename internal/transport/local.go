package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codehint/internal/document"
	"codehint/internal/errors"
	"codehint/internal/filecache"
	"codehint/internal/metrics"
	"codehint/internal/request"
	"codehint/internal/slogutil"
)

// Engine is an analysis engine living in this process.
type Engine interface {
	Request(ctx context.Context, req *request.Request) (json.RawMessage, error)
	AddFile(name string)
}

// FileGetter resolves the text of a file the engine asks for.
type FileGetter func(ctx context.Context, name string) (string, error)

// EngineConfig is what an engine is constructed with.
type EngineConfig struct {
	// Defs are the parsed definition documents of the environment.
	Defs    []json.RawMessage
	Plugins map[string]map[string]interface{}
	GetFile FileGetter
}

// EngineFactory builds an engine once the environment is loaded.
type EngineFactory func(cfg EngineConfig) (Engine, error)

// Files resolves names for the local engine: open documents first, then
// network files through the cache, then the filesystem under Root.
type Files struct {
	Registry *document.Registry
	Cache    *filecache.Cache
	Root     string
}

// GetFile returns the contents of name. Network files are fail-soft: a
// fetch that fails yields empty content, as for optional definition
// sources. Unreadable local files return FILE_READ_FAILURE.
func (f *Files) GetFile(ctx context.Context, name string) (string, error) {
	if f.Registry != nil {
		if doc, ok := f.Registry.FindByName(name); ok {
			return doc.Buffer().Value(), nil
		}
	}
	if filecache.IsNetworkName(name) {
		if f.Cache == nil {
			return "", errors.Newf(errors.FileReadFailure, "no file cache for %s", name)
		}
		return f.Cache.Get(ctx, name), nil
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.FileReadFailure, "read "+name, err)
	}
	return string(data), nil
}

// LocalOptions configures the environment of a Local transport.
type LocalOptions struct {
	Definitions []string
	Plugins     map[string]map[string]interface{}
}

// Local runs queries against an in-process engine. The engine is built
// asynchronously by Start once every definition file has been loaded.
type Local struct {
	opts    LocalOptions
	factory EngineFactory
	files   *Files
	logger  *slog.Logger
	metrics *metrics.Metrics

	startOnce sync.Once
	ready     chan struct{}

	mu      sync.Mutex
	engine  Engine
	pending []string
	initErr error
}

// NewLocal creates a transport that is not ready until Start completes.
func NewLocal(opts LocalOptions, factory EngineFactory, files *Files, logger *slog.Logger, m *metrics.Metrics) *Local {
	if files == nil {
		files = &Files{}
	}
	return &Local{
		opts:    opts,
		factory: factory,
		files:   files,
		logger:  slogutil.Component(logger, "transport.local"),
		metrics: m,
		ready:   make(chan struct{}),
	}
}

// Start loads the environment and builds the engine in the background.
// Calls after the first are no-ops.
func (l *Local) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.init(ctx)
	})
}

func (l *Local) init(ctx context.Context) {
	defer close(l.ready)

	start := time.Now()
	defs := l.loadDefinitions(ctx)

	engine, err := l.factory(EngineConfig{
		Defs:    defs,
		Plugins: l.opts.Plugins,
		GetFile: l.files.GetFile,
	})

	l.mu.Lock()
	if err != nil {
		l.initErr = err
		l.mu.Unlock()
		l.logger.Error("Engine initialization failed", "error", err.Error())
		return
	}
	l.engine = engine
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, name := range pending {
		engine.AddFile(name)
	}
	l.logger.Info("Engine ready",
		"definitions", len(defs),
		"pendingFiles", len(pending),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// loadDefinitions reads every definition file. A missing or malformed one
// is skipped rather than failing startup.
func (l *Local) loadDefinitions(ctx context.Context) []json.RawMessage {
	defs := make([]json.RawMessage, 0, len(l.opts.Definitions))
	for _, name := range l.opts.Definitions {
		text, err := l.files.GetFile(ctx, name)
		if err != nil {
			l.logger.Warn("Definition unavailable, skipping", "name", name, "error", err.Error())
			continue
		}
		if text == "" {
			continue
		}
		if !json.Valid([]byte(text)) {
			l.logger.Warn("Definition is not valid JSON, skipping", "name", name)
			continue
		}
		defs = append(defs, json.RawMessage(text))
	}
	return defs
}

// Query waits for the engine, then runs req on it.
func (l *Local) Query(ctx context.Context, req *request.Request) (reply json.RawMessage, err error) {
	select {
	case <-l.ready:
	case <-ctx.Done():
		return nil, errors.New(errors.EngineNotReady, "engine still loading", ctx.Err())
	}

	l.mu.Lock()
	engine, initErr := l.engine, l.initErr
	l.mu.Unlock()
	if engine == nil {
		return nil, errors.New(errors.EngineNotReady, "engine failed to initialize", initErr)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.TransportFailure, "engine panicked", fmt.Errorf("%v", p))
			reply = nil
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			l.logger.Warn("Engine query failed", "error", err.Error())
		}
		l.metrics.RecordTransportCall(KindLocal, outcome, time.Since(start))
	}()

	reply, err = engine.Request(ctx, req)
	if err != nil {
		return nil, ctxError(ctx, "engine request failed", err)
	}
	return reply, nil
}

// AddFile announces name, queueing it until the engine exists.
func (l *Local) AddFile(name string) {
	l.mu.Lock()
	engine := l.engine
	if engine == nil {
		l.pending = append(l.pending, name)
	}
	l.mu.Unlock()

	if engine != nil {
		engine.AddFile(name)
	}
}

// Ready implements Transport.
func (l *Local) Ready() <-chan struct{} {
	return l.ready
}

// Err returns the initialization error, if any.
func (l *Local) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initErr
}

// Close shuts down the engine when it supports closing.
func (l *Local) Close() error {
	l.mu.Lock()
	engine := l.engine
	l.mu.Unlock()
	if c, ok := engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

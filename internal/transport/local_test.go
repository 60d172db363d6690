package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codehint/internal/document"
	"codehint/internal/errors"
	"codehint/internal/filecache"
	"codehint/internal/request"
	"codehint/internal/slogutil"
	"codehint/internal/textbuf"
)

type fakeEngine struct {
	mu    sync.Mutex
	added []string
	cfg   EngineConfig
	reply string
	err   error
	panic bool
}

func (e *fakeEngine) Request(ctx context.Context, req *request.Request) (json.RawMessage, error) {
	if e.panic {
		panic("engine bug")
	}
	if e.err != nil {
		return nil, e.err
	}
	return json.RawMessage(e.reply), nil
}

func (e *fakeEngine) AddFile(name string) {
	e.mu.Lock()
	e.added = append(e.added, name)
	e.mu.Unlock()
}

func (e *fakeEngine) Added() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.added...)
}

func waitReady(t *testing.T, l *Local) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitReady(ctx, l); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
}

func TestLocal_PendingAddFileReplayed(t *testing.T) {
	engine := &fakeEngine{reply: `{}`}
	gate := make(chan struct{})
	factory := func(cfg EngineConfig) (Engine, error) {
		<-gate
		engine.cfg = cfg
		return engine, nil
	}

	l := NewLocal(LocalOptions{}, factory, nil, slogutil.NewDiscardLogger(), nil)
	l.Start(context.Background())
	l.AddFile("a.js")
	l.AddFile("b.js")

	select {
	case <-l.Ready():
		t.Fatal("transport should not be ready before the engine exists")
	default:
	}

	close(gate)
	waitReady(t, l)
	l.AddFile("c.js")

	got := engine.Added()
	want := []string{"a.js", "b.js", "c.js"}
	if len(got) != len(want) {
		t.Fatalf("added = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("added[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLocal_QueryWaitsForReady(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	l := NewLocal(LocalOptions{}, func(cfg EngineConfig) (Engine, error) {
		<-gate
		return &fakeEngine{reply: `{}`}, nil
	}, nil, slogutil.NewDiscardLogger(), nil)
	l.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Query(ctx, sampleRequest("x"))
	if !errors.HasCode(err, errors.EngineNotReady) {
		t.Errorf("Query() error = %v, want ENGINE_NOT_READY", err)
	}
}

func TestLocal_InitFailure(t *testing.T) {
	l := NewLocal(LocalOptions{}, func(cfg EngineConfig) (Engine, error) {
		return nil, os.ErrInvalid
	}, nil, slogutil.NewDiscardLogger(), nil)
	l.Start(context.Background())
	waitReady(t, l)

	if l.Err() == nil {
		t.Error("Err() should report the factory error")
	}
	if _, err := l.Query(context.Background(), sampleRequest("x")); !errors.HasCode(err, errors.EngineNotReady) {
		t.Errorf("Query() error = %v, want ENGINE_NOT_READY", err)
	}
}

func TestLocal_QueryFailuresAreReturned(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"error", &fakeEngine{err: os.ErrNotExist}},
		{"panic", &fakeEngine{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLocal(LocalOptions{}, func(cfg EngineConfig) (Engine, error) {
				return tt.engine, nil
			}, nil, slogutil.NewDiscardLogger(), nil)
			l.Start(context.Background())
			waitReady(t, l)

			_, err := l.Query(context.Background(), sampleRequest("x"))
			if !errors.HasCode(err, errors.TransportFailure) {
				t.Errorf("Query() error = %v, want TRANSPORT_FAILURE", err)
			}
		})
	}
}

func TestLocal_DefinitionsDegradeGracefully(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ecma5.json"), []byte(`{"!name":"ecma5","Math":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &fakeEngine{reply: `{}`}
	l := NewLocal(
		LocalOptions{Definitions: []string{"ecma5.json", "missing.json", "broken.json"}},
		func(cfg EngineConfig) (Engine, error) {
			engine.cfg = cfg
			return engine, nil
		},
		&Files{Root: dir},
		slogutil.NewDiscardLogger(), nil,
	)
	l.Start(context.Background())
	waitReady(t, l)

	if len(engine.cfg.Defs) != 1 {
		t.Fatalf("len(Defs) = %d, want 1", len(engine.cfg.Defs))
	}
	if engine.cfg.GetFile == nil {
		t.Error("engine should receive a GetFile hook")
	}
}

func TestFiles_GetFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "disk.js"), []byte("on disk"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := document.NewRegistry()
	if _, err := reg.Register("open.js", textbuf.New("in editor")); err != nil {
		t.Fatal(err)
	}
	cache := filecache.New(filecache.FetcherFunc(func(ctx context.Context, name string) (string, error) {
		return "from network", nil
	}), filecache.DefaultOptions(), slogutil.NewDiscardLogger(), nil)

	files := &Files{Registry: reg, Cache: cache, Root: dir}
	tests := []struct {
		name string
		want string
	}{
		{"open.js", "in editor"},
		{"http://example.com/lib.js", "from network"},
		{"disk.js", "on disk"},
	}
	for _, tt := range tests {
		got, err := files.GetFile(context.Background(), tt.name)
		if err != nil {
			t.Errorf("GetFile(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("GetFile(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if _, err := files.GetFile(context.Background(), "nope.js"); !errors.HasCode(err, errors.FileReadFailure) {
		t.Errorf("GetFile(missing) error = %v, want FILE_READ_FAILURE", err)
	}
}

func TestFiles_GetFileNetworkFailureIsEmpty(t *testing.T) {
	cache := filecache.New(filecache.FetcherFunc(func(ctx context.Context, name string) (string, error) {
		return "", fmt.Errorf("connection refused")
	}), filecache.DefaultOptions(), slogutil.NewDiscardLogger(), nil)
	files := &Files{Cache: cache}

	got, err := files.GetFile(context.Background(), "http://example.com/missing.js")
	if err != nil || got != "" {
		t.Errorf("GetFile(failed fetch) = %q, %v, want empty content and no error", got, err)
	}

	if _, err := (&Files{}).GetFile(context.Background(), "http://example.com/lib.js"); !errors.HasCode(err, errors.FileReadFailure) {
		t.Errorf("GetFile(no cache) error = %v, want FILE_READ_FAILURE", err)
	}
}

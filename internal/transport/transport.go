// Package transport delivers built requests to an analysis engine, either
// one running in this process or one reached over HTTP.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"codehint/internal/errors"
	"codehint/internal/request"
)

// Kind names a transport variant in configuration.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// Transport is the engine capability every variant provides.
type Transport interface {
	// Query sends req and returns the engine's raw reply. Failures are
	// returned, never panicked.
	Query(ctx context.Context, req *request.Request) (json.RawMessage, error)
	// AddFile tells the engine a document exists.
	AddFile(name string)
	// Ready is closed once the engine can answer queries.
	Ready() <-chan struct{}
	Close() error
}

// Call is an in-flight query, completed by sending itself on Done.
type Call struct {
	Request  *request.Request
	Reply    json.RawMessage
	Error    error
	Duration time.Duration
	Done     chan *Call
}

// Go runs the query asynchronously. If done is nil a buffered channel is
// allocated; an unbuffered done channel is rejected.
func Go(ctx context.Context, t Transport, req *request.Request, done chan *Call) *Call {
	if done == nil {
		done = make(chan *Call, 1)
	} else if cap(done) == 0 {
		panic("transport: done channel is unbuffered")
	}
	call := &Call{Request: req, Done: done}
	go func() {
		start := time.Now()
		call.Reply, call.Error = t.Query(ctx, req)
		call.Duration = time.Since(start)
		call.Done <- call
	}()
	return call
}

// WaitReady blocks until t is ready or ctx ends.
func WaitReady(ctx context.Context, t Transport) error {
	select {
	case <-t.Ready():
		return nil
	case <-ctx.Done():
		return errors.New(errors.EngineNotReady, "engine did not become ready", ctx.Err())
	}
}

// Unimplemented is an embeddable zero variant: it is always ready, ignores
// AddFile, and panics on Query.
type Unimplemented struct{}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Query panics with a NOT_IMPLEMENTED error.
func (Unimplemented) Query(ctx context.Context, req *request.Request) (json.RawMessage, error) {
	panic(errors.New(errors.NotImplemented, "transport has no query implementation", nil))
}

func (Unimplemented) AddFile(name string) {}

func (Unimplemented) Ready() <-chan struct{} { return closedChan }

func (Unimplemented) Close() error { return nil }

// ctxError classifies a failed call: cancellation and deadlines become
// TIMEOUT, everything else TRANSPORT_FAILURE.
func ctxError(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return errors.New(errors.Timeout, msg, ctx.Err())
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.New(errors.TransportFailure, msg, err)
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"codehint/internal/errors"
	"codehint/internal/metrics"
	"codehint/internal/request"
	"codehint/internal/slogutil"
	"codehint/internal/version"
)

// maxReplyBytes caps an engine reply.
const maxReplyBytes = 32 << 20

// RemoteOptions configures a Remote transport.
type RemoteOptions struct {
	Endpoint string
	PingPath string
	Timeout  time.Duration
	// GzipThresholdBytes compresses request bodies at or above this size.
	// Zero disables compression.
	GzipThresholdBytes int
}

// Remote posts requests to an engine over HTTP.
type Remote struct {
	opts    RemoteOptions
	client  *http.Client
	health  *Health
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRemote creates an HTTP transport. It is ready immediately.
func NewRemote(opts RemoteOptions, logger *slog.Logger, m *metrics.Metrics) *Remote {
	if opts.PingPath == "" {
		opts.PingPath = "/ping"
	}
	return &Remote{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		health:  newHealth(),
		logger:  slogutil.Component(logger, "transport.remote"),
		metrics: m,
	}
}

// Query implements Transport.
func (r *Remote) Query(ctx context.Context, req *request.Request) (json.RawMessage, error) {
	start := time.Now()
	reply, err := r.post(ctx, req)
	if err != nil {
		r.health.RecordFailure()
		r.metrics.RecordTransportCall(KindRemote, "error", time.Since(start))
		r.logger.Warn("Engine query failed",
			"endpoint", r.opts.Endpoint,
			"consecutiveFailures", r.health.ConsecutiveFailures(),
			"error", err.Error(),
		)
		return nil, err
	}
	r.health.RecordSuccess()
	r.metrics.RecordTransportCall(KindRemote, "ok", time.Since(start))
	return reply, nil
}

func (r *Remote) post(ctx context.Context, req *request.Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.New(errors.InvalidQuery, "encode request", err)
	}

	var encoding string
	if r.opts.GzipThresholdBytes > 0 && len(body) >= r.opts.GzipThresholdBytes {
		if body, err = gzipBytes(body); err != nil {
			return nil, errors.New(errors.InternalError, "compress request", err)
		}
		encoding = "gzip"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.TransportFailure, "bad engine endpoint", err)
	}
	id := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	httpReq.Header.Set("X-Request-ID", id)
	if encoding != "" {
		httpReq.Header.Set("Content-Encoding", encoding)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, ctxError(ctx, "engine request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, ctxError(ctx, "read engine reply", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf(errors.TransportFailure, "engine returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(snippet(data))).
			WithDetails(map[string]interface{}{"status": resp.StatusCode, "requestId": id})
	}
	if !json.Valid(data) {
		return nil, errors.Newf(errors.TransportFailure, "engine reply is not JSON: %s", snippet(data))
	}

	r.logger.Debug("Engine replied",
		"requestId", id,
		"bytes", len(data),
		"gzip", encoding != "",
	)
	return json.RawMessage(data), nil
}

// Ping checks the engine's health endpoint.
func (r *Remote) Ping(ctx context.Context) error {
	url := strings.TrimRight(r.opts.Endpoint, "/") + r.opts.PingPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.New(errors.TransportFailure, "bad ping URL", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		r.health.RecordFailure()
		return ctxError(ctx, "ping failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.health.RecordFailure()
		return errors.Newf(errors.TransportFailure, "ping returned HTTP %d", resp.StatusCode)
	}
	r.health.RecordSuccess()
	return nil
}

// Health exposes the call outcome tracker.
func (r *Remote) Health() *Health {
	return r.health
}

// AddFile is a no-op: the remote engine learns files from requests.
func (r *Remote) AddFile(name string) {
	r.logger.Debug("File announced", "name", name)
}

// Ready implements Transport.
func (r *Remote) Ready() <-chan struct{} {
	return closedChan
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return fmt.Sprintf("%s...", b[:max])
	}
	return string(b)
}

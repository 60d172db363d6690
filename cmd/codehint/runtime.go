package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"codehint/internal/config"
	"codehint/internal/document"
	"codehint/internal/filecache"
	"codehint/internal/fragment"
	"codehint/internal/hints"
	"codehint/internal/metrics"
	"codehint/internal/slogutil"
	"codehint/internal/storage"
	"codehint/internal/transport"
)

// runtime holds what every command shares: config, logger, metrics and
// the lazily opened file cache.
type runtime struct {
	dir     string
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db     *storage.DB
	cache  *filecache.Cache
	server *http.Server
}

func newRuntime(dir string) (*runtime, error) {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quietFlag {
		level = slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}

	rt := &runtime{
		dir:     dir,
		cfg:     cfg,
		logger:  slogutil.NewFormatLogger(os.Stderr, level, cfg.Logging.Format),
		metrics: metrics.NewMetrics(),
	}
	if metricsAddr != "" {
		rt.server = serveMetrics(metricsAddr, rt.metrics, rt.logger)
	}
	return rt, nil
}

// serveMetrics exposes m on addr until the server is shut down.
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err.Error())
		}
	}()
	logger.Info("Serving metrics", "addr", addr)
	return srv
}

// fileCache opens the network file cache, backed by SQLite when persistence
// is configured or forced.
func (rt *runtime) fileCache(persist bool) (*filecache.Cache, error) {
	if rt.cache != nil {
		return rt.cache, nil
	}
	cache := filecache.New(
		filecache.NewHTTPFetcher(rt.cfg.FetchTimeout()),
		filecache.Options{MaxEntries: rt.cfg.FileCache.MaxEntries, FetchTimeout: rt.cfg.FetchTimeout()},
		rt.logger, rt.metrics,
	)
	if persist || rt.cfg.FileCache.Persist {
		db, err := storage.Open(rt.dir, rt.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		rt.db = db
		cache.SetStore(storage.NewFileStore(db))
	}
	rt.cache = cache
	return cache, nil
}

// newTransport builds the configured engine transport. A local transport is
// started before it is returned.
func (rt *runtime) newTransport(ctx context.Context, reg *document.Registry) (transport.Transport, error) {
	switch rt.cfg.Transport.Kind {
	case transport.KindRemote:
		return rt.newRemote(), nil
	case transport.KindLocal:
		cache, err := rt.fileCache(false)
		if err != nil {
			return nil, err
		}
		opts := transport.LocalOptions{Definitions: rt.cfg.Transport.Local.Definitions}
		if path := rt.cfg.Transport.Local.Manifest; path != "" {
			if !filepath.IsAbs(path) {
				path = filepath.Join(rt.dir, path)
			}
			manifest, err := transport.LoadManifest(path)
			if err != nil {
				return nil, err
			}
			opts = manifest.Options()
		}
		files := &transport.Files{Registry: reg, Cache: cache, Root: rt.dir}
		local := transport.NewLocal(opts, transport.NewWordEngine, files, rt.logger, rt.metrics)
		local.Start(ctx)
		return local, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", rt.cfg.Transport.Kind)
	}
}

func (rt *runtime) newRemote() *transport.Remote {
	r := rt.cfg.Transport.Remote
	return transport.NewRemote(transport.RemoteOptions{
		Endpoint:           r.Endpoint,
		PingPath:           r.PingPath,
		Timeout:            rt.cfg.RemoteTimeout(),
		GzipThresholdBytes: r.GzipThresholdBytes,
	}, rt.logger, rt.metrics)
}

// newManager wires a session over tr.
func (rt *runtime) newManager(reg *document.Registry, tr transport.Transport) (*hints.Manager, error) {
	opts := hints.OptionsFromConfig(rt.cfg)

	var frags *fragment.Builder
	if rt.cfg.Fragments.Enabled {
		classifier, err := fragment.NewClassifier(rt.cfg.Fragments.Classifier)
		if err != nil {
			return nil, err
		}
		frags = fragment.NewBuilder(opts.Fragments, classifier, rt.logger)
	}
	return hints.New(reg, tr, frags, opts, rt.logger, rt.metrics), nil
}

// Close releases the store and stops the metrics server.
func (rt *runtime) Close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.server.Shutdown(ctx)
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("Failed to close file store", "error", err.Error())
		}
	}
}

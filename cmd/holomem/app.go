package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goclaw/holomem/config"
	"github.com/goclaw/holomem/pkg/logger"
	"github.com/goclaw/holomem/pkg/memory"
	"github.com/goclaw/holomem/pkg/metrics"
	"github.com/goclaw/holomem/pkg/telemetry/tracing"
	"github.com/goclaw/holomem/pkg/version"
)

// app holds everything a subcommand needs: configuration, logger, metrics
// and an open engine.
type app struct {
	mu      sync.Mutex
	cfg     *config.Config
	loader  *config.Loader
	path    string
	log     logger.Logger
	metrics *metrics.Manager
	engine  *memory.Engine

	shutdownTracing tracing.ShutdownFunc
	watcher         *config.Watcher
}

// newApp loads configuration and opens the engine.
func newApp(ctx context.Context, opts rootOptions) (*app, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(opts.configPath, buildOverrides(opts))
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logCfg := logger.FromConfig(cfg.Log)
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting holomem",
		"version", version.Version,
		"gitCommit", version.GitCommit,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Type,
		"configFile", loader.Path(),
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	metricsManager := metrics.NewManager(metrics.FromConfig(cfg.Metrics))

	engine, err := memory.Open(ctx, cfg.Memory,
		memory.WithStorageConfig(cfg.Storage),
		memory.WithLogger(log.With("component", "memory")),
		memory.WithMetrics(metricsManager),
		memory.WithConsolidationHandler(func(_ context.Context, candidates []memory.ConsolidationCandidate) {
			for _, c := range candidates {
				log.Info("Consolidation candidate", "a", c.A, "b", c.B, "similarity", c.Similarity, "affinity", c.Affinity)
			}
		}),
	)
	if err != nil {
		_ = shutdownTracing(ctx)
		log.Close()
		return nil, fmt.Errorf("open memory engine: %w", err)
	}

	return &app{
		cfg:             cfg,
		loader:          loader,
		path:            loader.Path(),
		log:             log,
		metrics:         metricsManager,
		engine:          engine,
		shutdownTracing: shutdownTracing,
	}, nil
}

// serve starts the metrics server and, when a config file is in use, the
// config watcher. Both stop when ctx is cancelled.
func (a *app) serve(ctx context.Context) {
	if a.metrics.Enabled() {
		go func() {
			a.log.Info("Starting metrics server", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
			if err := a.metrics.StartServer(ctx, a.cfg.Metrics.Port, a.cfg.Metrics.Path); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Metrics server error", "error", err)
			}
		}()
	}

	if a.path == "" {
		return
	}
	w, err := config.NewWatcher(a.path, a.loader, config.WithErrorHandler(func(err error) {
		a.log.Warn("Config reload failed", "error", err)
	}))
	if err != nil {
		a.log.Warn("Config watcher disabled", "error", err)
		return
	}
	w.OnChange(a.applyConfig)
	a.watcher = w
	go func() {
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("Config watcher stopped", "error", err)
		}
	}()
}

// applyConfig hot-applies a reloaded configuration.
func (a *app) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := config.ExtractHotReloadable(a.cfg)
	after := config.ExtractHotReloadable(cfg)
	if !before.Changed(after) {
		return
	}

	a.log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if err := a.engine.Reconfigure(cfg.Memory); err != nil {
		a.log.Warn("Config change rejected", "error", err)
		return
	}
	a.cfg = cfg
	a.log.Info("Configuration reloaded", "threshold", cfg.Memory.Crystallization.Threshold)
}

// Close flushes and closes the engine, then shuts down tracing and logging.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	err := a.engine.Close(ctx)
	if err != nil {
		a.log.Error("Error closing memory engine", "error", err)
	}
	if terr := a.shutdownTracing(ctx); terr != nil {
		a.log.Error("Error shutting down tracing", "error", terr)
	}
	a.log.Info("holomem stopped")
	a.log.Close()
	return err
}

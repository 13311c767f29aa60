package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"typeproof/internal/cache"
	"typeproof/internal/config"
	"typeproof/internal/health"
	"typeproof/internal/logging"
	"typeproof/internal/metrics"
	"typeproof/internal/provenance"
	"typeproof/internal/store"
)

// runtime is everything a command needs, built from the effective config.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	engine  *provenance.Engine
	redis   *redis.Client
	metrics *http.Server
	health  *health.Checker

	// audit is owned by the runtime until the engine takes it over.
	audit *logging.AuditLogger
}

// loadConfig resolves the config file and applies the global flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "load config", err)
	}
	if opts.Database != "" {
		cfg.Storage.Type = "sqlite"
		cfg.Storage.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func openRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, WrapExitError(ExitCommandError, "prepare directories", err)
	}

	lc, err := cfg.LoggingConfig()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "logging config", err)
	}
	lc.Component = "typeproofctl"
	logger, err := logging.New(lc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open logger", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, health: health.NewChecker()}
	engineOpts := []provenance.Option{
		provenance.WithLogger(logger),
		provenance.WithThresholds(cfg.Thresholds()),
		provenance.WithMaxBatchSize(cfg.Ledger.MaxBatchSize),
		provenance.WithTimelineOptions(cfg.TimelineOptions()),
	}

	if cfg.Logging.AuditPath != "" {
		audit, err := logging.NewAuditLogger(&logging.AuditLoggerConfig{
			FilePath:   cfg.Logging.AuditPath,
			MaxSizeMB:  int64(cfg.Logging.MaxSizeMB),
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			rt.Close()
			return nil, WrapExitError(ExitCommandError, "open audit log", err)
		}
		rt.audit = audit
		engineOpts = append(engineOpts, provenance.WithAuditLogger(audit))
	}

	rc, err := rt.openCache(ctx)
	if err != nil {
		rt.Close()
		return nil, WrapExitError(ExitCommandError, "open report cache", err)
	}
	engineOpts = append(engineOpts, provenance.WithCache(rc))
	rt.health.RegisterFunc("cache", false, health.CacheCheck(rc))
	if rt.redis != nil {
		rt.health.RegisterFunc("redis", false, health.PingCheck("redis", func(ctx context.Context) error {
			return rt.redis.Ping(ctx).Err()
		}))
	}

	if cfg.Metrics.Enabled {
		engineOpts = append(engineOpts, provenance.WithMetrics(rt.startMetrics()))
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	rt.engine = provenance.New(st, engineOpts...)
	rt.audit = nil
	rt.health.RegisterFunc("store", true, health.StoreCheck(st))

	logger.Debug("runtime ready",
		"storage", cfg.Storage.Type,
		"cache", cfg.Cache.Type,
		"metrics", cfg.Metrics.Enabled,
	)
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.EventStore, error) {
	limits := cfg.StoreLimits()
	switch cfg.Storage.Type {
	case "memory":
		return store.NewMemoryStore(limits), nil
	case "postgres":
		cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
		defer cancel()
		return store.OpenPostgres(cctx, cfg.Storage.DSN, store.WithPostgresLimits(limits))
	case "sqlite", "":
		return store.OpenSQLite(cfg.Storage.Path, limits)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func (rt *runtime) openCache(ctx context.Context) (cache.ReportCache, error) {
	cfg := rt.cfg
	switch cfg.Cache.Type {
	case "none":
		return cache.Nop{}, nil
	case "redis":
		cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
		defer cancel()
		client, err := cache.OpenRedis(cctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.redis = client
		return cache.NewRedisCache(client, cache.WithRedisTTL(cfg.CacheTTL())), nil
	default:
		mopts := []cache.MemoryOption{cache.WithMemoryTTL(cfg.CacheTTL())}
		if cfg.Cache.MaxEntries > 0 {
			mopts = append(mopts, cache.WithMemoryLimit(cfg.Cache.MaxEntries))
		}
		return cache.NewMemoryCache(mopts...), nil
	}
}

// startMetrics registers the engine metrics and, with a listen address,
// serves them and the health probes for the lifetime of the command.
func (rt *runtime) startMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, rt.cfg.Metrics.Namespace)

	if addr := rt.cfg.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		mux.Handle("/healthz", rt.health.LivenessHandler())
		mux.Handle("/readyz", rt.health.ReadinessHandler())
		rt.metrics = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := rt.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		rt.logger.Info("serving metrics", "addr", addr)
	}
	return m
}

// Close releases everything openRuntime acquired.
func (rt *runtime) Close() error {
	var errs []error
	if rt.engine != nil {
		errs = append(errs, rt.engine.Close())
	}
	if rt.audit != nil {
		errs = append(errs, rt.audit.Close())
		rt.audit = nil
	}
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, rt.metrics.Shutdown(ctx))
		cancel()
	}
	errs = append(errs, rt.logger.Close())
	return errors.Join(errs...)
}

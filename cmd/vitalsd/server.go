package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/engine"
	"github.com/psantana5/vitals-engine/pkg/jobs"
	"github.com/psantana5/vitals-engine/pkg/logging"
	"github.com/psantana5/vitals-engine/pkg/metrics"
	"github.com/psantana5/vitals-engine/pkg/publish"
	"github.com/psantana5/vitals-engine/pkg/ratelimit"
	"github.com/psantana5/vitals-engine/pkg/shutdown"
	"github.com/psantana5/vitals-engine/pkg/storage"
	"github.com/psantana5/vitals-engine/pkg/store"
	tlsutil "github.com/psantana5/vitals-engine/pkg/tls"
	"github.com/psantana5/vitals-engine/pkg/tracing"
)

const (
	serviceName = "vitalsd"

	limiterSweepInterval = 5 * time.Minute
	limiterMaxIdle       = 10 * time.Minute

	defaultCertFile = "certs/vitalsd.crt"
	defaultKeyFile  = "certs/vitalsd.key"
)

func run(ctx context.Context, v *viper.Viper, opts *options) error {
	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.generateCert {
		return generateCert(cfg.Server, splitList(opts.certHosts), logger)
	}

	logger.Info("Starting vitalsd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("engine_kind", cfg.Engine.Kind),
		zap.String("upload_dir", cfg.Storage.UploadDir))

	eng, engineStatus := engine.Select(engine.Options{
		Kind:       engine.Kind(cfg.Engine.Kind),
		Binary:     cfg.Engine.Binary,
		Args:       cfg.Engine.Args,
		Credential: cfg.APIKey,
	}, logger)

	m := metrics.New()

	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    os.Getenv("VITALS_ENVIRONMENT"),
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	sinks := publish.Open(ctx, cfg.Publish, logger)
	readingSinks := make([]jobs.ReadingSink, 0, len(sinks))
	for _, s := range sinks {
		readingSinks = append(readingSinks, s)
	}

	controller := jobs.NewController(eng, cfg.APIKey, store.NewMemoryStore(), logger,
		jobs.WithObserver(m),
		jobs.WithTracer(tp.Tracer()),
		jobs.WithSinks(readingSinks...))

	videos, err := storage.NewVideoStore(storage.Config{
		Dir:          cfg.Storage.UploadDir,
		MaxBytes:     cfg.Storage.MaxUploadBytes,
		MinFreeBytes: uint64(cfg.Storage.MinFreeBytes),
	}, logger)
	if err != nil {
		return err
	}

	janitor := storage.NewJanitor(storage.JanitorConfig{
		Enabled:   cfg.Storage.Retention > 0,
		Retention: cfg.Storage.Retention,
		Interval:  cfg.Storage.CleanupInterval,
	}, videos, func() string {
		ref, ok := controller.Video()
		if !ok {
			return ""
		}
		return ref.Path
	}, logger)
	janitor.Start()
	m.RegisterCleanup(func() (int64, int64) {
		stats := janitor.Stats()
		return stats.TotalFilesDeleted, stats.TotalBytesFreed
	})

	handler := api.NewVitalsHandler(controller, videos, api.CameraConfig{
		Device:   cfg.Engine.CameraDevice,
		Duration: cfg.Engine.CameraDuration,
	}, engineStatus, logger)
	handler.SetUploadRecorder(m)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst > 0 {
		limiter := ratelimit.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		handler.SetRateLimit(limiter.Middleware(ratelimit.IPKeyFunc))
		go sweepLimiter(serveCtx, limiter, logger)
	}

	srv := &http.Server{
		Handler:      newRouter(cfg, handler, m, tp),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.Server.TLSEnabled() {
		tlsConfig, err := tlsutil.LoadServerConfig(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS config: %w", err)
		}
		srv.TLSConfig = tlsConfig
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	mgr := shutdown.New(cfg.Server.ShutdownTimeout, logger)
	mgr.Register("tracer", tp.Shutdown)
	mgr.Register("sinks", func(context.Context) error { return publish.CloseAll(sinks) })
	mgr.Register("janitor", func(context.Context) error {
		janitor.Stop()
		return nil
	})
	mgr.Register("jobs", shutdown.WaitFor(controller.Wait, func() {
		logger.Warn("Job still running at shutdown deadline, cancelling")
		controller.Close()
	}))
	mgr.Register("http", shutdown.StopHTTPServer(srv))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", ln.Addr().String()),
			zap.Bool("tls", cfg.Server.TLSEnabled()),
			zap.Bool("metrics", cfg.Metrics.Enabled))

		var err error
		if cfg.Server.TLSEnabled() {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stopServing()
		}
	}()

	mgr.Wait(serveCtx)
	if failed := mgr.Shutdown(); failed > 0 {
		logger.Warn("Shutdown finished with errors", zap.Int("failed_steps", failed))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// newRouter assembles the HTTP surface: API routes, metrics, tracing and CORS
func newRouter(cfg *config.Config, handler *api.VitalsHandler, m *metrics.Metrics, tp *tracing.Provider) http.Handler {
	router := mux.NewRouter()
	router.Use(tracing.HTTPMiddleware(tp))
	if cfg.Metrics.Enabled {
		router.Use(m.Middleware)
		router.Handle("/metrics", m.Handler()).Methods("GET")
	}
	handler.RegisterRoutes(router)
	return api.CORS(cfg.Server.CORSOrigin, router)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Dir == "" {
		logger, err := logging.NewLogger(cfg.Level, cfg.Format, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		return logger, nil
	}

	logger, path, err := logging.NewFileLogger(cfg.Dir, serviceName, cfg.Level, cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Info("Logging to file", zap.String("path", path))
	return logger, nil
}

func sweepLimiter(ctx context.Context, limiter *ratelimit.Limiter, logger *zap.Logger) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := limiter.CleanupOldLimiters(limiterMaxIdle); removed > 0 {
				logger.Debug("Removed idle rate limiters", zap.Int("removed", removed), zap.Int("remaining", limiter.Size()))
			}
		}
	}
}

func generateCert(cfg config.ServerConfig, hosts []string, logger *zap.Logger) error {
	certFile, keyFile := cfg.TLSCert, cfg.TLSKey
	if certFile == "" {
		certFile = defaultCertFile
	}
	if keyFile == "" {
		keyFile = defaultKeyFile
	}

	for _, dir := range []string{filepath.Dir(certFile), filepath.Dir(keyFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, serviceName, hosts...); err != nil {
		return err
	}
	logger.Info("Self-signed certificate generated",
		zap.String("cert", certFile),
		zap.String("key", keyFile),
		zap.Strings("extra_hosts", hosts))
	return nil
}

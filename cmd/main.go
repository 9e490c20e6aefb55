package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/softai/coursecore/internal/adapters/events"
	"github.com/softai/coursecore/internal/adapters/http/api"
	"github.com/softai/coursecore/internal/adapters/http/swagger"
	"github.com/softai/coursecore/internal/adapters/repository"
	service "github.com/softai/coursecore/internal/app"
	"github.com/softai/coursecore/internal/config"
	"github.com/softai/coursecore/internal/domain/identity"
	"github.com/softai/coursecore/pkg/logger"
	"github.com/softai/coursecore/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	startupTimeout         = 15 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "coursecore exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the process and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	verifier, err := buildVerifier(cfg)
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	store, err := openStore(startCtx, cfg, log.Named("store"))
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store failed", logger.Error(err))
		}
	}()

	quizzes, closeCache := buildQuizReader(cfg, store, log.Named("cache"))
	defer closeCache()

	publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log.Named("publisher"))
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn(ctx, "closing publisher failed", logger.Error(err))
		}
	}()

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.EventWorkers),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithCertificatePrefix(cfg.CertificatePrefix),
	}
	if publisher.Enabled() {
		opts = append(opts, service.WithPublisher(publisher))
	}
	svc := service.New(quizzes, store, opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Stop(context.Background()); err != nil {
			log.Warn(ctx, "stopping service failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildMux(ctx, cfg, svc, verifier, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildVerifier selects the bearer token verifier for the configured auth mode.
func buildVerifier(cfg *config.Config) (identity.Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		opts := []identity.JWTOption{identity.WithAudience(cfg.JWTAudience)}
		if cfg.JWTIssuer != "" {
			opts = append(opts, identity.WithIssuer(cfg.JWTIssuer))
		}
		return identity.NewJWTVerifier(cfg.JWTSecret, opts...), nil
	case config.AuthModeRemote:
		return identity.NewRemoteVerifier(cfg.ProviderURL,
			identity.WithAPIKey(cfg.ProviderAPIKey),
			identity.WithTimeout(cfg.ProviderTimeout()),
		), nil
	default:
		return nil, fmt.Errorf("%w: auth_mode %q", config.ErrInvalidConfig, cfg.AuthMode)
	}
}

// openStore opens the configured data store gateway.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		mem := repository.NewMemory()
		if cfg.SeedFile != "" {
			seed, err := repository.LoadSeedFile(cfg.SeedFile, mem)
			if err != nil {
				return nil, err
			}
			log.Info(ctx, "memory store seeded",
				logger.String("file", cfg.SeedFile),
				logger.Int("quizzes", len(seed.Quizzes)),
				logger.Int("progress", len(seed.Progress)),
			)
		}
		return mem, nil
	case config.StorePostgres:
		pg, err := repository.OpenPostgres(ctx, repository.PostgresConfig{
			DSN:           cfg.DatabaseDSN,
			MaxOpenConns:  cfg.DBMaxOpenConns,
			MaxIdleConns:  cfg.DBMaxIdleConns,
			SlowThreshold: cfg.SlowQueryThreshold(),
		}, log)
		if err != nil {
			return nil, err
		}
		if cfg.DBEnsureUniqueIndex {
			if err := pg.EnsureUniqueIndex(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("%w: store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

// buildQuizReader puts the Redis quiz cache in front of store when
// redis_addr is configured. The returned func releases the client.
func buildQuizReader(cfg *config.Config, store repository.QuizReader, log logger.Logger) (repository.QuizReader, func()) {
	if cfg.RedisAddr == "" {
		return store, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return repository.NewQuizCache(store, client, cfg.QuizCacheTTL(), log), func() {
		if err := client.Close(); err != nil {
			log.Warn(context.Background(), "closing redis client failed", logger.Error(err))
		}
	}
}

// buildMux registers the documentation and business routes.
func buildMux(ctx context.Context, cfg *config.Config, svc *service.Service, verifier identity.Verifier, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	opts := []api.Option{api.WithLogger(log.Named("http"))}
	if cfg.RateLimitRPS > 0 {
		limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst,
			api.WithTrustedProxy(cfg.RateLimitTrustProxy))
		go limiter.Run(ctx)
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	api.NewServer(svc, verifier, svc, opts...).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater periodically samples runtime metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

func updateServiceMetrics(svc *service.Service) {
	if queueLen, ok := svc.GetStats()["queueLength"].(int); ok {
		metrics.UpdateEventQueueSize(queueLen)
	}
}

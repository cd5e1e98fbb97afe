package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/silviaroy/upscalerd/internal/archive"
	"github.com/silviaroy/upscalerd/internal/bot"
	"github.com/silviaroy/upscalerd/internal/config"
	"github.com/silviaroy/upscalerd/internal/fetch"
	"github.com/silviaroy/upscalerd/internal/janitor"
	"github.com/silviaroy/upscalerd/internal/ledger"
	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/metrics"
	"github.com/silviaroy/upscalerd/internal/pipeline"
	"github.com/silviaroy/upscalerd/internal/transform"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("configuration loaded", "backend", cfg.LedgerBackend, "environment", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ldg := ledger.New(store, cfg.AdminID, cfg.MaxFreeUses)

	upscaler, err := transform.NewUpscaler(transform.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create upscaler: %w", err)
	}

	pipeCfg := pipeline.DefaultConfig(cfg.WorkDir)
	pipeCfg.ImageTimeout = cfg.ImageJobTimeout
	pipeCfg.VideoTimeout = cfg.VideoJobTimeout
	pipeCfg.FetchTimeout = cfg.FetchTimeout
	pipeCfg.MaxConcurrent = int64(cfg.MaxConcurrentJobs)

	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout)

	// The bot is both the update source and the delivery/notification
	// sink, so the pipeline is built in two steps.
	var b *bot.Bot
	deferred := &deferredTransport{}

	pipe, err := pipeline.New(pipeCfg, ldg, upscaler, fetcher, deferred, deferred)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.ArchiveEnabled {
		storage, err := archive.NewMinIOStorage(&archive.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Region:    cfg.MinIORegion,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		archiveSvc := archive.NewService(storage)
		pipe.SetArchiver(archiveSvc)
		log.Info("result archive enabled", "bucket", cfg.MinIOBucket, "retain_days", cfg.ArchiveRetainDays)

		if cfg.ArchiveRetainDays > 0 {
			retain := time.Duration(cfg.ArchiveRetainDays) * 24 * time.Hour
			go func() {
				ticker := time.NewTicker(6 * time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if _, err := archiveSvc.SweepExpired(ctx, retain); err != nil {
							log.Error("archive retention sweep failed", "error", err)
						}
					case <-ctx.Done():
						return
					}
				}
			}()
		}
	}

	b, err = bot.New(cfg, ldg, pipe)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	deferred.set(b)

	metrics.SetAppInfo(version, cfg.Environment)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	sweeper := janitor.New(cfg.WorkDir, cfg.JanitorMaxAge, cfg.JanitorInterval)
	go sweeper.Run(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	botErr := make(chan error, 1)
	go func() {
		botErr <- b.Run(ctx)
	}()

	select {
	case err := <-botErr:
		if err != nil {
			return fmt.Errorf("bot stopped: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)
		cancel()

		drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer drainCancel()

		if err := pipe.Wait(drainCtx); err != nil {
			log.Warn("jobs still running at shutdown", "error", err)
		}

		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = metricsServer.Shutdown(shutCtx)
	}

	log.Info("bot stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	log := logger.Default()

	switch cfg.LedgerBackend {
	case "postgres":
		log.Info("connecting to database")
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store := ledger.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("database connected")
		return store, pool.Close, nil

	case "redis":
		log.Info("connecting to redis")
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("redis connected")
		return ledger.NewRedisStore(client), func() { _ = client.Close() }, nil

	case "memory":
		log.Warn("using in-memory ledger store, usage data will not survive restarts")
		return ledger.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

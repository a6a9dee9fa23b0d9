package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/bookmark"
	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/cloud"
	"github.com/MrSnakeDoc/bkmeta/internal/config"
	"github.com/MrSnakeDoc/bkmeta/internal/holder"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/queue"
	"github.com/MrSnakeDoc/bkmeta/internal/redis"
	"github.com/MrSnakeDoc/bkmeta/internal/scheduler"
	"github.com/MrSnakeDoc/bkmeta/internal/store"
	"github.com/MrSnakeDoc/bkmeta/internal/utils"
	"github.com/MrSnakeDoc/bkmeta/internal/version"
)

type App struct {
	cfg              *config.Config
	logger           logger.Logger
	server           *httpserver.Server
	backend          store.Backend
	holder           *holder.Holder
	service          *bookmark.Service
	remote           cloud.Remote
	bookmarkReloader *scheduler.BookmarkReloader
	cloudSyncer      *scheduler.CloudSyncer
	gc               *scheduler.GarbageCollector
}

// RetryPolicy builds the Redis connection policy from the config.
func RetryPolicy(cfg *config.Config) redis.RetryPolicy {
	return redis.RetryPolicy{
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
		PoolSize:       cfg.RedisPoolSize,
	}
}

// New wires every component. Nothing is started yet; a failing
// dependency (unreachable Redis, bad DSN) is reported here.
func New(cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	clk := clock.System{}

	loggerClient.Info("opening storage backend",
		logger.String("scheme", store.SchemeOf(cfg.StoreDSN)))
	backend, err := store.Open(cfg.StoreDSN, store.Options{
		Logger: loggerClient,
		Redis:  RetryPolicy(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	h := holder.New(backend, clk, loggerClient, queue.Options{
		Size:        cfg.QueueSize,
		Batch:       cfg.QueueBatch,
		SaveTimeout: cfg.SaveTimeout,
	})
	svc := bookmark.NewService(h, clk, loggerClient)

	a := &App{
		cfg:     cfg,
		logger:  loggerClient,
		backend: backend,
		holder:  h,
		service: svc,
	}

	// Initialize bookmark reloader (if bookmark file is configured)
	var bookmarkReloadTrigger chan struct{}
	if cfg.BookmarkFile != "" {
		loggerClient.Info("bookmark file configured, initializing bookmark reloader",
			logger.String("file", cfg.BookmarkFile),
			logger.Bool("watch", cfg.WatchBookmarkFile))
		bookmarkReloadTrigger = make(chan struct{}, 1)
		a.bookmarkReloader = scheduler.NewBookmarkReloader(
			cfg.BookmarkFile,
			svc,
			loggerClient,
			cfg.ReloadInterval,
			cfg.WatchBookmarkFile,
			bookmarkReloadTrigger,
		)
	} else {
		loggerClient.Info("bookmark file not configured, bookmark reload disabled")
	}

	// Initialize cloud syncer (if a remote is configured)
	var cloudSyncTrigger chan struct{}
	if cfg.CloudDSN != "" {
		remote, err := cloud.OpenRemote(cfg.CloudDSN, cloud.RemoteOptions{
			Logger: loggerClient,
			Clock:  clk,
			Redis:  RetryPolicy(cfg),
		})
		if err != nil {
			utils.CloseLogged(backend, "storage", loggerClient)
			return nil, fmt.Errorf("failed to open cloud remote: %w", err)
		}
		a.remote = remote
		cloudSyncTrigger = make(chan struct{}, 1)
		a.cloudSyncer = scheduler.NewCloudSyncer(
			remote,
			svc,
			loggerClient,
			cfg.CloudSyncInterval,
			cloudSyncTrigger,
		)
	} else {
		loggerClient.Info("cloud remote not configured, cloud sync disabled")
	}

	// Only backends with reclaimable space get a collector
	if compactor, ok := backend.(scheduler.Compactor); ok {
		a.gc = scheduler.NewGarbageCollector(compactor, loggerClient, cfg.GCInterval)
	}

	d := deps.Deps{
		Logger:                loggerClient,
		StartTime:             time.Now(),
		Version:               version.Version,
		Commit:                version.Commit,
		BuildDate:             version.BuildDate,
		GoVersion:             version.GoVersion,
		AllowedHosts:          cfg.AllowedHosts,
		AllowedCIDRS:          cfg.AllowedCIDRS,
		TrustProxy:            cfg.TrustProxy,
		Bookmarks:             svc,
		Ready:                 h.Started,
		QueueDepth:            h.QueueDepth,
		StorageScheme:         store.SchemeOf(cfg.StoreDSN),
		BookmarkReloadTrigger: bookmarkReloadTrigger,
		CloudSyncTrigger:      cloudSyncTrigger,
		RateLimitBurst:        cfg.RateLimitBurst,
		RateLimitPerMin:       cfg.RateLimitPerMin,
	}
	a.server = httpserver.New(cfg, loggerClient, d)

	return a, nil
}

// Service exposes the bookmark service, mostly for tests.
func (a *App) Service() *bookmark.Service { return a.service }

// Run starts everything and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx ends or the server fails.
func (a *App) RunContext(ctx context.Context) error {
	a.logger.Infof("🚀 Starting bkmeta %s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Info(version.String())

	if err := a.Start(ctx); err != nil {
		a.Shutdown()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.Shutdown()
	if runErr == nil {
		a.logger.Info("✅ bkmeta stopped cleanly")
	}
	return runErr
}

// Start loads the collection and starts the schedulers. The HTTP server
// is not started.
func (a *App) Start(ctx context.Context) error {
	if err := a.service.Init(ctx); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	if a.bookmarkReloader != nil {
		if err := a.bookmarkReloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start bookmark reloader: %w", err)
		}
		a.logger.Info("bookmark reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	if a.cloudSyncer != nil {
		if err := a.cloudSyncer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cloud syncer: %w", err)
		}
		a.logger.Info("cloud syncer started",
			logger.Duration("interval", a.cfg.CloudSyncInterval))
	}

	if a.gc != nil {
		if err := a.gc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start garbage collector: %w", err)
		}
		a.logger.Info("garbage collector started",
			logger.Duration("interval", a.cfg.GCInterval))
	}
	return nil
}

// Shutdown stops schedulers, then the mutation queue, then closes storage.
// The HTTP server must already be stopped.
func (a *App) Shutdown() {
	if a.bookmarkReloader != nil {
		a.bookmarkReloader.Stop()
	}
	if a.cloudSyncer != nil {
		a.cloudSyncer.Stop()
	}
	if a.gc != nil {
		a.gc.Stop()
	}

	a.holder.Stop()

	if a.remote != nil {
		utils.CloseLogged(a.remote, "cloud remote", a.logger)
	}
	utils.CloseLogged(a.backend, "storage", a.logger)
}

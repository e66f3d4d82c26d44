// Package server boots every component of lister and runs the HTTP server
// together with the in-process queue workers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/lister/app/edge"
	"github.com/shashiranjanraj/lister/app/jobs"
	"github.com/shashiranjanraj/lister/app/remote"
	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/app/routes"
	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/config"
	_ "github.com/shashiranjanraj/lister/database/migrations"
	"github.com/shashiranjanraj/lister/pkg/cache"
	"github.com/shashiranjanraj/lister/pkg/database"
	"github.com/shashiranjanraj/lister/pkg/event"
	"github.com/shashiranjanraj/lister/pkg/kv"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/metrics"
	"github.com/shashiranjanraj/lister/pkg/middleware"
	"github.com/shashiranjanraj/lister/pkg/migration"
	"github.com/shashiranjanraj/lister/pkg/queue"
	"github.com/shashiranjanraj/lister/pkg/reqid"
	"github.com/shashiranjanraj/lister/pkg/router"
	"github.com/shashiranjanraj/lister/pkg/storage"
	"github.com/shashiranjanraj/lister/pkg/workerpool"
)

// App holds the booted components. Build it with Boot and release it with
// Close.
type App struct {
	Disk     storage.Disk
	DB       *gorm.DB
	Queue    *queue.Manager
	Events   *event.Dispatcher
	Projects *repositories.ProjectRepository
	Usage    *services.UsageService
	Wizard   *services.Wizard
	Catalog  *services.ProjectService
	Edge     *edge.Handler

	store  kv.Store
	redis  *redis.Client
	limits limiter.Store
	pool   *workerpool.Pool
}

// Boot loads configuration and wires storage, persistence, cache, queue,
// services and the edge proxy.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{Events: event.New()}

	storage.Connect(ctx)
	a.Disk = storage.Default()

	store, err := kv.Open(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	if err := a.connectDB(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var c cache.Store = cache.NewMemory()
	if a.redis != nil && config.CacheDriver() == "redis" {
		c = cache.NewRedis(a.redis, "lister:cache:")
	}

	a.limits, err = middleware.LimiterStore(a.redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var driver queue.Driver = queue.NewMemoryDriver()
	if a.redis != nil && config.QueueDriver() == "redis" {
		driver = queue.NewRedisDriver(a.redis, "lister:queue")
	}
	var qopts []queue.Option
	if a.DB != nil {
		qopts = append(qopts, queue.WithFailedStore(a.DB))
	}
	a.Queue = queue.New(driver, qopts...)

	a.Projects = repositories.NewProjectRepository(store)
	a.Usage = services.NewUsageService(
		repositories.NewUsageRepository(store),
		repositories.NewSubscriptionRepository(store),
	)
	a.Catalog = services.NewProjectService(a.Projects)

	client := remote.NewEdgeClient(config.EdgeBaseURL(), config.RemoteTimeout(), a.Disk)
	a.Wizard = services.NewWizard(
		a.Projects,
		repositories.NewWizardRepository(store),
		a.Usage,
		client,
		services.WithRemoteTimeout(config.RemoteTimeout()),
		services.WithEvents(a.Events),
	)

	jobs.Register(a.Queue, a.Events, a.Projects, a.Disk)

	a.pool = workerpool.New(config.BrowserConcurrency())
	a.Edge = edge.NewHandler(edge.NewCloudflare(edge.CloudflareOptions{
		APIBase:     config.CloudflareAPIBase(),
		AccountID:   config.CloudflareAccountID(),
		APIToken:    config.CloudflareAPIToken(),
		TextModel:   config.TextModel(),
		ImageModel:  config.ImageModel(),
		VisionModel: config.VisionModel(),
		Timeout:     config.RemoteTimeout(),

		RequestsPerSecond: config.CloudflareRateLimit(),
	}), a.pool, c, config.CacheTTL())

	logger.Info("lister booted",
		"kv", config.KVDriver(),
		"disk", config.StorageDefault(),
		"cache", driverName(a.redis, config.CacheDriver()),
		"queue", driverName(a.redis, config.QueueDriver()),
	)
	return a, nil
}

// connectDB opens the SQL database when the KV driver needs it or a DSN is
// configured explicitly. Without one, failed jobs stay in memory.
func (a *App) connectDB() error {
	if database.DB == nil && config.Get("DATABASE_DSN", "") != "" {
		if err := database.Connect(); err != nil {
			return err
		}
	}
	a.DB = database.DB
	return nil
}

func (a *App) connectRedis(ctx context.Context) error {
	if config.CacheDriver() != "redis" && config.QueueDriver() != "redis" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis: ping %s: %w", config.RedisAddr(), err)
	}
	a.redis = client
	return nil
}

func driverName(client *redis.Client, driver string) string {
	if client != nil && driver == "redis" {
		return "redis"
	}
	return "memory"
}

// Handler builds the router with the global middleware stack, outermost
// first: metrics, recovery, request id, logger, security headers, CORS,
// rate limit.
func (a *App) Handler() (http.Handler, error) {
	ipLimit, err := middleware.NewIPRateLimiter(config.RateLimit(), a.limits)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	userLimit, err := middleware.NewUserRateLimiter(config.RateLimit(), a.limits)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	r := router.New()
	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		middleware.Secure(middleware.SecureOptions(!config.IsProduction())),
		middleware.CORS(middleware.DefaultCORSOptions()),
		ipLimit,
	)
	routes.RegisterAPI(r, a.deps(userLimit))
	return r.Handler(), nil
}

func (a *App) deps(userLimit router.Middleware) routes.Deps {
	d := routes.Deps{
		Wizard:    a.Wizard,
		Projects:  a.Catalog,
		Usage:     a.Usage,
		Edge:      a.Edge,
		UserLimit: userLimit,
	}
	if local, ok := a.Disk.(*storage.LocalDisk); ok {
		d.Files = http.FileServer(http.Dir(local.Root()))
	}
	return d
}

// Routes lists the endpoints without booting any infrastructure.
func Routes() []router.Route {
	r := router.New()
	routes.RegisterAPI(r, routes.Deps{
		Edge:  edge.NewHandler(nil, nil, nil, 0),
		Files: http.NotFoundHandler(),
	})
	return r.Routes()
}

// Close releases every connection Boot opened. Safe on a partially booted
// App.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Shutdown()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("kv: close", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			logger.Warn("database: close", "error", err)
		}
		database.DB = nil
	}
}

// Migrate runs pending migrations on the App's database, if it has one.
func (a *App) Migrate() error {
	if a.DB == nil {
		logger.Warn("migrate: no database configured, skipping")
		return nil
	}
	ran, err := migration.New(a.DB).Run()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied", "count", len(ran))
	return nil
}

// Options tune Start.
type Options struct {
	// Workers is the number of in-process queue workers. Zero disables them.
	Workers int
	// Migrate runs pending migrations before listening.
	Migrate bool
}

// Start boots the App and serves HTTP on APP_PORT until ctx is cancelled,
// then drains in-flight requests and stops the workers.
func Start(ctx context.Context, opts Options) error {
	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Migrate {
		if err := a.Migrate(); err != nil {
			return err
		}
	}

	handler, err := a.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	var wg sync.WaitGroup
	if opts.Workers > 0 {
		wg.Go(func() { a.Queue.Work(workCtx, opts.Workers) })
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("lister listening", "addr", srv.Addr, "env", config.AppEnv())
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ShutdownTimeout())
		err = srv.Shutdown(shutdownCtx)
		cancel()
	}

	stopWorkers()
	wg.Wait()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

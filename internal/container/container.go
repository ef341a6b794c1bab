package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"commerce/navigation/internal/api"
	"commerce/navigation/internal/cache"
	"commerce/navigation/internal/client"
	"commerce/navigation/internal/config"
	"commerce/navigation/internal/mirror"
	"commerce/navigation/internal/navigation"
	"commerce/navigation/internal/queue"
	"commerce/navigation/internal/repository"
	"commerce/navigation/internal/service"
	"commerce/navigation/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Container holds all initialized components
type Container struct {
	Config     *config.Config
	Catalog    repository.Catalog
	Navigation *navigation.Service
	Queue      queue.Queue

	Service *service.Service
	Server  *http.Server

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	opts, err := navigation.OptionsFromConfig(cfg.Navigation)
	if err != nil {
		return nil, fmt.Errorf("invalid navigation configuration: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	container.redis = rdb
	log.Info("✅ Connected to Redis successfully")

	catalog, err := container.newCatalog(ctx, cfg)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Catalog = catalog

	store, err := newStore(cfg.Cache, rdb)
	if err != nil {
		container.Close()
		return nil, err
	}

	selections := state.NewRedisSelectionStore(rdb, time.Duration(cfg.Redis.SelectionTTL)*time.Second)
	container.Navigation = navigation.NewService(
		catalog,
		cache.NewLayer(store, cache.WithBuildTimeout(time.Duration(cfg.Cache.BuildTimeout)*time.Second)),
		opts,
		navigation.WithSelectionStore(selections),
	)

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, cfg.Redis)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Queue = redisQueue

	container.Service = service.NewService(
		redisQueue,
		container.Navigation,
		cfg.Redis.Workers,
		cfg.Redis.MinIdleTime,
	)

	router := api.NewRouter(api.NewHandler(container.Navigation, container.Service), cfg.Server.Mode)
	container.Server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return container, nil
}

func (c *Container) newCatalog(ctx context.Context, cfg *config.Config) (repository.Catalog, error) {
	switch cfg.Catalog.Source {
	case "postgres":
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		c.db = db
		log.Info("✅ Connected to Postgres successfully")
		return repository.NewPostgresCatalog(db, cfg.Catalog.Tables, cfg.Navigation.AdditionalFields), nil

	case "remote":
		endpoints := append([]string{cfg.Catalog.Remote.BaseURL}, cfg.Catalog.Remote.Mirrors...)
		supplier := mirror.NewSupplier(ctx, endpoints, client.HealthPath)
		if supplier.Len() == 0 {
			return nil, errors.New("no catalog endpoint configured")
		}
		return client.NewRemoteCatalog(cfg.Catalog.Remote, supplier), nil

	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

func newStore(cfg config.CacheConfig, rdb *redis.Client) (cache.Store, error) {
	ttl := time.Duration(cfg.TTL) * time.Second
	switch cfg.Store {
	case "memory":
		return cache.NewMemoryStore(ttl), nil
	case "redis":
		return cache.NewRedisStore(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("unknown cache store %q", cfg.Store)
	}
}

// Run serves HTTP and consumes change events until ctx is done.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("🚀 Serving navigation on %s", c.Server.Addr)
		if err := c.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return c.Server.Shutdown(shutdownCtx)
	})

	// Run workers to invalidate on catalog changes
	g.Go(func() error {
		return c.Service.RunWorkers(ctx)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			return err
		}
	}

	log.Info("Container shut down successfully")
	return nil
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urlmint/urlmint/internal/api"
	"github.com/urlmint/urlmint/internal/config"
	"github.com/urlmint/urlmint/internal/middleware"
	"github.com/urlmint/urlmint/internal/observability"
	"github.com/urlmint/urlmint/internal/repository"
	"github.com/urlmint/urlmint/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Deps bundles the external resources the router needs. Cache and
// Publisher are optional; nil disables the corresponding layer.
type Deps struct {
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Publisher service.ClickPublisher
	Obs       *observability.Observability
}

// NewStore assembles the storage stack: pgx repository, cache-aside
// layer, then the resilience layer the service talks to.
func NewStore(cfg *config.Config, deps Deps) repository.MappingStore {
	var store repository.MappingStore = repository.NewMappingRepository(deps.DB)
	store = repository.NewCachedMappingRepository(store, deps.Cache, cfg.Cache.TTL)
	return repository.NewResilientMappingRepository(store)
}

// NewShortener builds the fully wired service on top of a store.
func NewShortener(cfg *config.Config, store repository.MappingStore, deps Deps) *service.Shortener {
	gen := service.NewCodeGenerator(cfg.App.ShortCodeLen)
	expiry := service.NewExpiryPolicy(cfg.App.DefaultExpiryDays, cfg.App.MaxExpiryDays)
	clicks := service.NewClickAccountant(store, deps.Publisher, deps.Obs.Logger)
	return service.NewShortener(
		store,
		gen,
		expiry,
		clicks,
		cfg.App.BaseURL,
		cfg.App.ShortCodeRetries,
		cfg.App.RecentLimit,
		deps.Obs.Logger,
		deps.Obs.Metrics,
	)
}

// NewRouter initializes all dependencies and returns a configured Gin
// router. Useful for tests that don't need the full HTTP server.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	store := NewStore(cfg, deps)
	shortener := NewShortener(cfg, store, deps)

	var cache api.CacheInterface
	if deps.Cache != nil {
		cache = &redisPinger{client: deps.Cache}
	}
	handler := api.NewHandler(shortener, deps.DB, cache, deps.Obs.Logger, deps.Obs.Metrics.Handler())

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("urlmint"))
	r.Use(middleware.Logging(deps.Obs.Logger))
	handler.RegisterRoutes(r)
	return r
}

// NewServer initializes the router plus HTTP server settings.
func NewServer(cfg *config.Config, deps Deps) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewRouter(cfg, deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

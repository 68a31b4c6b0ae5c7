package gamify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"wastewise/adapters/jsonfile"
	mem "wastewise/adapters/memory"
	redisAdapter "wastewise/adapters/redis"
	sqlxAdapter "wastewise/adapters/sqlx"
	"wastewise/catalog"
	"wastewise/classifier"
	"wastewise/config"
	"wastewise/core"
	"wastewise/engine"
	"wastewise/integrations/webhook"
	"wastewise/realtime"
)

// OpenStorage creates the storage adapter selected by cfg. The cleanup
// func releases connections and is safe to call once.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (engine.Storage, func(), error) {
	noop := func() {}
	switch cfg.Adapter {
	case "memory":
		return mem.New(mem.WithKey(cfg.Key)), noop, nil
	case "file":
		s, err := jsonfile.New(cfg.File.Path, jsonfile.WithKey(cfg.Key))
		if err != nil {
			return nil, nil, fmt.Errorf("open file storage: %w", err)
		}
		return s, noop, nil
	case "redis":
		rc := redisAdapter.DefaultConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			rc.PoolSize = cfg.Redis.PoolSize
		}
		rc.KeyPrefix = cfg.Redis.KeyPrefix
		rc.Key = cfg.Key
		s, err := redisAdapter.New(rc)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "sql":
		sc := sqlxAdapter.DefaultConfig(sqlxAdapter.Driver(cfg.SQL.Driver))
		sc.DSN = cfg.SQL.DSN
		sc.MaxOpenConns = cfg.SQL.MaxOpenConns
		sc.MaxIdleConns = cfg.SQL.MaxIdleConns
		sc.ConnMaxLifetime = cfg.SQL.ConnMaxLifetime
		sc.Migrate = cfg.SQL.Migrate
		sc.Key = cfg.Key
		s, err := sqlxAdapter.New(ctx, sc)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
}

// LoadCatalog returns the catalog file named by cfg, or the built-in one.
func LoadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Path)
}

// NewClassifier builds the classifier selected by cfg.
func NewClassifier(cfg config.ClassifierConfig, cat *catalog.Catalog) (classifier.Classifier, error) {
	switch cfg.Mode {
	case "demo", "":
		opts := []classifier.DemoOption{classifier.WithDelay(cfg.Delay)}
		if cfg.Seed != 0 {
			opts = append(opts, classifier.WithSeed(cfg.Seed))
		}
		return classifier.NewDemo(cat.CategoryIDs(), opts...)
	case "remote":
		return classifier.NewRemote(cfg.Endpoint,
			classifier.WithAuthToken(cfg.Token),
			classifier.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	default:
		return nil, fmt.Errorf("unknown classifier mode: %s", cfg.Mode)
	}
}

// NewWebhook returns nil when no endpoints are configured.
func NewWebhook(cfg config.WebhookConfig, log *slog.Logger) *webhook.Sink {
	if len(cfg.Endpoints) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(cfg.Types))
	for _, t := range cfg.Types {
		types = append(types, core.EventType(t))
	}
	return webhook.New(cfg.Endpoints,
		webhook.WithClient(&http.Client{Timeout: cfg.Timeout}),
		webhook.WithTypes(types...),
		webhook.WithSecret(cfg.Secret),
		webhook.WithLogger(log))
}

// DispatchMode maps the config value onto the engine's modes.
func DispatchMode(cfg config.EventsConfig) engine.DispatchMode {
	if cfg.Dispatch == "sync" {
		return engine.DispatchSync
	}
	return engine.DispatchAsync
}

// FromConfig builds the whole engine from cfg. hub may be nil. extra options
// are applied last and override what cfg selects. The close func flushes
// progress, then closes storage; it returns the flush error so callers that
// exit right after can report lost progress.
func FromConfig(ctx context.Context, cfg *config.Config, log *slog.Logger, hub *realtime.Hub, extra ...Option) (*engine.Service, func() error, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}
	cat, err := LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}
	cls, err := NewClassifier(cfg.Classifier, cat)
	if err != nil {
		return nil, nil, err
	}
	storage, closeStorage, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	opts := []Option{
		WithStorage(storage),
		WithClassifier(cls),
		WithCatalog(cat),
		WithDispatchMode(DispatchMode(cfg.Events)),
		WithLogger(log),
		WithClassifyTimeout(cfg.Classifier.Timeout),
		WithRetryInterval(cfg.Storage.RetryInterval),
	}
	if hub != nil {
		opts = append(opts, WithRealtime(hub))
	}
	if sink := NewWebhook(cfg.Webhooks, log); sink != nil {
		opts = append(opts, WithWebhook(sink))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, WithMetrics())
	}
	opts = append(opts, extra...)

	svc, err := New(ctx, opts...)
	if err != nil {
		closeStorage()
		return nil, nil, err
	}
	closeFn := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := svc.Close(ctx)
		closeStorage()
		if err != nil {
			log.Error("failed to flush progress", "error", err)
			return fmt.Errorf("flush progress: %w", err)
		}
		return nil
	}
	return svc, closeFn, nil
}

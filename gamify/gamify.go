// Package gamify assembles a ready-to-use engine.Service from options or
// from a config.Config.
package gamify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mem "wastewise/adapters/memory"
	"wastewise/analytics"
	"wastewise/catalog"
	"wastewise/classifier"
	"wastewise/engine"
	"wastewise/integrations/webhook"
	"wastewise/metrics"
	"wastewise/realtime"
)

// Option configures the service builder.
type Option func(*options)

type options struct {
	storage    engine.Storage
	classifier classifier.Classifier
	catalog    *catalog.Catalog
	mode       engine.DispatchMode
	rules      engine.RuleEngine
	hub        *realtime.Hub
	webhook    *webhook.Sink
	stats      *analytics.Metrics
	metrics    bool
	log        *slog.Logger
	timeout    time.Duration
	retry      time.Duration
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(o *options) { o.storage = s } }

// WithClassifier sets the image classifier.
func WithClassifier(c classifier.Classifier) Option { return func(o *options) { o.classifier = c } }

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *catalog.Catalog) Option { return func(o *options) { o.catalog = c } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(o *options) { o.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(o *options) { o.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(o *options) { o.hub = h } }

// WithWebhook forwards all engine events to sink.
func WithWebhook(s *webhook.Sink) Option { return func(o *options) { o.webhook = s } }

// WithAnalytics records play statistics into m.
func WithAnalytics(m *analytics.Metrics) Option { return func(o *options) { o.stats = m } }

// WithMetrics exports events, save attempts and classifier latency to the
// Prometheus series in package metrics.
func WithMetrics() Option { return func(o *options) { o.metrics = true } }

// WithLogger sets the logger shared by the store and the service.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithClassifyTimeout bounds each classifier call.
func WithClassifyTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithRetryInterval sets the wait before retrying a failed save.
func WithRetryInterval(d time.Duration) Option { return func(o *options) { o.retry = d } }

// New builds a configured Service. If not provided, defaults are used:
//   - storage: in-memory
//   - catalog: built-in
//   - classifier: demo over the catalog's categories
//   - rules: DefaultRuleEngine
//   - dispatch: async
//   - metrics: off
func New(ctx context.Context, opts ...Option) (*engine.Service, error) {
	o := &options{mode: engine.DispatchAsync, log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.catalog == nil {
		o.catalog = catalog.Default()
	}
	if o.storage == nil {
		o.storage = mem.New()
	}
	if o.classifier == nil {
		demo, err := classifier.NewDemo(o.catalog.CategoryIDs())
		if err != nil {
			return nil, err
		}
		o.classifier = demo
	}
	if o.rules == nil {
		o.rules = engine.DefaultRuleEngine(o.catalog)
	}

	storeOpts := []engine.StoreOption{
		engine.WithStoreLogger(o.log),
		engine.WithRetryInterval(o.retry),
	}
	svcOpts := []engine.ServiceOption{
		engine.WithLogger(o.log),
		engine.WithClassifyTimeout(o.timeout),
	}
	if o.metrics {
		storeOpts = append(storeOpts, engine.WithPersistObserver(metrics.ObservePersist))
		svcOpts = append(svcOpts, engine.WithClassifyObserver(metrics.ObserveClassify))
	}

	store, err := engine.OpenProgressStore(ctx, o.storage, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open progress: %w", err)
	}

	bus := engine.NewEventBus(o.mode)
	svc := engine.NewService(store, o.classifier, o.catalog, bus, o.rules, svcOpts...)
	if o.hub != nil {
		o.hub.Attach(svc)
	}
	if o.webhook != nil {
		svc.SubscribeAll(o.webhook.OnEvent)
	}
	if o.stats != nil {
		svc.SubscribeAll(o.stats.OnEvent)
	}
	if o.metrics {
		svc.SubscribeAll(metrics.OnEvent)
		metrics.CoinsBalance.Set(float64(svc.Snapshot().Coins))
	}
	return svc, nil
}

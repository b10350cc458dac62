package oracle

import (
	"context"
	"sync"
	"time"

	"campaign-settlement/pkg/config"
	"campaign-settlement/pkg/errutil"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Cache serves market snapshots from a time-boxed in-process cache. A fetch
// failure never propagates: callers get the last known snapshot instead, or
// a zero-value snapshot when nothing was ever fetched.
type Cache struct {
	source MarketSource
	target float64
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	last      Snapshot
	lastFetch time.Time
	primed    bool
}

type CacheParams struct {
	fx.In

	Config *config.Config
	Source MarketSource
}

func NewCache(p CacheParams) (*Cache, error) {
	if p.Config.Oracle.TargetMarketCap <= 0 {
		return nil, errutil.FailedPrecondition("oracle target market cap must be positive")
	}
	if p.Config.Oracle.CacheTTL <= 0 {
		return nil, errutil.FailedPrecondition("oracle cache ttl must be positive")
	}

	return &Cache{
		source: p.Source,
		target: p.Config.Oracle.TargetMarketCap,
		ttl:    p.Config.Oracle.CacheTTL,
		now:    time.Now,
		last:   Snapshot{Target: p.Config.Oracle.TargetMarketCap},
	}, nil
}

// GetSnapshot returns the cached snapshot, refreshing it first when it is
// older than the cache TTL. A refresh failure is logged and the stale
// snapshot is returned unchanged.
func (c *Cache) GetSnapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.primed && now.Sub(c.lastFetch) <= c.ttl {
		return c.last
	}

	quote, err := c.source.Fetch(ctx)
	if err != nil {
		zap.L().Warn("oracle fetch failed, serving stale snapshot",
			zap.Bool("primed", c.primed),
			zap.Time("last_fetch", c.lastFetch),
			zap.Error(err),
		)
		return c.last
	}

	c.last = NewSnapshot(quote, c.target, now)
	c.lastFetch = now
	c.primed = true

	zap.L().Debug("oracle snapshot refreshed",
		zap.Float64("market_value", c.last.MarketValue),
		zap.Float64("unit_price", c.last.UnitPrice),
		zap.Bool("target_reached", c.last.TargetReached),
	)

	return c.last
}

var Module = fx.Module("oracle",
	fx.Provide(
		NewHTTPSource,
		NewCache,
	),
	fx.Invoke(StartRefresher),
)

// StartRefresher re-primes the cache every TTL interval so on-demand
// callers usually see warm data.
func StartRefresher(lc fx.Lifecycle, c *Cache, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go refreshLoop(ctx, c, cfg.Oracle.CacheTTL)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func refreshLoop(ctx context.Context, c *Cache, interval time.Duration) {
	zap.L().Info("[Oracle] started background refresh", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.GetSnapshot(ctx)

	for {
		select {
		case <-ticker.C:
			c.GetSnapshot(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Oracle] background refresh stopped")
			return
		}
	}
}

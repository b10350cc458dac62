package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaign-settlement/pkg/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type sourceMock struct {
	fetchFn func(ctx context.Context) (Quote, error)
}

func (m *sourceMock) Fetch(ctx context.Context) (Quote, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return Quote{}, nil
}

func testConfig(target float64, ttl time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.Oracle.TargetMarketCap = target
	cfg.Oracle.CacheTTL = ttl
	return cfg
}

func newTestCache(t *testing.T, cfg *config.Config, src MarketSource) *Cache {
	t.Helper()

	cache, err := NewCache(CacheParams{Config: cfg, Source: src})
	require.NoError(t, err)
	return cache
}

func TestNewSnapshotTargetInvariant(t *testing.T) {
	at := time.Now()

	reached := NewSnapshot(Quote{MarketValue: 1_000_000, UnitPrice: 2}, 1_000_000, at)
	require.True(t, reached.TargetReached)

	missed := NewSnapshot(Quote{MarketValue: 999_999, UnitPrice: 2}, 1_000_000, at)
	require.False(t, missed.TargetReached)
}

func TestNewSnapshotUnsetTargetNeverReached(t *testing.T) {
	at := time.Now()

	zero := NewSnapshot(Quote{MarketValue: 1_000_000, UnitPrice: 2}, 0, at)
	require.False(t, zero.TargetReached)

	negative := NewSnapshot(Quote{MarketValue: 1_000_000, UnitPrice: 2}, -1, at)
	require.False(t, negative.TargetReached)
}

func TestNewCacheRejectsInvalidConfig(t *testing.T) {
	_, err := NewCache(CacheParams{Config: testConfig(0, time.Minute), Source: &sourceMock{}})
	require.Error(t, err)

	_, err = NewCache(CacheParams{Config: testConfig(-5, time.Minute), Source: &sourceMock{}})
	require.Error(t, err)

	_, err = NewCache(CacheParams{Config: testConfig(500, 0), Source: &sourceMock{}})
	require.Error(t, err)
}

func TestGetSnapshotZeroValueBeforeFirstSuccess(t *testing.T) {
	cache := newTestCache(t, testConfig(500, time.Minute), &sourceMock{
		fetchFn: func(ctx context.Context) (Quote, error) {
			return Quote{}, errors.New("source unreachable")
		},
	})

	snap := cache.GetSnapshot(context.Background())
	require.Zero(t, snap.MarketValue)
	require.False(t, snap.TargetReached)
	require.Equal(t, float64(500), snap.Target)
}

func TestGetSnapshotCachesWithinTTL(t *testing.T) {
	var fetches int
	cache := newTestCache(t, testConfig(500, time.Minute), &sourceMock{
		fetchFn: func(ctx context.Context) (Quote, error) {
			fetches++
			return Quote{MarketValue: 600, UnitPrice: 3}, nil
		},
	})

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	first := cache.GetSnapshot(context.Background())
	require.Equal(t, 1, fetches)
	require.True(t, first.TargetReached)

	now = now.Add(30 * time.Second)
	second := cache.GetSnapshot(context.Background())
	require.Equal(t, 1, fetches)
	require.Equal(t, first, second)

	now = now.Add(2 * time.Minute)
	cache.GetSnapshot(context.Background())
	require.Equal(t, 2, fetches)
}

func TestGetSnapshotFailsOpenToStale(t *testing.T) {
	var fail bool
	cache := newTestCache(t, testConfig(500, time.Minute), &sourceMock{
		fetchFn: func(ctx context.Context) (Quote, error) {
			if fail {
				return Quote{}, errors.New("timeout")
			}
			return Quote{MarketValue: 750, UnitPrice: 1.5}, nil
		},
	})

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	warm := cache.GetSnapshot(context.Background())
	require.Equal(t, float64(750), warm.MarketValue)

	fail = true
	now = now.Add(5 * time.Minute)

	stale := cache.GetSnapshot(context.Background())
	require.Equal(t, warm, stale)
}

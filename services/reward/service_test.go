package reward

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaign-settlement/pkg/config"
	"campaign-settlement/services/participant"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock struct {
	listEligibleFn func(ctx context.Context) ([]participant.Participant, error)
}

func (m *repoMock) ListEligible(ctx context.Context) ([]participant.Participant, error) {
	if m.listEligibleFn != nil {
		return m.listEligibleFn(ctx)
	}
	return nil, nil
}

func testService(base float64, repo participant.Repository, expression string) *Service {
	cfg := &config.Config{}
	cfg.Settlement.BaseRewardUSD = base
	cfg.Settlement.EligibilityExpression = expression
	return NewService(ServiceParams{Config: cfg, Participants: repo})
}

func TestComputeRankedRewardsOrderingAndAmounts(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entrants := []participant.Participant{
		{ID: "p1", RankingMetric: 50, JoinedAt: base.Add(2 * time.Hour)},
		{ID: "p2", RankingMetric: 50, JoinedAt: base.Add(1 * time.Hour)},
		{ID: "p3", RankingMetric: 30, JoinedAt: base.Add(3 * time.Hour)},
		{ID: "p4", RankingMetric: 20, JoinedAt: base.Add(4 * time.Hour)},
		{ID: "p5", RankingMetric: 10, JoinedAt: base.Add(5 * time.Hour)},
	}

	svc := testService(100, &repoMock{
		listEligibleFn: func(ctx context.Context) ([]participant.Participant, error) {
			return entrants, nil
		},
	}, "")

	rewards, err := svc.ComputeRankedRewards(context.Background())
	require.NoError(t, err)
	require.Len(t, rewards, 5)

	// Equal metrics break ties by earlier join time.
	require.Equal(t, "p2", rewards[0].Participant.ID)
	require.Equal(t, "p1", rewards[1].Participant.ID)
	require.Equal(t, "p3", rewards[2].Participant.ID)
	require.Equal(t, "p4", rewards[3].Participant.ID)
	require.Equal(t, "p5", rewards[4].Participant.ID)

	for i, r := range rewards {
		require.Equal(t, i+1, r.Rank)
		require.Equal(t, float64(100), r.BaseAmount)
	}

	require.Equal(t, float64(1100), rewards[0].TotalUSD)
	require.Equal(t, float64(600), rewards[1].TotalUSD)
	require.Equal(t, float64(350), rewards[2].TotalUSD)
	require.Equal(t, float64(100), rewards[3].TotalUSD)
	require.Equal(t, float64(100), rewards[4].TotalUSD)

	var sum float64
	for _, r := range rewards {
		sum += r.TotalUSD
	}
	require.Equal(t, float64(2250), sum)
}

func TestComputeRankedRewardsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entrants := []participant.Participant{
		{ID: "a", RankingMetric: 7, JoinedAt: base.Add(time.Minute)},
		{ID: "b", RankingMetric: 7, JoinedAt: base},
		{ID: "c", RankingMetric: 9, JoinedAt: base},
	}

	svc := testService(50, &repoMock{
		listEligibleFn: func(ctx context.Context) ([]participant.Participant, error) {
			out := make([]participant.Participant, len(entrants))
			copy(out, entrants)
			return out, nil
		},
	}, "")

	first, err := svc.ComputeRankedRewards(context.Background())
	require.NoError(t, err)
	second, err := svc.ComputeRankedRewards(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, "c", first[0].Participant.ID)
	require.Equal(t, "b", first[1].Participant.ID)
	require.Equal(t, "a", first[2].Participant.ID)
}

func TestComputeRankedRewardsEmpty(t *testing.T) {
	svc := testService(100, &repoMock{}, "")

	rewards, err := svc.ComputeRankedRewards(context.Background())
	require.NoError(t, err)
	require.Empty(t, rewards)
}

func TestComputeRankedRewardsStoreError(t *testing.T) {
	svc := testService(100, &repoMock{
		listEligibleFn: func(ctx context.Context) ([]participant.Participant, error) {
			return nil, errors.New("store unreachable")
		},
	}, "")

	_, err := svc.ComputeRankedRewards(context.Background())
	require.Error(t, err)
}

func TestComputeRankedRewardsExpressionFilter(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entrants := []participant.Participant{
		{ID: "keep", RankingMetric: 40, JoinedAt: base},
		{ID: "drop", RankingMetric: 5, JoinedAt: base},
	}

	svc := testService(100, &repoMock{
		listEligibleFn: func(ctx context.Context) ([]participant.Participant, error) {
			return entrants, nil
		},
	}, `participant.ranking_metric >= 10.0`)

	rewards, err := svc.ComputeRankedRewards(context.Background())
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	require.Equal(t, "keep", rewards[0].Participant.ID)
	require.Equal(t, 1, rewards[0].Rank)
}

func TestComputeRankedRewardsBrokenExpressionExcludes(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entrants := []participant.Participant{
		{ID: "p1", RankingMetric: 40, JoinedAt: base},
		{ID: "p2", RankingMetric: 30, JoinedAt: base},
	}

	svc := testService(100, &repoMock{
		listEligibleFn: func(ctx context.Context) ([]participant.Participant, error) {
			return entrants, nil
		},
	}, `participant.nonexistent_field >`)

	// A filter that cannot be evaluated must never widen the payout set.
	rewards, err := svc.ComputeRankedRewards(context.Background())
	require.NoError(t, err)
	require.Empty(t, rewards)
}

func TestTiersFromConfig(t *testing.T) {
	tiers := TiersFromConfig(map[string]float64{"1": 900, "2": 450, "bogus": 1})
	require.Equal(t, float64(900), tiers.Bonus(1))
	require.Equal(t, float64(450), tiers.Bonus(2))
	require.Zero(t, tiers.Bonus(3))

	require.Equal(t, DefaultTiers, TiersFromConfig(nil))
}

package participant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campaign-settlement/services/testutil"
)

func seed(t *testing.T, participants ...Participant) *gormRepository {
	t.Helper()

	db := testutil.NewTestDB(t, &Participant{})
	for i := range participants {
		require.NoError(t, db.Create(&participants[i]).Error)
	}
	return &gormRepository{db: db}
}

func TestListEligibleFiltersPredicate(t *testing.T) {
	now := time.Now()
	repo := seed(t,
		Participant{ID: "ok", Status: StatusActive, PayoutAddress: "addr-1", ContentVerified: true, RankingMetric: 10, JoinedAt: now},
		Participant{ID: "inactive", Status: "banned", PayoutAddress: "addr-2", ContentVerified: true, RankingMetric: 20, JoinedAt: now},
		Participant{ID: "no-address", Status: StatusActive, PayoutAddress: "", ContentVerified: true, RankingMetric: 30, JoinedAt: now},
		Participant{ID: "unverified", Status: StatusActive, PayoutAddress: "addr-3", ContentVerified: false, RankingMetric: 40, JoinedAt: now},
	)

	eligible, err := repo.ListEligible(context.Background())
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, "ok", eligible[0].ID)
}

func TestListEligibleOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := seed(t,
		Participant{ID: "late-tie", Status: StatusActive, PayoutAddress: "a", ContentVerified: true, RankingMetric: 50, JoinedAt: base.Add(2 * time.Hour)},
		Participant{ID: "early-tie", Status: StatusActive, PayoutAddress: "b", ContentVerified: true, RankingMetric: 50, JoinedAt: base.Add(time.Hour)},
		Participant{ID: "low", Status: StatusActive, PayoutAddress: "c", ContentVerified: true, RankingMetric: 10, JoinedAt: base},
	)

	eligible, err := repo.ListEligible(context.Background())
	require.NoError(t, err)
	require.Len(t, eligible, 3)
	require.Equal(t, "early-tie", eligible[0].ID)
	require.Equal(t, "late-tie", eligible[1].ID)
	require.Equal(t, "low", eligible[2].ID)
}

func TestEligiblePredicate(t *testing.T) {
	p := Participant{Status: StatusActive, PayoutAddress: "addr", ContentVerified: true}
	require.True(t, p.Eligible())

	p.PayoutAddress = ""
	require.False(t, p.Eligible())
}

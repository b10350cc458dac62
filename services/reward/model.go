package reward

import (
	"sort"
	"strconv"

	"campaign-settlement/services/participant"
)

// RankedReward is derived per run, never stored independently.
type RankedReward struct {
	Participant participant.Participant
	Rank        int
	BaseAmount  float64
	BonusAmount float64
	TotalUSD    float64
}

// TierTable maps a 1-based rank to its bonus amount. Ranks without an entry
// get no bonus.
type TierTable map[int]float64

// DefaultTiers mirrors the campaign terms: top three ranks carry a bonus,
// everyone else gets the base reward only.
var DefaultTiers = TierTable{
	1: 1000,
	2: 500,
	3: 250,
}

func (t TierTable) Bonus(rank int) float64 {
	return t[rank]
}

// TiersFromConfig builds a TierTable from the string-keyed config map.
// Unparseable keys are skipped.
func TiersFromConfig(m map[string]float64) TierTable {
	if len(m) == 0 {
		return DefaultTiers
	}

	tiers := make(TierTable, len(m))
	for k, v := range m {
		rank, err := strconv.Atoi(k)
		if err != nil || rank < 1 {
			continue
		}
		tiers[rank] = v
	}

	if len(tiers) == 0 {
		return DefaultTiers
	}
	return tiers
}

// sortEligible orders participants by ranking metric descending, breaking
// ties by join time ascending. The sort is stable so equal rows keep their
// store order.
func sortEligible(participants []participant.Participant) {
	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].RankingMetric != participants[j].RankingMetric {
			return participants[i].RankingMetric > participants[j].RankingMetric
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
}

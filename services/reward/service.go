package reward

import (
	"context"

	"campaign-settlement/pkg/celengine"
	"campaign-settlement/pkg/config"
	"campaign-settlement/services/participant"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service computes the ranked reward sheet for the campaign. It has no side
// effects: the result is a pure function of current eligibility data.
type Service struct {
	participants participant.Repository
	baseReward   float64
	tiers        TierTable
	expression   string
}

type ServiceParams struct {
	fx.In

	Config       *config.Config
	Participants participant.Repository
}

func NewService(p ServiceParams) *Service {
	return &Service{
		participants: p.Participants,
		baseReward:   p.Config.Settlement.BaseRewardUSD,
		tiers:        TiersFromConfig(p.Config.Settlement.BonusTiersUSD),
		expression:   p.Config.Settlement.EligibilityExpression,
	}
}

// ComputeRankedRewards returns the ordered reward sheet. Zero eligible
// participants yields an empty slice, not an error.
func (s *Service) ComputeRankedRewards(ctx context.Context) ([]RankedReward, error) {
	eligible, err := s.participants.ListEligible(ctx)
	if err != nil {
		return nil, err
	}

	if s.expression != "" {
		eligible = s.applyExpression(eligible)
	}

	sortEligible(eligible)

	rewards := make([]RankedReward, 0, len(eligible))
	for i, p := range eligible {
		rank := i + 1
		bonus := s.tiers.Bonus(rank)
		rewards = append(rewards, RankedReward{
			Participant: p,
			Rank:        rank,
			BaseAmount:  s.baseReward,
			BonusAmount: bonus,
			TotalUSD:    s.baseReward + bonus,
		})
	}

	return rewards, nil
}

// applyExpression filters participants through the configured CEL
// expression. A participant whose evaluation errors is excluded and logged,
// never paid on a guess.
func (s *Service) applyExpression(eligible []participant.Participant) []participant.Participant {
	kept := make([]participant.Participant, 0, len(eligible))
	for _, p := range eligible {
		attrs := map[string]interface{}{
			"participant": celengine.StructToMap(p),
		}

		env, err := celengine.BuildCelEnvFromAttributes(attrs)
		if err != nil {
			zap.L().Warn("failed to build eligibility expression environment, excluding participant",
				zap.String("participant_id", p.ID),
				zap.Error(err),
			)
			continue
		}

		ok, err := celengine.Evaluate(env, s.expression, attrs)
		if err != nil {
			zap.L().Warn("eligibility expression failed, excluding participant",
				zap.String("participant_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			kept = append(kept, p)
		}
	}
	return kept
}

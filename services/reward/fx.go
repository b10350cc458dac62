package reward

import (
	"campaign-settlement/services/participant"

	"go.uber.org/fx"
)

var Module = fx.Module("reward.service",
	fx.Provide(
		participant.NewRepository,
		NewService,
	),
)

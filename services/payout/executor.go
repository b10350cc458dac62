package payout

import (
	"context"
	"time"

	"campaign-settlement/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor dispatches a batch of payment attempts. Attempts are independent:
// one failure never aborts or rolls back another, and the returned outcomes
// preserve the input order.
type Executor struct {
	channel     Channel
	timeout     time.Duration
	concurrency int
}

type ExecutorParams struct {
	fx.In

	Config  *config.Config
	Channel Channel
}

func NewExecutor(p ExecutorParams) *Executor {
	return &Executor{
		channel:     p.Channel,
		timeout:     p.Config.Settlement.AttemptTimeout,
		concurrency: p.Config.Settlement.DispatchConcurrency,
	}
}

// Dispatch sends every attempt and returns one outcome per attempt, same
// order. An empty batch returns immediately.
func (e *Executor) Dispatch(ctx context.Context, attempts []Attempt) []Outcome {
	if len(attempts) == 0 {
		return []Outcome{}
	}

	outcomes := make([]Outcome, len(attempts))

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, attempt := range attempts {
		g.Go(func() error {
			outcomes[i] = e.send(ctx, attempt)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (e *Executor) send(ctx context.Context, attempt Attempt) Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	txID, err := e.channel.Send(ctx, attempt)
	if err != nil {
		zap.L().Warn("payout.dispatch failed",
			zap.String("participant_id", attempt.ParticipantID),
			zap.String("payout_address", attempt.PayoutAddress),
			zap.Float64("amount_usd", attempt.AmountUSD),
			zap.Error(err),
		)
		return Outcome{
			ParticipantID: attempt.ParticipantID,
			Status:        OutcomeFailed,
			Error:         err.Error(),
		}
	}

	zap.L().Info("payout.dispatch succeeded",
		zap.String("participant_id", attempt.ParticipantID),
		zap.String("transaction_id", txID),
		zap.Float64("amount_usd", attempt.AmountUSD),
	)

	return Outcome{
		ParticipantID: attempt.ParticipantID,
		Status:        OutcomeSuccess,
		TransactionID: txID,
	}
}

var Module = fx.Module("payout.executor",
	fx.Provide(
		NewHTTPChannel,
		NewExecutor,
	),
)

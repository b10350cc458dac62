package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"campaign-settlement/services/reward"
)

func TestHandleSettlementRunInvalidPayload(t *testing.T) {
	svc, _ := newTestService(t, reachedSnapshot(), &rewardsMock{}, &dispatcherMock{})
	task := NewTask(svc)

	err := task.HandleSettlementRun(context.Background(), asynq.NewTask(TaskSettlementRun, []byte("{not json")))
	require.Error(t, err)
}

func TestHandleSettlementRunExecutes(t *testing.T) {
	rewards := &rewardsMock{
		computeFn: func(ctx context.Context) ([]reward.RankedReward, error) {
			return rankedRewards("p1"), nil
		},
	}
	dispatcher := &dispatcherMock{}

	svc, db := newTestService(t, reachedSnapshot(), rewards, dispatcher)
	task := NewTask(svc)

	err := task.HandleSettlementRun(context.Background(), asynq.NewTask(TaskSettlementRun, []byte(`{"reason":"manual","requested_by":"ops"}`)))
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.calls)
	require.EqualValues(t, 1, recordCount(t, db))
}

func TestHandleSettlementRunSkipsRetryOnMisconfiguration(t *testing.T) {
	snap := reachedSnapshot()
	snap.UnitPrice = -1

	rewards := &rewardsMock{
		computeFn: func(ctx context.Context) ([]reward.RankedReward, error) {
			return rankedRewards("p1"), nil
		},
	}

	svc, _ := newTestService(t, snap, rewards, &dispatcherMock{})
	task := NewTask(svc)

	err := task.HandleSettlementRun(context.Background(), asynq.NewTask(TaskSettlementRun, []byte(`{"reason":"manual"}`)))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

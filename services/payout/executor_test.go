package payout

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

type channelMock struct {
	sendFn func(ctx context.Context, attempt Attempt) (string, error)
}

func (m *channelMock) Send(ctx context.Context, attempt Attempt) (string, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, attempt)
	}
	return "tx-" + attempt.ParticipantID, nil
}

func testExecutor(channel Channel, timeout time.Duration) *Executor {
	cfg := &config.Config{}
	cfg.Settlement.AttemptTimeout = timeout
	cfg.Settlement.DispatchConcurrency = 2
	return NewExecutor(ExecutorParams{Config: cfg, Channel: channel})
}

func TestDispatchEmptyBatch(t *testing.T) {
	exec := testExecutor(&channelMock{}, time.Second)

	outcomes := exec.Dispatch(context.Background(), nil)
	require.NotNil(t, outcomes)
	require.Empty(t, outcomes)
}

func TestDispatchPreservesOrderOnPartialFailure(t *testing.T) {
	exec := testExecutor(&channelMock{
		sendFn: func(ctx context.Context, attempt Attempt) (string, error) {
			if attempt.ParticipantID == "p2" {
				return "", errors.New("invalid address")
			}
			return "tx-" + attempt.ParticipantID, nil
		},
	}, time.Second)

	attempts := []Attempt{
		{ParticipantID: "p1", PayoutAddress: "a1", AmountUnits: 1},
		{ParticipantID: "p2", PayoutAddress: "bad", AmountUnits: 2},
		{ParticipantID: "p3", PayoutAddress: "a3", AmountUnits: 3},
	}

	outcomes := exec.Dispatch(context.Background(), attempts)
	require.Len(t, outcomes, 3)

	require.Equal(t, "p1", outcomes[0].ParticipantID)
	require.Equal(t, "p2", outcomes[1].ParticipantID)
	require.Equal(t, "p3", outcomes[2].ParticipantID)

	require.True(t, outcomes[0].Succeeded())
	require.Equal(t, "tx-p1", outcomes[0].TransactionID)

	require.False(t, outcomes[1].Succeeded())
	require.Contains(t, outcomes[1].Error, "invalid address")
	require.Empty(t, outcomes[1].TransactionID)

	require.True(t, outcomes[2].Succeeded())
}

func TestDispatchAppliesPerAttemptTimeout(t *testing.T) {
	exec := testExecutor(&channelMock{
		sendFn: func(ctx context.Context, attempt Attempt) (string, error) {
			if attempt.ParticipantID == "slow" {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "tx-" + attempt.ParticipantID, nil
		},
	}, 20*time.Millisecond)

	attempts := []Attempt{
		{ParticipantID: "slow"},
		{ParticipantID: "fast"},
	}

	outcomes := exec.Dispatch(context.Background(), attempts)
	require.Len(t, outcomes, 2)

	require.False(t, outcomes[0].Succeeded())
	require.Contains(t, outcomes[0].Error, context.DeadlineExceeded.Error())

	// One slow attempt does not block or fail the others.
	require.True(t, outcomes[1].Succeeded())
}

package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"campaign-settlement/pkg/errutil"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("task.settlement",
	fx.Provide(NewTask),
	fx.Invoke(registerHandlers),
)

// Task adapts out-of-band triggers (operator console, event bus) onto the
// same coordinator entry point the scheduler uses. Safe by construction:
// Run is idempotent.
type Task struct {
	service *Service
}

func NewTask(svc *Service) *Task {
	return &Task{service: svc}
}

func registerHandlers(mux *asynq.ServeMux, task *Task) {
	mux.HandleFunc(TaskSettlementRun, task.HandleSettlementRun)
}

func (t *Task) HandleSettlementRun(ctx context.Context, at *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(at.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("task_type", at.Type()),
		zap.String("reason", payload.Reason),
		zap.String("requested_by", payload.RequestedBy),
		zap.String("trace_id", payload.TraceID),
	)
	zapLog.Info("start settlement run task")

	if err := t.service.Run(ctx); err != nil {
		var base errutil.BaseError
		if errors.As(err, &base) && base.Status() == errutil.StatusFailedPrecondition {
			// Misconfiguration needs an operator, not a retry loop.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	zapLog.Info("settlement run task finished")
	return nil
}

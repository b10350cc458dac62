package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campaign-settlement/pkg/config"
	"campaign-settlement/pkg/db/pagination"
	"campaign-settlement/pkg/errutil"
	"campaign-settlement/services/oracle"
	"campaign-settlement/services/payout"
	"campaign-settlement/services/reward"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SnapshotSource serves the market snapshot gating the settlement trigger.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context) oracle.Snapshot
}

// RewardComputer produces the ordered reward sheet for the campaign.
type RewardComputer interface {
	ComputeRankedRewards(ctx context.Context) ([]reward.RankedReward, error)
}

// Dispatcher sends a batch of payment attempts and reports per-attempt
// outcomes.
type Dispatcher interface {
	Dispatch(ctx context.Context, attempts []payout.Attempt) []payout.Outcome
}

// Service is the idempotency and transaction coordinator. Every trigger
// path, scheduled or manual, funnels into Run, which guarantees the payout
// pipeline executes at most once per campaign.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	oracle   SnapshotSource
	rewards  RewardComputer
	executor Dispatcher

	campaignKey   string
	lockTTL       time.Duration
	queryTimeout  time.Duration
	recordTimeout time.Duration
	now           func() time.Time
}

type ServiceParams struct {
	fx.In

	Config   *config.Config
	DB       *gorm.DB
	Node     *snowflake.Node
	Oracle   *oracle.Cache
	Rewards  *reward.Service
	Executor *payout.Executor
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:            p.DB,
		node:          p.Node,
		oracle:        p.Oracle,
		rewards:       p.Rewards,
		executor:      p.Executor,
		campaignKey:   p.Config.Settlement.CampaignKey,
		lockTTL:       p.Config.Settlement.LockTTL,
		queryTimeout:  30 * time.Second,
		recordTimeout: 15 * time.Second,
		now:           time.Now,
	}
}

// Run executes one settlement tick. Re-invocation after a successful run is
// a no-op, and concurrent invocations serialize on the campaign lock: at
// most one of them ever dispatches payments.
func (s *Service) Run(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("campaign_key", s.campaignKey),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	lock, acquired, err := s.acquireLock(ctx)
	if err != nil {
		zapLog.Error("failed to acquire campaign lock", zap.Error(err))
		return err
	}
	if !acquired {
		zapLog.Debug("campaign lock held elsewhere, skipping tick")
		return nil
	}
	defer s.releaseLock(zapLog, lock)

	done, err := s.completed(ctx)
	if err != nil {
		zapLog.Error("failed to check completion marker", zap.Error(err))
		return err
	}
	if done {
		zapLog.Debug("campaign already settled, nothing to do")
		return nil
	}

	snapshot := s.oracle.GetSnapshot(ctx)
	if !snapshot.TargetReached {
		zapLog.Debug("target not reached",
			zap.Float64("market_value", snapshot.MarketValue),
			zap.Float64("target", snapshot.Target),
		)
		return nil
	}

	computeCtx, cancelCompute := context.WithTimeout(ctx, s.queryTimeout)
	rewards, err := s.rewards.ComputeRankedRewards(computeCtx)
	cancelCompute()
	if err != nil {
		zapLog.Error("failed to compute ranked rewards", zap.Error(err))
		return err
	}

	attempts, err := buildAttempts(rewards, snapshot)
	if err != nil {
		// Fatal misconfiguration: surface loudly, touch nothing.
		zapLog.Error("refusing to settle", zap.Error(err))
		return err
	}

	lock, err = s.extendLease(ctx, lock)
	if err != nil {
		zapLog.Error("campaign lease lost before dispatch", zap.Error(err))
		return err
	}

	outcomes := s.executor.Dispatch(ctx, attempts)

	if err := s.record(ctx, lock, rewards, outcomes, snapshot); err != nil {
		if paid := countSucceeded(outcomes); paid > 0 {
			zapLog.Error("settlement commit failed after payments were sent",
				zap.Int("paid_unrecorded", paid),
				zap.Bool("reconciliation_required", true),
				zap.Error(err),
			)
		} else {
			zapLog.Error("settlement commit failed", zap.Error(err))
		}
		return err
	}

	zapLog.Info("campaign settled",
		zap.Int("attempts", len(outcomes)),
		zap.Int("paid", countSucceeded(outcomes)),
	)

	return nil
}

// buildAttempts converts the reward sheet into payment instructions at the
// snapshot's unit price. A non-positive price with rewards owed is a fatal
// configuration error: never guess a conversion rate.
func buildAttempts(rewards []reward.RankedReward, snapshot oracle.Snapshot) ([]payout.Attempt, error) {
	if len(rewards) == 0 {
		return nil, nil
	}

	if snapshot.UnitPrice <= 0 {
		return nil, errutil.FailedPrecondition("non-positive unit price, cannot convert rewards to payment units")
	}

	attempts := make([]payout.Attempt, 0, len(rewards))
	for _, r := range rewards {
		attempts = append(attempts, payout.Attempt{
			ParticipantID: r.Participant.ID,
			PayoutAddress: r.Participant.PayoutAddress,
			AmountUSD:     r.TotalUSD,
			AmountUnits:   r.TotalUSD / snapshot.UnitPrice,
		})
	}

	return attempts, nil
}

// record persists one Record per successful outcome and the completion
// marker in a single transaction. Failed outcomes are logged upstream and
// deliberately left unrecorded. The transaction first re-verifies the
// campaign lease: a holder displaced after expiry must not commit on top of
// its successor's run.
func (s *Service) record(ctx context.Context, lock Lock, rewards []reward.RankedReward, outcomes []payout.Outcome, snapshot oracle.Snapshot) error {
	byParticipant := make(map[string]reward.RankedReward, len(rewards))
	for _, r := range rewards {
		byParticipant[r.Participant.ID] = r
	}

	now := s.now()

	ctx, cancel := context.WithTimeout(ctx, s.recordTimeout)
	defer cancel()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var held Lock
		if err := tx.Where("key = ? AND acquired_at = ?", lock.Key, lock.AcquiredAt).
			First(&held).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.Conflict("campaign lease lost, refusing to record")
			}
			return err
		}

		for _, outcome := range outcomes {
			if !outcome.Succeeded() {
				continue
			}

			r, ok := byParticipant[outcome.ParticipantID]
			if !ok {
				return errutil.Internal("outcome references unknown participant",
					errutil.WithDetails(errutil.Detail{Field: "participant_id", Message: outcome.ParticipantID}))
			}

			meta, _ := json.Marshal(map[string]any{
				"market_value": snapshot.MarketValue,
				"unit_price":   snapshot.UnitPrice,
				"fetched_at":   snapshot.FetchedAt,
			})

			record := Record{
				ID:                    s.node.Generate().String(),
				ParticipantID:         outcome.ParticipantID,
				Rank:                  r.Rank,
				RankingMetric:         r.Participant.RankingMetric,
				BaseAmount:            r.BaseAmount,
				BonusAmount:           r.BonusAmount,
				TotalAmount:           r.TotalUSD,
				ExternalTransactionID: outcome.TransactionID,
				SettledAt:             now,
				Metadata:              datatypes.JSON(meta),
			}

			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}

		return tx.Create(&Flag{
			Key:   CompletionKey,
			Value: now.UTC().Format(time.RFC3339Nano),
		}).Error
	})
}

func (s *Service) completed(ctx context.Context) (bool, error) {
	var flag Flag
	err := s.db.WithContext(ctx).
		Where("key = ?", CompletionKey).
		First(&flag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// acquireLock takes the campaign lease. A duplicate-key conflict means
// another run holds it; that is not an error, just a busy signal. An
// expired lease left by a dead holder is displaced first.
func (s *Service) acquireLock(ctx context.Context) (Lock, bool, error) {
	now := s.now()

	if err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at < ?", s.campaignKey, now).
		Delete(&Lock{}).Error; err != nil {
		return Lock{}, false, err
	}

	lock := Lock{
		Key:        s.campaignKey,
		AcquiredAt: now,
		ExpiresAt:  now.Add(s.lockTTL),
	}

	if err := s.db.WithContext(ctx).Create(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Lock{}, false, nil
		}
		return Lock{}, false, err
	}

	return lock, true, nil
}

// extendLease pushes the lease expiry out again before dispatch, so a run
// that outlived part of its TTL in compute is not displaced mid-payment.
// Zero rows updated means another process took the lease over; dispatching
// after that would pay participants twice.
func (s *Service) extendLease(ctx context.Context, lock Lock) (Lock, error) {
	expiresAt := s.now().Add(s.lockTTL)

	res := s.db.WithContext(ctx).
		Model(&Lock{}).
		Where("key = ? AND acquired_at = ?", lock.Key, lock.AcquiredAt).
		Update("expires_at", expiresAt)
	if res.Error != nil {
		return lock, res.Error
	}
	if res.RowsAffected == 0 {
		return lock, errutil.Conflict("campaign lease lost, refusing to dispatch")
	}

	lock.ExpiresAt = expiresAt
	return lock, nil
}

// releaseLock runs on every exit path. It uses a fresh context so the lease
// is freed even when the tick's context was cancelled, and matches on
// acquired_at so a lease displaced after expiry is never deleted out from
// under its new holder.
func (s *Service) releaseLock(zapLog *zap.Logger, lock Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.db.WithContext(ctx).
		Where("key = ? AND acquired_at = ?", lock.Key, lock.AcquiredAt).
		Delete(&Lock{}).Error; err != nil {
		zapLog.Error("failed to release campaign lock", zap.Error(err))
	}
}

// StatusReport describes settlement progress for the operator endpoint.
type StatusReport struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Records     int64      `json:"records"`
}

func (s *Service) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport

	var flag Flag
	err := s.db.WithContext(ctx).
		Where("key = ?", CompletionKey).
		First(&flag).Error
	switch {
	case err == nil:
		report.Completed = true
		if at, perr := time.Parse(time.RFC3339Nano, flag.Value); perr == nil {
			report.CompletedAt = &at
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return StatusReport{}, err
	}

	if err := s.db.WithContext(ctx).
		Model(&Record{}).
		Count(&report.Records).Error; err != nil {
		return StatusReport{}, err
	}

	return report, nil
}

// ListRecords pages through settlement records in payout order. Records are
// keyed by snowflake, so cursoring on id alone keeps pages stable.
func (s *Service) ListRecords(ctx context.Context, p pagination.Pagination) ([]Record, *pagination.PageInfo, error) {
	limit := p.Limit
	if limit < 1 {
		limit = 50
	}

	query := s.db.WithContext(ctx).
		Model(&Record{}).
		Order("id ASC").
		Limit(limit + 1)

	if p.Cursor != "" {
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", errutil.WithErr(err))
		}
		query = query.Where("id > ?", cursor.ID)
	}

	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, nil, err
	}

	records, pageInfo := pagination.BuildCursorPageInfo(records, limit, func(r Record) string {
		next, _ := pagination.EncodeCursor(pagination.Cursor{ID: r.ID})
		return next
	})

	return records, pageInfo, nil
}

func countSucceeded(outcomes []payout.Outcome) int {
	var n int
	for _, o := range outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

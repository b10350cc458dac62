package settlement

import (
	"time"

	"gorm.io/datatypes"
)

// CompletionKey is the durable flag whose presence is the sole source of
// truth for "this campaign has been settled".
const CompletionKey = "campaign_payout_completed_at"

// Record is the write-once proof that one participant was paid. The unique
// index on participant_id makes double insertion impossible even under a
// bug in the coordinator.
type Record struct {
	ID                    string         `gorm:"column:id;primaryKey" json:"id"`
	ParticipantID         string         `gorm:"column:participant_id;uniqueIndex" json:"participant_id"`
	Rank                  int            `gorm:"column:rank" json:"rank"`
	RankingMetric         int64          `gorm:"column:ranking_metric_at_settlement" json:"ranking_metric_at_settlement"`
	BaseAmount            float64        `gorm:"column:base_amount" json:"base_amount"`
	BonusAmount           float64        `gorm:"column:bonus_amount" json:"bonus_amount"`
	TotalAmount           float64        `gorm:"column:total_amount" json:"total_amount"`
	ExternalTransactionID string         `gorm:"column:external_transaction_id" json:"external_transaction_id"`
	SettledAt             time.Time      `gorm:"column:settled_at" json:"settled_at"`
	Metadata              datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt             time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Record) TableName() string {
	return "settlement_records"
}

// Flag is a durable key-value marker. Only CompletionKey is written today.
type Flag struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Flag) TableName() string {
	return "settlement_flags"
}

// Lock is a single-row lease providing cross-process mutual exclusion for
// one campaign. Acquire is a unique insert, release a delete; a holder that
// dies is displaced once the lease expires.
type Lock struct {
	Key        string    `gorm:"column:key;primaryKey"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at"`
}

func (Lock) TableName() string {
	return "settlement_locks"
}

// Models lists every table this engine owns, for test migration.
func Models() []any {
	return []any{&Record{}, &Flag{}, &Lock{}}
}

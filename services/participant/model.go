package participant

import "time"

const StatusActive = "active"

// Participant is a campaign entrant. The profile and content subsystems own
// this table; the settlement engine only ever reads it.
type Participant struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	Status          string    `gorm:"column:status" json:"status"`
	PayoutAddress   string    `gorm:"column:payout_address" json:"payout_address"`
	RankingMetric   int64     `gorm:"column:ranking_metric" json:"ranking_metric"`
	ContentVerified bool      `gorm:"column:content_verified" json:"content_verified"`
	JoinedAt        time.Time `gorm:"column:joined_at" json:"joined_at"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Participant) TableName() string {
	return "participants"
}

// Eligible reports whether the participant satisfies the payout predicate.
func (p Participant) Eligible() bool {
	return p.Status == StatusActive && p.PayoutAddress != "" && p.ContentVerified
}

package payout

// OutcomeStatus classifies one payment attempt result.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Attempt is one instruction for the payment channel.
type Attempt struct {
	ParticipantID string  `json:"participant_id"`
	PayoutAddress string  `json:"payout_address"`
	AmountUSD     float64 `json:"amount_usd"`
	AmountUnits   float64 `json:"amount_units"`
}

// Outcome is the result of one attempt. Failures are data here, never
// errors: a bad instruction must not abort the batch.
type Outcome struct {
	ParticipantID string        `json:"participant_id"`
	Status        OutcomeStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

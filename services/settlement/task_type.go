package settlement

const TaskSettlementRun = "settlement:run"

type RunPayload struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by,omitempty"`
	TraceID     string `json:"trace_id,omitempty"`
}

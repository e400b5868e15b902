package models

import "time"

// UsageEvent records one completed generation attempt, successful or not.
// Events are append-only: never mutated or deleted once recorded.
type UsageEvent struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Role         Role      `json:"role"`
	ModelID      string    `json:"model_id"`
	TaskType     TaskType  `json:"task_type"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost"`
	LatencyMS    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

// SummaryPeriod selects the reporting window for a usage summary.
type SummaryPeriod string

const (
	PeriodDaily   SummaryPeriod = "daily"
	PeriodMonthly SummaryPeriod = "monthly"
)

// UsageBreakdown aggregates request count and cost for one grouping key.
type UsageBreakdown struct {
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
}

// UsageSummary aggregates ledger activity over a period.
type UsageSummary struct {
	Period        SummaryPeriod             `json:"period"`
	TotalCost     float64                   `json:"total_cost"`
	TotalRequests int                       `json:"total_requests"`
	ByModel       map[string]UsageBreakdown `json:"breakdown_by_model"`
	ByRole        map[Role]UsageBreakdown   `json:"breakdown_by_role"`
}

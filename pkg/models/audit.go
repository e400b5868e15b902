package models

import "time"

// AuditEntry records one generation attempt for diagnostics. Unlike
// UsageEvent it carries the raw error string and per-request correlation
// id, and is subject to retention-based deletion.
type AuditEntry struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	TaskType  TaskType  `json:"task_type"`
	ModelID   string    `json:"model_id"`
	Attempt   int       `json:"attempt"`
	Outcome   string    `json:"outcome"` // "success", "provider_error", "bad_output"
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	RequestID string
	UserID    string
	ModelID   string
	Since     time.Time
	Limit     int
}

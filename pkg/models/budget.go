package models

// BudgetLimits holds process-wide budget configuration. Loaded once at
// startup and read-only thereafter.
type BudgetLimits struct {
	PerRoleDailyCap map[Role]float64 `json:"per_role_daily_cap" yaml:"per_role_daily_cap"`
	MonthlyOrgCap   float64          `json:"monthly_org_cap" yaml:"monthly_org_cap"`
	// AlertThresholdFraction is the share of the monthly cap at which the
	// budget alert fires, in (0, 1].
	AlertThresholdFraction float64 `json:"alert_threshold_fraction" yaml:"alert_threshold_fraction"`
	// PremiumFloor is the minimum remaining monthly budget required before
	// a request may route to the premium tier.
	PremiumFloor float64 `json:"premium_floor" yaml:"premium_floor"`
}

// DailyCap returns the daily spend cap for a role, 0 if none is configured.
func (b BudgetLimits) DailyCap(role Role) float64 {
	return b.PerRoleDailyCap[role]
}

// BudgetStatus reports a user's position against the configured caps.
type BudgetStatus struct {
	UserID           string  `json:"user_id"`
	Role             Role    `json:"role"`
	SpentToday       float64 `json:"spent_today"`
	DailyCap         float64 `json:"daily_cap"`
	WithinDailyCap   bool    `json:"within_daily_cap"`
	MonthlySpend     float64 `json:"monthly_spend"`
	MonthlyCap       float64 `json:"monthly_cap"`
	RemainingMonthly float64 `json:"remaining_monthly"`
}

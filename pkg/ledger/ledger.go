// Package ledger is the budget ledger: an append-only record of usage
// events with rolling per-user daily and org-wide monthly spend. The
// in-memory index is a per-process cache; the durable sink remains the
// source of truth.
package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

// Sink is the append-only durable store behind the ledger. The ledger
// never issues updates or deletes.
type Sink interface {
	Append(ctx context.Context, event models.UsageEvent) (int64, error)
	LoadCurrentMonth(ctx context.Context, now time.Time) ([]models.UsageEvent, error)
}

// AlertFunc is called when monthly spend crosses the alert threshold.
type AlertFunc func(monthlySpend, monthlyCap float64)

// Ledger tracks usage events and answers budget questions. Safe for
// concurrent use; Record serializes the append and index update.
type Ledger struct {
	limits models.BudgetLimits
	sink   Sink
	alert  AlertFunc

	mu         sync.Mutex
	events     []models.UsageEvent
	userDay    map[string]float64
	monthCost  map[string]float64
	monthReqs  map[string]int
	alertMonth string

	now func() time.Time
}

// New creates a Ledger over the given limits and durable sink.
func New(limits models.BudgetLimits, sink Sink) *Ledger {
	return &Ledger{
		limits:    limits,
		sink:      sink,
		userDay:   make(map[string]float64),
		monthCost: make(map[string]float64),
		monthReqs: make(map[string]int),
		now:       time.Now,
	}
}

// SetAlertFunc installs the monthly budget alert callback. The callback
// fires at most once per calendar month, on the crossing itself.
func (l *Ledger) SetAlertFunc(fn AlertFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alert = fn
}

// Load primes the in-memory index with the current month's events from
// the sink. Call once at startup, before serving requests.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.sink.LoadCurrentMonth(ctx, l.now())
	if err != nil {
		return fmt.Errorf("ledger load: %w", err)
	}
	for _, ev := range events {
		l.index(ev)
	}
	log.Printf("[ledger] loaded %d events for current month", len(events))
	return nil
}

// Record appends a usage event to memory and the durable sink. Events with
// a zero timestamp are stamped with the current time.
func (l *Ledger) Record(ctx context.Context, event models.UsageEvent) error {
	l.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	l.index(event)
	fire, spend, cap := l.checkAlert()
	l.mu.Unlock()

	if fire {
		log.Printf("[ledger] monthly spend %.2f crossed alert threshold of cap %.2f", spend, cap)
		if l.alert != nil {
			l.alert(spend, cap)
		}
	}

	if _, err := l.sink.Append(ctx, event); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}

// index adds an event to the in-memory structures. Caller holds l.mu.
func (l *Ledger) index(event models.UsageEvent) {
	l.events = append(l.events, event)
	l.userDay[userDayKey(event.UserID, event.Timestamp)] += event.Cost
	mk := monthKey(event.Timestamp)
	l.monthCost[mk] += event.Cost
	l.monthReqs[mk]++
}

// checkAlert reports whether the alert should fire now. Caller holds l.mu.
func (l *Ledger) checkAlert() (fire bool, spend, cap float64) {
	cap = l.limits.MonthlyOrgCap
	frac := l.limits.AlertThresholdFraction
	if cap <= 0 || frac <= 0 || l.alert == nil {
		return false, 0, cap
	}
	mk := monthKey(l.now())
	if l.alertMonth == mk {
		return false, 0, cap
	}
	spend = l.monthCost[mk]
	if spend >= frac*cap {
		l.alertMonth = mk
		return true, spend, cap
	}
	return false, 0, cap
}

// UserSpendToday returns the user's spend for the current server-local day.
func (l *Ledger) UserSpendToday(userID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userDay[userDayKey(userID, l.now())]
}

// MonthlySpend returns org-wide spend for the current calendar month.
func (l *Ledger) MonthlySpend() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.monthCost[monthKey(l.now())]
}

// RemainingMonthlyBudget returns what is left of the monthly org cap,
// floored at zero.
func (l *Ledger) RemainingMonthlyBudget() float64 {
	remaining := l.limits.MonthlyOrgCap - l.MonthlySpend()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsUserWithinDailyCap reports whether the user may still spend on hosted
// tiers today. At or over cap is not within (strict less-than). Roles
// without a configured cap are unconstrained.
func (l *Ledger) IsUserWithinDailyCap(userID string, role models.Role) bool {
	cap := l.limits.DailyCap(role)
	if cap <= 0 {
		return true
	}
	return l.UserSpendToday(userID) < cap
}

// Status returns a snapshot of a user's budget position.
func (l *Ledger) Status(userID string, role models.Role) models.BudgetStatus {
	return models.BudgetStatus{
		UserID:           userID,
		Role:             role,
		SpentToday:       l.UserSpendToday(userID),
		DailyCap:         l.limits.DailyCap(role),
		WithinDailyCap:   l.IsUserWithinDailyCap(userID, role),
		MonthlySpend:     l.MonthlySpend(),
		MonthlyCap:       l.limits.MonthlyOrgCap,
		RemainingMonthly: l.RemainingMonthlyBudget(),
	}
}

// Summary aggregates ledger activity for the current day or month.
func (l *Ledger) Summary(period models.SummaryPeriod) models.UsageSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var since time.Time
	switch period {
	case models.PeriodDaily:
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	default:
		period = models.PeriodMonthly
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	until := now

	sum := models.UsageSummary{
		Period:  period,
		ByModel: make(map[string]models.UsageBreakdown),
		ByRole:  make(map[models.Role]models.UsageBreakdown),
	}
	for _, ev := range l.events {
		if ev.Timestamp.Before(since) || ev.Timestamp.After(until) {
			continue
		}
		sum.TotalCost += ev.Cost
		sum.TotalRequests++
		bm := sum.ByModel[ev.ModelID]
		bm.Requests++
		bm.Cost += ev.Cost
		sum.ByModel[ev.ModelID] = bm
		br := sum.ByRole[ev.Role]
		br.Requests++
		br.Cost += ev.Cost
		sum.ByRole[ev.Role] = br
	}
	return sum
}

// Compact evicts events older than two months from the in-memory index.
// A pure memory optimization: sums for the current day and month are
// unaffected, and the durable sink keeps everything.
func (l *Ledger) Compact() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -2, 0)

	kept := l.events[:0]
	evicted := 0
	for _, ev := range l.events {
		if ev.Timestamp.Before(cutoff) {
			evicted++
			continue
		}
		kept = append(kept, ev)
	}
	l.events = kept

	if evicted > 0 {
		l.userDay = make(map[string]float64)
		l.monthCost = make(map[string]float64)
		l.monthReqs = make(map[string]int)
		for _, ev := range l.events {
			l.userDay[userDayKey(ev.UserID, ev.Timestamp)] += ev.Cost
			mk := monthKey(ev.Timestamp)
			l.monthCost[mk] += ev.Cost
			l.monthReqs[mk]++
		}
		log.Printf("[ledger] compacted %d events older than %s", evicted, cutoff.Format("2006-01-02"))
	}
	return evicted
}

func userDayKey(userID string, t time.Time) string {
	return userID + "|" + t.Format("2006-01-02")
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

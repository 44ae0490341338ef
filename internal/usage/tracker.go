package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/recoverly/followup-agent/internal/store"
)

// Warning levels reported against the monthly minute allocation.
const (
	WarnNone     = "none"
	WarnSoft     = "soft"
	WarnCritical = "critical"
	WarnHard     = "hard"
)

// Status summarizes a tenant's consumption for the current period.
type Status struct {
	TenantID         string    `json:"tenant_id"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	MinutesUsed      float64   `json:"minutes_used"`
	MinutesAllocated int       `json:"minutes_allocated"`
	PercentUsed      float64   `json:"percent_used"`
	WarningLevel     string    `json:"warning_level"`
	CanMakeCalls     bool      `json:"can_make_calls"`
}

// Tracker enforces the per-tenant monthly minute allocation.
type Tracker struct {
	usage          store.UsageStore
	defaultMinutes int
}

func NewTracker(usage store.UsageStore, defaultMinutes int) *Tracker {
	return &Tracker{usage: usage, defaultMinutes: defaultMinutes}
}

// Period returns the calendar-month billing period containing now.
func Period(now time.Time) (start, end time.Time) {
	y, m, _ := now.UTC().Date()
	start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// GetStatus returns the tenant's current-period status, creating the
// period record on first touch.
func (t *Tracker) GetStatus(ctx context.Context, tenantID string, now time.Time) (*Status, error) {
	start, end := Period(now)
	rec, err := t.usage.GetOrCreate(ctx, tenantID, start, end, t.defaultMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}

	percent := float64(0)
	if rec.MinutesAllocated > 0 {
		percent = rec.MinutesUsed / float64(rec.MinutesAllocated) * 100
	}

	level := WarnNone
	switch {
	case percent >= 100:
		level = WarnHard
	case percent >= 95:
		level = WarnCritical
	case percent >= 80:
		level = WarnSoft
	}

	display := percent
	if display > 100 {
		display = 100
	}

	return &Status{
		TenantID:         tenantID,
		PeriodStart:      rec.PeriodStart,
		PeriodEnd:        rec.PeriodEnd,
		MinutesUsed:      rec.MinutesUsed,
		MinutesAllocated: rec.MinutesAllocated,
		PercentUsed:      display,
		WarningLevel:     level,
		CanMakeCalls:     percent < 100,
	}, nil
}

// CanMakeCalls reports whether the tenant still has minutes left this
// period.
func (t *Tracker) CanMakeCalls(ctx context.Context, tenantID string, now time.Time) (bool, error) {
	status, err := t.GetStatus(ctx, tenantID, now)
	if err != nil {
		return false, err
	}
	return status.CanMakeCalls, nil
}

// Record adds a finished call's duration to the period containing now.
// Durations under a second still count as a fraction of a minute.
func (t *Tracker) Record(ctx context.Context, tenantID string, durationSeconds int, now time.Time) error {
	if durationSeconds <= 0 {
		return nil
	}
	start, end := Period(now)
	if _, err := t.usage.GetOrCreate(ctx, tenantID, start, end, t.defaultMinutes); err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}
	minutes := float64(durationSeconds) / 60.0
	if err := t.usage.AddMinutes(ctx, tenantID, start, minutes); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

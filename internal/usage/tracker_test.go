package usage

import (
	"context"
	"testing"
	"time"

	"github.com/recoverly/followup-agent/internal/store"
)

func TestPeriod(t *testing.T) {
	now := time.Date(2026, 3, 17, 22, 45, 0, 0, time.UTC)
	start, end := Period(now)

	if !start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %v", start)
	}
	if !end.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %v", end)
	}

	// December rolls into the next year.
	start, end = Period(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC))
	if end.Year() != 2027 || end.Month() != time.January {
		t.Errorf("december period end = %v", end)
	}
	if start.Month() != time.December {
		t.Errorf("december period start = %v", start)
	}
}

func TestGetStatusWarningLevels(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		minutesUsed float64
		wantPercent float64
		wantLevel   string
		wantCanCall bool
	}{
		{"fresh period", 0, 0, WarnNone, true},
		{"under soft threshold", 79, 79, WarnNone, true},
		{"soft warning", 80, 80, WarnSoft, true},
		{"critical warning", 95, 95, WarnCritical, true},
		{"just under limit", 99.5, 99.5, WarnCritical, true},
		{"at limit", 100, 100, WarnHard, false},
		{"over limit capped", 140, 100, WarnHard, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			tracker := NewTracker(st.Usage, 100)

			if tt.minutesUsed > 0 {
				start, end := Period(now)
				if _, err := st.Usage.GetOrCreate(context.Background(), "t-1", start, end, 100); err != nil {
					t.Fatal(err)
				}
				if err := st.Usage.AddMinutes(context.Background(), "t-1", start, tt.minutesUsed); err != nil {
					t.Fatal(err)
				}
			}

			status, err := tracker.GetStatus(context.Background(), "t-1", now)
			if err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
			if status.PercentUsed != tt.wantPercent {
				t.Errorf("PercentUsed = %v, want %v", status.PercentUsed, tt.wantPercent)
			}
			if status.WarningLevel != tt.wantLevel {
				t.Errorf("WarningLevel = %q, want %q", status.WarningLevel, tt.wantLevel)
			}
			if status.CanMakeCalls != tt.wantCanCall {
				t.Errorf("CanMakeCalls = %v, want %v", status.CanMakeCalls, tt.wantCanCall)
			}
		})
	}
}

func TestRecordConvertsSecondsToMinutes(t *testing.T) {
	st := store.NewMemory()
	tracker := NewTracker(st.Usage, 100)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	if err := tracker.Record(context.Background(), "t-1", 90, now); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	status, err := tracker.GetStatus(context.Background(), "t-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if status.MinutesUsed != 1.5 {
		t.Errorf("MinutesUsed = %v, want 1.5", status.MinutesUsed)
	}
}

func TestRecordIgnoresZeroDuration(t *testing.T) {
	st := store.NewMemory()
	tracker := NewTracker(st.Usage, 100)
	now := time.Now()

	if err := tracker.Record(context.Background(), "t-1", 0, now); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	status, err := tracker.GetStatus(context.Background(), "t-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if status.MinutesUsed != 0 {
		t.Errorf("MinutesUsed = %v, want 0", status.MinutesUsed)
	}
}

func TestNewPeriodResetsUsage(t *testing.T) {
	st := store.NewMemory()
	tracker := NewTracker(st.Usage, 100)

	march := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	if err := tracker.Record(context.Background(), "t-1", 6000, march); err != nil {
		t.Fatal(err)
	}

	april := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	status, err := tracker.GetStatus(context.Background(), "t-1", april)
	if err != nil {
		t.Fatal(err)
	}
	if status.MinutesUsed != 0 {
		t.Errorf("MinutesUsed in new period = %v, want 0", status.MinutesUsed)
	}
	if !status.CanMakeCalls {
		t.Errorf("CanMakeCalls = false in fresh period")
	}
}

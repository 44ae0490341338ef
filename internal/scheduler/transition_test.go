package scheduler

import (
	"testing"
	"time"

	"github.com/recoverly/followup-agent/internal/store"
)

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dueDate time.Time
		want    int
	}{
		{"ten days ago", now.AddDate(0, 0, -10), 10},
		{"same moment", now, 0},
		{"half a day ago", now.Add(-12 * time.Hour), 0},
		{"due tomorrow", now.AddDate(0, 0, 1), -1},
		{"thirty six hours ago", now.Add(-36 * time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysOverdue(now, tt.dueDate); got != tt.want {
				t.Errorf("DaysOverdue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextCallDate(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cadence := []int{3, 7, 14}

	tests := []struct {
		name string
		now  time.Time
		want *time.Time
	}{
		{
			name: "five days overdue picks day seven",
			now:  due.AddDate(0, 0, 5),
			want: timePtr(due.AddDate(0, 0, 7)),
		},
		{
			name: "exactly on cadence day picks next",
			now:  due.AddDate(0, 0, 7),
			want: timePtr(due.AddDate(0, 0, 14)),
		},
		{
			name: "past last cadence day exhausts schedule",
			now:  due.AddDate(0, 0, 20),
			want: nil,
		},
		{
			name: "before first cadence day picks it",
			now:  due.AddDate(0, 0, 1),
			want: timePtr(due.AddDate(0, 0, 3)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextCallDate(due, cadence, tt.now)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("NextCallDate() = %v, want %v", got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("NextCallDate() = %v, want %v", got, tt.want)
			}
		})
	}

	if NextCallDate(due, nil, due.AddDate(0, 0, 5)) != nil {
		t.Errorf("NextCallDate() with empty cadence should be nil")
	}
}

func TestNextTransition(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 5)
	cadence := []int{3, 7, 14}

	tests := []struct {
		name         string
		attempts     int
		outcome      string
		wantStatus   string
		wantAttempts int
		wantNext     *time.Time
	}{
		{
			name:         "answered completes regardless of attempts",
			attempts:     0,
			outcome:      store.OutcomeAnswered,
			wantStatus:   store.InvoiceStatusCompleted,
			wantAttempts: 1,
		},
		{
			name:         "answered on last attempt still completes",
			attempts:     4,
			outcome:      store.OutcomeAnswered,
			wantStatus:   store.InvoiceStatusCompleted,
			wantAttempts: 5,
		},
		{
			name:         "no answer advances and reschedules",
			attempts:     1,
			outcome:      store.OutcomeNoAnswer,
			wantStatus:   store.InvoiceStatusInProgress,
			wantAttempts: 2,
			wantNext:     timePtr(due.AddDate(0, 0, 7)),
		},
		{
			name:         "attempt cap fails the invoice",
			attempts:     4,
			outcome:      store.OutcomeVoicemail,
			wantStatus:   store.InvoiceStatusFailed,
			wantAttempts: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &store.Invoice{DueDate: due, CallAttempts: tt.attempts}
			tr := NextTransition(inv, cadence, 5, tt.outcome, now)
			if tr.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", tr.Status, tt.wantStatus)
			}
			if tr.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", tr.Attempts, tt.wantAttempts)
			}
			if (tr.NextCallDate == nil) != (tt.wantNext == nil) {
				t.Fatalf("NextCallDate = %v, want %v", tr.NextCallDate, tt.wantNext)
			}
			if tr.NextCallDate != nil && !tr.NextCallDate.Equal(*tt.wantNext) {
				t.Errorf("NextCallDate = %v, want %v", tr.NextCallDate, tt.wantNext)
			}
		})
	}
}

func TestNextTransitionExhaustedCadence(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 20)
	inv := &store.Invoice{DueDate: due, CallAttempts: 1}

	tr := NextTransition(inv, []int{3, 7, 14}, 5, store.OutcomeBusy, now)
	if tr.Status != store.InvoiceStatusInProgress {
		t.Errorf("Status = %q", tr.Status)
	}
	if tr.NextCallDate != nil {
		t.Errorf("NextCallDate = %v, want nil after cadence exhausted", tr.NextCallDate)
	}
}

func TestWithinCallWindow(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 16, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name  string
		now   time.Time
		start string
		end   string
		want  bool
	}{
		{"inside window", at(10, 30), "09:00", "17:00", true},
		{"at window start", at(9, 0), "09:00", "17:00", true},
		{"at window end", at(17, 0), "09:00", "17:00", true},
		{"before window", at(8, 59), "09:00", "17:00", false},
		{"after window", at(17, 1), "09:00", "17:00", false},
		{"no window configured", at(3, 0), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withinCallWindow(tt.now, tt.start, tt.end); got != tt.want {
				t.Errorf("withinCallWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeekdayToken(t *testing.T) {
	// 2026-03-16 is a Monday.
	monday := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	for i, want := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		if got := weekdayToken(monday.AddDate(0, 0, i)); got != want {
			t.Errorf("weekdayToken(+%d) = %q, want %q", i, got, want)
		}
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

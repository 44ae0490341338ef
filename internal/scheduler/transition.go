package scheduler

import (
	"time"

	"github.com/recoverly/followup-agent/internal/store"
)

// Transition is the invoice state computed after one reconciled call.
type Transition struct {
	Attempts     int
	Status       string
	NextCallDate *time.Time
}

// NextTransition applies the invoice state machine for a finished call.
// An answered call completes the invoice. Otherwise the attempt counter
// advances and the invoice either fails at the attempt cap or gets a next
// call date from the cadence.
func NextTransition(inv *store.Invoice, cadenceDays []int, maxAttempts int, outcome string, now time.Time) Transition {
	attempts := inv.CallAttempts + 1

	if outcome == store.OutcomeAnswered {
		return Transition{Attempts: attempts, Status: store.InvoiceStatusCompleted}
	}

	if attempts >= maxAttempts {
		return Transition{Attempts: attempts, Status: store.InvoiceStatusFailed}
	}

	return Transition{
		Attempts:     attempts,
		Status:       store.InvoiceStatusInProgress,
		NextCallDate: NextCallDate(inv.DueDate, cadenceDays, now),
	}
}

// DaysOverdue returns full days elapsed since the due date, negative when
// the invoice is not due yet.
func DaysOverdue(now, dueDate time.Time) int {
	d := now.Sub(dueDate)
	days := int(d.Hours() / 24)
	if d < 0 && d.Hours()/24 != float64(days) {
		days--
	}
	return days
}

// NextCallDate picks the first cadence day strictly beyond the current
// overdue age and anchors it to the due date. Nil means the cadence is
// exhausted and no further call will be scheduled.
func NextCallDate(dueDate time.Time, cadenceDays []int, now time.Time) *time.Time {
	overdue := DaysOverdue(now, dueDate)
	best := -1
	for _, d := range cadenceDays {
		if d > overdue && (best == -1 || d < best) {
			best = d
		}
	}
	if best == -1 {
		return nil
	}
	next := dueDate.AddDate(0, 0, best)
	return &next
}

// MinCadenceDay returns the smallest configured cadence day, or -1 when
// the cadence is empty.
func MinCadenceDay(cadenceDays []int) int {
	min := -1
	for _, d := range cadenceDays {
		if min == -1 || d < min {
			min = d
		}
	}
	return min
}

// weekdayToken returns the lowercase weekday name used in policy call days.
func weekdayToken(now time.Time) string {
	switch now.Weekday() {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

// withinCallWindow compares the local clock against the policy's "HH:MM"
// window, inclusive on both ends. A policy without a window is always
// callable.
func withinCallWindow(now time.Time, start, end string) bool {
	if start == "" || end == "" {
		return true
	}
	cur := now.Format("15:04")
	return cur >= start && cur <= end
}

package store

import (
	"context"
	"time"
)

// TenantStore manages tenant accounts.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByEmail(ctx context.Context, email string) (*Tenant, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, limit, offset int64) ([]Tenant, error)
}

// PolicyStore manages per-tenant follow-up policies.
type PolicyStore interface {
	GetByTenant(ctx context.Context, tenantID string) (*Policy, error)
	Upsert(ctx context.Context, p *Policy) error
	// ListCallable returns policies that have a payment link configured and
	// include the given weekday token in their call days.
	ListCallable(ctx context.Context, weekday string) ([]Policy, error)
}

// InvoiceStore manages invoices and the invoice state machine writes.
type InvoiceStore interface {
	Create(ctx context.Context, inv *Invoice) error
	CreateMany(ctx context.Context, invs []Invoice) error
	GetByID(ctx context.Context, tenantID, id string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, tenantID, id string) error
	DeleteAllForTenant(ctx context.Context, tenantID string) (int64, error)
	List(ctx context.Context, tenantID, status string) ([]Invoice, error)
	CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error)

	// ListCallable returns up to limit invoices eligible for selection:
	// status PENDING or IN_PROGRESS, attempts below maxAttempts, and either
	// no next-call date or one at or before today.
	ListCallable(ctx context.Context, tenantID string, maxAttempts int, today time.Time, limit int64) ([]Invoice, error)

	// MarkInProgress sets the invoice status after a call was placed.
	MarkInProgress(ctx context.Context, tenantID, id string) error

	// ApplyReconciliation writes the state-machine transition computed for a
	// reconciled call.
	ApplyReconciliation(ctx context.Context, id string, attempts int, outcome, status string, nextCallDate *time.Time) error
}

// CallLogStore manages call attempt records.
type CallLogStore interface {
	Create(ctx context.Context, cl *CallLog) error
	GetByVapiCallID(ctx context.Context, vapiCallID string) (*CallLog, error)
	List(ctx context.Context, tenantID string, limit, offset int64) ([]CallLog, error)
	ListRecent(ctx context.Context, tenantID string, limit int64) ([]CallLog, error)
	CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error)

	// ListStalePending returns up to limit calls still PENDING that started
	// before the cutoff and carry an external call id.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]CallLog, error)

	// Reconcile transitions a call log out of PENDING. The update is
	// conditional on the row still being PENDING; it returns false when
	// another path already reconciled the call, in which case the caller
	// must not record usage again.
	Reconcile(ctx context.Context, id string, endedAt time.Time, durationSeconds int, outcome string) (bool, error)
}

// UsageStore manages per-period usage records.
type UsageStore interface {
	// GetOrCreate returns the record for the tenant and period start,
	// creating it with the given allocation when absent.
	GetOrCreate(ctx context.Context, tenantID string, periodStart, periodEnd time.Time, minutesAllocated int) (*UsageRecord, error)

	// AddMinutes atomically increments minutes used for the tenant's record
	// in the given period.
	AddMinutes(ctx context.Context, tenantID string, periodStart time.Time, minutes float64) error
}

// Store bundles all repositories behind one injected handle.
type Store struct {
	Tenants  TenantStore
	Policies PolicyStore
	Invoices InvoiceStore
	CallLogs CallLogStore
	Usage    UsageStore
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewMemory returns a Store backed by in-process maps. It mirrors the
// MongoDB repositories' semantics, including the conditional call log
// reconciliation, and backs the test suite.
func NewMemory() *Store {
	m := &memory{
		tenants:  make(map[string]*Tenant),
		policies: make(map[string]*Policy),
		invoices: make(map[string]*Invoice),
		calls:    make(map[string]*CallLog),
		usage:    make(map[string]*UsageRecord),
	}
	return &Store{
		Tenants:  (*memTenants)(m),
		Policies: (*memPolicies)(m),
		Invoices: (*memInvoices)(m),
		CallLogs: (*memCallLogs)(m),
		Usage:    (*memUsage)(m),
	}
}

type memory struct {
	mu       sync.Mutex
	tenants  map[string]*Tenant
	policies map[string]*Policy // keyed by tenant id
	invoices map[string]*Invoice
	calls    map[string]*CallLog
	usage    map[string]*UsageRecord // keyed by tenant id + period start
}

func usageKey(tenantID string, periodStart time.Time) string {
	return tenantID + "|" + periodStart.UTC().Format(time.RFC3339)
}

type memTenants memory

func (m *memTenants) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if existing.Email == t.Email {
			return fmt.Errorf("tenant email already exists")
		}
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *memTenants) GetByID(_ context.Context, id string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTenants) GetByEmail(_ context.Context, email string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Email == email {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTenants) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tenants[id]; ok {
		t.LastLoginAt = &at
	}
	return nil
}

func (m *memTenants) List(_ context.Context, limit, offset int64) ([]Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

type memPolicies memory

func (m *memPolicies) GetByTenant(_ context.Context, tenantID string) (*Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.policies[tenantID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memPolicies) Upsert(_ context.Context, p *Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.policies[p.TenantID] = &cp
	return nil
}

func (m *memPolicies) ListCallable(_ context.Context, weekday string) ([]Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Policy
	for _, p := range m.policies {
		if p.PaymentLink == "" {
			continue
		}
		for _, d := range p.CallDays {
			if d == weekday {
				out = append(out, *p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

type memInvoices memory

func (m *memInvoices) Create(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memInvoices) CreateMany(ctx context.Context, invs []Invoice) error {
	for i := range invs {
		if err := m.Create(ctx, &invs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memInvoices) GetByID(_ context.Context, tenantID, id string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || (tenantID != "" && inv.TenantID != tenantID) {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoices) Update(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.invoices[inv.ID]
	if !ok || existing.TenantID != inv.TenantID {
		return fmt.Errorf("invoice %s not found", inv.ID)
	}
	cp := *inv
	cp.UpdatedAt = time.Now()
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memInvoices) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return fmt.Errorf("invoice %s not found", id)
	}
	delete(m.invoices, id)
	return nil
}

func (m *memInvoices) DeleteAllForTenant(_ context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, inv := range m.invoices {
		if inv.TenantID == tenantID {
			delete(m.invoices, id)
			n++
		}
	}
	return n, nil
}

func (m *memInvoices) List(_ context.Context, tenantID, status string) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (m *memInvoices) CountByStatus(_ context.Context, tenantID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, inv := range m.invoices {
		if inv.TenantID == tenantID {
			counts[inv.Status]++
		}
	}
	return counts, nil
}

func (m *memInvoices) ListCallable(_ context.Context, tenantID string, maxAttempts int, today time.Time, limit int64) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if inv.Status != InvoiceStatusPending && inv.Status != InvoiceStatusInProgress {
			continue
		}
		if inv.CallAttempts >= maxAttempts {
			continue
		}
		if inv.NextCallDate != nil && inv.NextCallDate.After(today) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memInvoices) MarkInProgress(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invoices[id]; ok && inv.TenantID == tenantID {
		inv.Status = InvoiceStatusInProgress
		inv.UpdatedAt = time.Now()
	}
	return nil
}

func (m *memInvoices) ApplyReconciliation(_ context.Context, id string, attempts int, outcome, status string, nextCallDate *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s not found", id)
	}
	inv.CallAttempts = attempts
	inv.LastCallOutcome = outcome
	inv.Status = status
	inv.NextCallDate = nextCallDate
	inv.UpdatedAt = time.Now()
	return nil
}

type memCallLogs memory

func (m *memCallLogs) Create(_ context.Context, cl *CallLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cl.ID == "" {
		cl.ID = uuid.New().String()
	}
	cp := *cl
	m.calls[cl.ID] = &cp
	return nil
}

func (m *memCallLogs) GetByVapiCallID(_ context.Context, vapiCallID string) (*CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.calls {
		if cl.VapiCallID == vapiCallID {
			cp := *cl
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memCallLogs) List(_ context.Context, tenantID string, limit, offset int64) ([]CallLog, error) {
	return m.collect(tenantID, limit, offset)
}

func (m *memCallLogs) ListRecent(_ context.Context, tenantID string, limit int64) ([]CallLog, error) {
	return m.collect(tenantID, limit, 0)
}

func (m *memCallLogs) collect(tenantID string, limit, offset int64) ([]CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CallLog
	for _, cl := range m.calls {
		if cl.TenantID == tenantID {
			out = append(out, *cl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return page(out, limit, offset), nil
}

func (m *memCallLogs) CountSince(_ context.Context, tenantID string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, cl := range m.calls {
		if cl.TenantID == tenantID && !cl.StartedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memCallLogs) ListStalePending(_ context.Context, cutoff time.Time, limit int64) ([]CallLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CallLog
	for _, cl := range m.calls {
		if cl.Outcome == OutcomePending && cl.StartedAt.Before(cutoff) && cl.VapiCallID != "" {
			out = append(out, *cl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCallLogs) Reconcile(_ context.Context, id string, endedAt time.Time, durationSeconds int, outcome string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cl, ok := m.calls[id]
	if !ok || cl.Outcome != OutcomePending {
		return false, nil
	}
	cl.EndedAt = &endedAt
	cl.DurationSeconds = durationSeconds
	cl.Outcome = outcome
	return true, nil
}

type memUsage memory

func (m *memUsage) GetOrCreate(_ context.Context, tenantID string, periodStart, periodEnd time.Time, minutesAllocated int) (*UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := usageKey(tenantID, periodStart)
	if rec, ok := m.usage[key]; ok {
		cp := *rec
		return &cp, nil
	}
	rec := &UsageRecord{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		MinutesAllocated: minutesAllocated,
	}
	m.usage[key] = rec
	cp := *rec
	return &cp, nil
}

func (m *memUsage) AddMinutes(_ context.Context, tenantID string, periodStart time.Time, minutes float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.usage[usageKey(tenantID, periodStart)]; ok {
		rec.MinutesUsed += minutes
	}
	return nil
}

func page[T any](items []T, limit, offset int64) []T {
	if offset >= int64(len(items)) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items
}

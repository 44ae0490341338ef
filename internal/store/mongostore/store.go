package mongostore

import (
	pkgmongo "github.com/recoverly/followup-agent/pkg/mongo"

	"github.com/recoverly/followup-agent/internal/store"
)

// Collection names
const (
	colTenants  = "tenants"
	colPolicies = "policies"
	colInvoices = "invoices"
	colCallLogs = "call_logs"
	colUsage    = "usage_records"
)

// New wires the MongoDB-backed repositories onto a shared client.
func New(client *pkgmongo.Client) *store.Store {
	return &store.Store{
		Tenants:  &TenantRepo{client: client},
		Policies: &PolicyRepo{client: client},
		Invoices: &InvoiceRepo{client: client},
		CallLogs: &CallLogRepo{client: client},
		Usage:    &UsageRepo{client: client},
	}
}

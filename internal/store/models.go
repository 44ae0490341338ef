package store

import "time"

// Invoice status values. Transitions are PENDING -> IN_PROGRESS ->
// {COMPLETED, FAILED}; the two terminal states never leave selection again.
const (
	InvoiceStatusPending    = "PENDING"
	InvoiceStatusInProgress = "IN_PROGRESS"
	InvoiceStatusCompleted  = "COMPLETED"
	InvoiceStatusFailed     = "FAILED"
)

// Call outcomes. A call log is created PENDING and moves exactly once to a
// terminal outcome, either via webhook or the reconciliation poll.
const (
	OutcomePending      = "PENDING"
	OutcomeAnswered     = "ANSWERED"
	OutcomeVoicemail    = "VOICEMAIL"
	OutcomeNoAnswer     = "NO_ANSWER"
	OutcomeBusy         = "BUSY"
	OutcomeWrongNumber  = "WRONG_NUMBER"
	OutcomeDisconnected = "DISCONNECTED"
)

// Tenant roles
const (
	RoleTenant = "tenant"
	RoleAdmin  = "admin"
)

// Tenant is a customer organization; the unit of data isolation.
type Tenant struct {
	ID           string     `bson:"id" json:"id"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	CompanyName  string     `bson:"company_name" json:"company_name"`
	Timezone     string     `bson:"timezone" json:"timezone"`
	Role         string     `bson:"role" json:"role"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// Policy holds a tenant's follow-up rules: when to call, what to say, and
// where to send customers to pay.
type Policy struct {
	TenantID        string    `bson:"tenant_id" json:"tenant_id"`
	CadenceDays     []int     `bson:"cadence_days" json:"cadence_days"`
	MaxAttempts     int       `bson:"max_attempts" json:"max_attempts"`
	CallWindowStart string    `bson:"call_window_start" json:"call_window_start"`
	CallWindowEnd   string    `bson:"call_window_end" json:"call_window_end"`
	CallDays        []string  `bson:"call_days" json:"call_days"`
	GreetingScript  string    `bson:"greeting_script" json:"greeting_script"`
	VoicemailScript string    `bson:"voicemail_script" json:"voicemail_script"`
	PaymentLink     string    `bson:"payment_link" json:"payment_link"`
	SMSEnabled      bool      `bson:"sms_enabled" json:"sms_enabled"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// Invoice is an overdue receivable being chased.
type Invoice struct {
	ID              string     `bson:"id" json:"id"`
	TenantID        string     `bson:"tenant_id" json:"tenant_id"`
	CustomerName    string     `bson:"customer_name" json:"customer_name"`
	PhoneNumber     string     `bson:"phone_number" json:"phone_number"`
	Amount          string     `bson:"amount" json:"amount"`
	DueDate         time.Time  `bson:"due_date" json:"due_date"`
	InvoiceNumber   string     `bson:"invoice_number,omitempty" json:"invoice_number,omitempty"`
	Notes           string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          string     `bson:"status" json:"status"`
	CallAttempts    int        `bson:"call_attempts" json:"call_attempts"`
	LastCallOutcome string     `bson:"last_call_outcome,omitempty" json:"last_call_outcome,omitempty"`
	NextCallDate    *time.Time `bson:"next_call_date,omitempty" json:"next_call_date,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
}

// CallLog records one call attempt against an invoice.
type CallLog struct {
	ID              string     `bson:"id" json:"id"`
	TenantID        string     `bson:"tenant_id" json:"tenant_id"`
	InvoiceID       string     `bson:"invoice_id" json:"invoice_id"`
	PhoneNumber     string     `bson:"phone_number" json:"phone_number"`
	StartedAt       time.Time  `bson:"started_at" json:"started_at"`
	EndedAt         *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	DurationSeconds int        `bson:"duration_seconds" json:"duration_seconds"`
	Outcome         string     `bson:"outcome" json:"outcome"`
	VapiCallID      string     `bson:"vapi_call_id,omitempty" json:"vapi_call_id,omitempty"`
}

// UsageRecord tracks minutes consumed against the allocation for one
// billing period. MinutesUsed only ever grows, via atomic increments.
type UsageRecord struct {
	ID               string    `bson:"id" json:"id"`
	TenantID         string    `bson:"tenant_id" json:"tenant_id"`
	PeriodStart      time.Time `bson:"period_start" json:"period_start"`
	PeriodEnd        time.Time `bson:"period_end" json:"period_end"`
	MinutesAllocated int       `bson:"minutes_allocated" json:"minutes_allocated"`
	MinutesUsed      float64   `bson:"minutes_used" json:"minutes_used"`
}

// TerminalInvoiceStatus reports whether no further calls may ever be
// selected for an invoice in this status.
func TerminalInvoiceStatus(status string) bool {
	return status == InvoiceStatusCompleted || status == InvoiceStatusFailed
}

// ValidOutcome reports whether s is a known call outcome.
func ValidOutcome(s string) bool {
	switch s {
	case OutcomePending, OutcomeAnswered, OutcomeVoicemail, OutcomeNoAnswer,
		OutcomeBusy, OutcomeWrongNumber, OutcomeDisconnected:
		return true
	}
	return false
}

package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/logger"
	"github.com/recoverly/followup-agent/pkg/metrics"
	"github.com/recoverly/followup-agent/pkg/vapi"
)

// CallGateway places calls and reports their status. Satisfied by
// *vapi.Client.
type CallGateway interface {
	InitiateCall(ctx context.Context, req vapi.CallRequest) (string, error)
	GetCallStatus(ctx context.Context, callID string) (*vapi.CallStatus, error)
}

// PaymentLinkSender texts payment links after a call is placed. Satisfied
// by *sms.Sender.
type PaymentLinkSender interface {
	Enabled() bool
	SendPaymentLink(ctx context.Context, to, companyName, paymentLink string) error
}

// Config tunes one scheduler run.
type Config struct {
	SelectionBatchSize int
	ReconcileBatchSize int
	ReconcileAfter     time.Duration
	DefaultMaxAttempts int
	Location           *time.Location
}

// Result counts what one run did.
type Result struct {
	CallsInitiated  int `json:"calls_initiated"`
	CallsSkipped    int `json:"calls_skipped"`
	CallsReconciled int `json:"calls_reconciled"`
}

// Scheduler runs the follow-up batch: select eligible invoices and place
// calls, then reconcile calls the webhook never finalized.
type Scheduler struct {
	store   *store.Store
	tracker *usage.Tracker
	gateway CallGateway
	sms     PaymentLinkSender
	cfg     Config
	log     *zap.Logger
}

func New(st *store.Store, tracker *usage.Tracker, gateway CallGateway, sms PaymentLinkSender, cfg Config) *Scheduler {
	if cfg.SelectionBatchSize <= 0 {
		cfg.SelectionBatchSize = 5
	}
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 10
	}
	if cfg.ReconcileAfter <= 0 {
		cfg.ReconcileAfter = 5 * time.Minute
	}
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		store:   st,
		tracker: tracker,
		gateway: gateway,
		sms:     sms,
		cfg:     cfg,
		log:     log,
	}
}

// Run executes one scheduling pass. Per-tenant failures are logged and do
// not abort the run; only a selection query failure is fatal.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	return s.runAt(ctx, time.Now().In(s.cfg.Location))
}

func (s *Scheduler) runAt(ctx context.Context, now time.Time) (Result, error) {
	result := Result{}

	initiated, skipped, err := s.runSelection(ctx, now)
	result.CallsInitiated = initiated
	result.CallsSkipped = skipped
	if err != nil {
		metrics.RecordSchedulerRun(initiated, skipped, 0, true)
		return result, err
	}

	reconciled := s.runReconciliation(ctx, now)
	result.CallsReconciled = reconciled

	metrics.RecordSchedulerRun(result.CallsInitiated, result.CallsSkipped, result.CallsReconciled, false)
	s.log.Info("scheduler run finished",
		zap.Int("calls_initiated", result.CallsInitiated),
		zap.Int("calls_skipped", result.CallsSkipped),
		zap.Int("calls_reconciled", result.CallsReconciled),
	)
	return result, nil
}

func (s *Scheduler) runSelection(ctx context.Context, now time.Time) (initiated, skipped int, err error) {
	policies, err := s.store.Policies.ListCallable(ctx, weekdayToken(now))
	if err != nil {
		return 0, 0, err
	}

	for i := range policies {
		policy := &policies[i]
		n, sk := s.callTenant(ctx, policy, now)
		initiated += n
		skipped += sk
	}
	return initiated, skipped, nil
}

func (s *Scheduler) callTenant(ctx context.Context, policy *store.Policy, now time.Time) (initiated, skipped int) {
	log := s.log.With(logger.TenantID(policy.TenantID))

	if !withinCallWindow(now, policy.CallWindowStart, policy.CallWindowEnd) {
		return 0, 0
	}

	tenant, err := s.store.Tenants.GetByID(ctx, policy.TenantID)
	if err != nil {
		log.Error("failed to load tenant", zap.Error(err))
		return 0, 0
	}
	if tenant == nil || !tenant.IsActive {
		return 0, 0
	}

	ok, err := s.tracker.CanMakeCalls(ctx, policy.TenantID, now)
	if err != nil {
		log.Error("failed to check usage", zap.Error(err))
		return 0, 0
	}
	if !ok {
		log.Info("tenant out of minutes, skipping")
		return 0, 1
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.DefaultMaxAttempts
	}

	invoices, err := s.store.Invoices.ListCallable(ctx, policy.TenantID, maxAttempts, now, int64(s.cfg.SelectionBatchSize))
	if err != nil {
		log.Error("failed to list callable invoices", zap.Error(err))
		return 0, 0
	}

	minCadence := MinCadenceDay(policy.CadenceDays)

	for i := range invoices {
		inv := &invoices[i]

		// Re-check before every call so a tenant cannot blow past the
		// allocation mid-batch.
		ok, err := s.tracker.CanMakeCalls(ctx, policy.TenantID, now)
		if err != nil {
			log.Error("failed to check usage", zap.Error(err))
			break
		}
		if !ok {
			log.Info("minutes exhausted mid-batch", zap.Int("remaining_invoices", len(invoices)-i))
			skipped++
			break
		}

		overdue := DaysOverdue(now, inv.DueDate)
		if inv.CallAttempts == 0 && (minCadence == -1 || overdue < minCadence) {
			skipped++
			continue
		}

		if s.placeCall(ctx, tenant, policy, inv, overdue, now) {
			initiated++
		} else {
			skipped++
		}
	}
	return initiated, skipped
}

func (s *Scheduler) placeCall(ctx context.Context, tenant *store.Tenant, policy *store.Policy, inv *store.Invoice, daysOverdue int, now time.Time) bool {
	log := s.log.With(
		logger.TenantID(tenant.ID),
		zap.String("invoice_id", inv.ID),
		logger.MaskPhone("phone", inv.PhoneNumber),
	)

	callID, err := s.gateway.InitiateCall(ctx, vapi.CallRequest{
		TenantID:        tenant.ID,
		InvoiceID:       inv.ID,
		CustomerName:    inv.CustomerName,
		PhoneNumber:     inv.PhoneNumber,
		Amount:          inv.Amount,
		InvoiceNumber:   inv.InvoiceNumber,
		DaysOverdue:     daysOverdue,
		CompanyName:     tenant.CompanyName,
		GreetingScript:  policy.GreetingScript,
		VoicemailScript: policy.VoicemailScript,
	})
	if err != nil {
		log.Error("failed to initiate call", zap.Error(err))
		return false
	}

	cl := &store.CallLog{
		ID:          uuid.New().String(),
		TenantID:    tenant.ID,
		InvoiceID:   inv.ID,
		PhoneNumber: inv.PhoneNumber,
		StartedAt:   now,
		Outcome:     store.OutcomePending,
		VapiCallID:  callID,
	}
	if err := s.store.CallLogs.Create(ctx, cl); err != nil {
		log.Error("failed to record call log", zap.Error(err))
	}
	if err := s.store.Invoices.MarkInProgress(ctx, tenant.ID, inv.ID); err != nil {
		log.Error("failed to mark invoice in progress", zap.Error(err))
	}

	if policy.SMSEnabled && policy.PaymentLink != "" && s.sms != nil && s.sms.Enabled() {
		if err := s.sms.SendPaymentLink(ctx, inv.PhoneNumber, tenant.CompanyName, policy.PaymentLink); err != nil {
			log.Warn("failed to send payment link", zap.Error(err))
		}
	}

	log.Info("call initiated",
		zap.String("vapi_call_id", callID),
		zap.Int("days_overdue", daysOverdue),
	)
	return true
}

func (s *Scheduler) runReconciliation(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-s.cfg.ReconcileAfter)
	stale, err := s.store.CallLogs.ListStalePending(ctx, cutoff, int64(s.cfg.ReconcileBatchSize))
	if err != nil {
		s.log.Error("failed to list stale calls", zap.Error(err))
		return 0
	}

	reconciled := 0
	for i := range stale {
		cl := &stale[i]
		status, err := s.gateway.GetCallStatus(ctx, cl.VapiCallID)
		if err != nil {
			s.log.Error("failed to poll call status",
				zap.String("vapi_call_id", cl.VapiCallID), zap.Error(err))
			continue
		}
		if !status.Ended() {
			continue
		}

		endedAt := now
		if status.EndedAt != nil {
			endedAt = *status.EndedAt
		}
		outcome := vapi.MapOutcome(status.EndedReason)

		if err := s.ReconcileCall(ctx, cl, endedAt, status.DurationSeconds(), outcome, now); err != nil {
			s.log.Error("failed to reconcile call",
				zap.String("call_id", cl.ID), zap.Error(err))
			continue
		}
		reconciled++
	}
	return reconciled
}

// ReconcileCall finalizes one PENDING call: terminal outcome on the call
// log, usage for the talk time, and the invoice transition. The call log
// update is conditional, so when the webhook already finalized the call
// this is a no-op and usage is never recorded twice.
func (s *Scheduler) ReconcileCall(ctx context.Context, cl *store.CallLog, endedAt time.Time, durationSeconds int, outcome string, now time.Time) error {
	modified, err := s.store.CallLogs.Reconcile(ctx, cl.ID, endedAt, durationSeconds, outcome)
	if err != nil {
		return err
	}
	if !modified {
		return nil
	}

	if durationSeconds > 0 {
		if err := s.tracker.Record(ctx, cl.TenantID, durationSeconds, now); err != nil {
			s.log.Error("failed to record usage",
				logger.TenantID(cl.TenantID), zap.Error(err))
		}
	}

	inv, err := s.store.Invoices.GetByID(ctx, cl.TenantID, cl.InvoiceID)
	if err != nil {
		return err
	}
	if inv == nil || store.TerminalInvoiceStatus(inv.Status) {
		return nil
	}

	policy, err := s.store.Policies.GetByTenant(ctx, cl.TenantID)
	if err != nil {
		return err
	}
	var cadence []int
	maxAttempts := s.cfg.DefaultMaxAttempts
	if policy != nil {
		cadence = policy.CadenceDays
		if policy.MaxAttempts > 0 {
			maxAttempts = policy.MaxAttempts
		}
	}

	tr := NextTransition(inv, cadence, maxAttempts, outcome, now)
	return s.store.Invoices.ApplyReconciliation(ctx, inv.ID, tr.Attempts, outcome, tr.Status, tr.NextCallDate)
}

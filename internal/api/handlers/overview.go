package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/errors"
)

type OverviewResponse struct {
	Invoices        map[string]int64 `json:"invoices"`
	Usage           *usage.Status    `json:"usage"`
	CallsThisPeriod int64            `json:"calls_this_period"`
	RecentCalls     []store.CallLog  `json:"recent_calls"`
	PolicyActive    bool             `json:"policy_active"`
}

// GetOverview assembles the dashboard summary for the tenant.
func (h *Handler) GetOverview(c *gin.Context) {
	ctx := c.Request.Context()
	tid := c.GetString("tenant_id")
	now := time.Now()

	counts, err := h.store.Invoices.CountByStatus(ctx, tid)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	for _, status := range []string{
		store.InvoiceStatusPending, store.InvoiceStatusInProgress,
		store.InvoiceStatusCompleted, store.InvoiceStatusFailed,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}

	usageStatus, err := h.tracker.GetStatus(ctx, tid, now)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	periodStart, _ := usage.Period(now)
	callCount, err := h.store.CallLogs.CountSince(ctx, tid, periodStart)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	recent, err := h.store.CallLogs.ListRecent(ctx, tid, 10)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if recent == nil {
		recent = []store.CallLog{}
	}

	policy, err := h.store.Policies.GetByTenant(ctx, tid)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, OverviewResponse{
		Invoices:        counts,
		Usage:           usageStatus,
		CallsThisPeriod: callCount,
		RecentCalls:     recent,
		PolicyActive:    policy != nil && policy.PaymentLink != "",
	})
}

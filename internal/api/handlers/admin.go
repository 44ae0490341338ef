package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/errors"
	"github.com/recoverly/followup-agent/pkg/utils"
)

type AdminTenantSummary struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	CompanyName string        `json:"company_name"`
	Timezone    string        `json:"timezone"`
	Role        string        `json:"role"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
	Usage       *usage.Status `json:"usage,omitempty"`
	// Invoices is filled on the detail endpoint only.
	Invoices map[string]int64 `json:"invoices,omitempty"`
}

// ListTenants returns all tenants with their current-period usage.
// Admin only; registered behind the role middleware.
func (h *Handler) ListTenants(c *gin.Context) {
	params := utils.ParsePagination(c)
	offset := int64((params.Page - 1) * params.Limit)

	tenants, err := h.store.Tenants.List(c.Request.Context(), int64(params.Limit), offset)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		filtered := tenants[:0]
		for _, t := range tenants {
			if strings.Contains(strings.ToLower(t.Email), q) ||
				strings.Contains(strings.ToLower(t.CompanyName), q) {
				filtered = append(filtered, t)
			}
		}
		tenants = filtered
	}

	now := time.Now()
	summaries := make([]AdminTenantSummary, 0, len(tenants))
	for _, t := range tenants {
		s := AdminTenantSummary{
			ID:          t.ID,
			Email:       t.Email,
			CompanyName: t.CompanyName,
			Timezone:    t.Timezone,
			Role:        t.Role,
			IsActive:    t.IsActive,
			CreatedAt:   t.CreatedAt,
			LastLoginAt: t.LastLoginAt,
		}
		// Usage is best effort; a missing record must not fail the listing.
		if us, err := h.tracker.GetStatus(c.Request.Context(), t.ID, now); err == nil {
			s.Usage = us
		}
		summaries = append(summaries, s)
	}

	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data:  summaries,
		Page:  params.Page,
		Limit: params.Limit,
		Count: len(summaries),
	})
}

type AdminStats struct {
	Tenants         int64 `json:"tenants"`
	ActiveTenants   int64 `json:"active_tenants"`
	Invoices        int64 `json:"invoices"`
	OpenInvoices    int64 `json:"open_invoices"`
	CallsThisPeriod int64 `json:"calls_this_period"`
}

// GetAdminStats reports totals across all tenants. Admin only.
func (h *Handler) GetAdminStats(c *gin.Context) {
	if h.mongoClient == nil {
		errors.InternalError(c, fmt.Errorf("stats unavailable without a database connection"), h.logger)
		return
	}

	ctx := c.Request.Context()
	periodStart, _ := usage.Period(time.Now())

	var stats AdminStats
	var err error
	if stats.Tenants, err = h.mongoClient.NewQuery("tenants").Count(ctx); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if stats.ActiveTenants, err = h.mongoClient.NewQuery("tenants").
		Eq("is_active", true).Count(ctx); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if stats.Invoices, err = h.mongoClient.NewQuery("invoices").Count(ctx); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if stats.OpenInvoices, err = h.mongoClient.NewQuery("invoices").
		In("status", []string{store.InvoiceStatusPending, store.InvoiceStatusInProgress}).
		Count(ctx); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if stats.CallsThisPeriod, err = h.mongoClient.NewQuery("call_logs").
		Gte("started_at", periodStart).Count(ctx); err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetTenant returns one tenant with usage detail. Admin only.
func (h *Handler) GetTenant(c *gin.Context) {
	tenant, err := h.store.Tenants.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if tenant == nil {
		errors.NotFound(c, "tenant not found")
		return
	}

	summary := AdminTenantSummary{
		ID:          tenant.ID,
		Email:       tenant.Email,
		CompanyName: tenant.CompanyName,
		Timezone:    tenant.Timezone,
		Role:        tenant.Role,
		IsActive:    tenant.IsActive,
		CreatedAt:   tenant.CreatedAt,
		LastLoginAt: tenant.LastLoginAt,
	}
	if us, err := h.tracker.GetStatus(c.Request.Context(), tenant.ID, time.Now()); err == nil {
		summary.Usage = us
	}
	if counts, err := h.store.Invoices.CountByStatus(c.Request.Context(), tenant.ID); err == nil {
		summary.Invoices = counts
	}

	c.JSON(http.StatusOK, summary)
}

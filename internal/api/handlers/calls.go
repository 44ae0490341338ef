package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/followup-agent/pkg/errors"
	"github.com/recoverly/followup-agent/pkg/utils"
)

func (h *Handler) ListCalls(c *gin.Context) {
	tid := c.GetString("tenant_id")
	params := utils.ParsePagination(c)

	offset := int64((params.Page - 1) * params.Limit)
	calls, err := h.store.CallLogs.List(c.Request.Context(), tid, int64(params.Limit), offset)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data:  calls,
		Page:  params.Page,
		Limit: params.Limit,
		Count: len(calls),
	})
}

// ExportCalls streams the tenant's call history as CSV.
func (h *Handler) ExportCalls(c *gin.Context) {
	tid := c.GetString("tenant_id")

	calls, err := h.store.CallLogs.List(c.Request.Context(), tid, 10000, 0)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}

	filename := fmt.Sprintf("calls-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "invoice_id", "phone_number", "started_at", "ended_at", "duration_seconds", "outcome"})
	for _, cl := range calls {
		endedAt := ""
		if cl.EndedAt != nil {
			endedAt = cl.EndedAt.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			cl.ID,
			cl.InvoiceID,
			cl.PhoneNumber,
			cl.StartedAt.Format(time.RFC3339),
			endedAt,
			strconv.Itoa(cl.DurationSeconds),
			cl.Outcome,
		})
	}
	w.Flush()
}

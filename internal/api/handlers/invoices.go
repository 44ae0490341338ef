package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/pkg/audit"
	"github.com/recoverly/followup-agent/pkg/errors"
	"github.com/recoverly/followup-agent/pkg/utils"
)

const maxImportRows = 1000

type InvoiceRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	PhoneNumber   string `json:"phone_number" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	DueDate       string `json:"due_date" binding:"required"`
	InvoiceNumber string `json:"invoice_number"`
	Notes         string `json:"notes"`
}

func (h *Handler) ListInvoices(c *gin.Context) {
	tid := c.GetString("tenant_id")
	status := c.Query("status")

	if status != "" {
		switch status {
		case store.InvoiceStatusPending, store.InvoiceStatusInProgress,
			store.InvoiceStatusCompleted, store.InvoiceStatusFailed:
		default:
			errors.BadRequest(c, "invalid status filter")
			return
		}
	}

	invoices, err := h.store.Invoices.List(c.Request.Context(), tid, status)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}
	if invoices == nil {
		invoices = []store.Invoice{}
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices, "count": len(invoices)})
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	tid := c.GetString("tenant_id")

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	inv, err := buildInvoice(tid, req)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	if err := h.store.Invoices.Create(c.Request.Context(), inv); err != nil {
		h.logger.Error("Failed to create invoice", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	audit.Log(h.mongoClient, tid, string(audit.ActionCreate), "invoice", inv.ID, nil)
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	tid := c.GetString("tenant_id")

	inv, err := h.store.Invoices.GetByID(c.Request.Context(), tid, c.Param("id"))
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if inv == nil {
		errors.NotFound(c, "invoice not found")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *Handler) UpdateInvoice(c *gin.Context) {
	tid := c.GetString("tenant_id")

	existing, err := h.store.Invoices.GetByID(c.Request.Context(), tid, c.Param("id"))
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if existing == nil {
		errors.NotFound(c, "invoice not found")
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	updated, err := buildInvoice(tid, req)
	if err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	// Call history and state machine fields survive the edit.
	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.CallAttempts = existing.CallAttempts
	updated.LastCallOutcome = existing.LastCallOutcome
	updated.NextCallDate = existing.NextCallDate
	updated.CreatedAt = existing.CreatedAt

	if err := h.store.Invoices.Update(c.Request.Context(), updated); err != nil {
		h.logger.Error("Failed to update invoice", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	audit.Log(h.mongoClient, tid, string(audit.ActionUpdate), "invoice", updated.ID, nil)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteInvoice(c *gin.Context) {
	tid := c.GetString("tenant_id")
	id := c.Param("id")

	if err := h.store.Invoices.Delete(c.Request.Context(), tid, id); err != nil {
		errors.NotFound(c, "invoice not found")
		return
	}

	audit.Log(h.mongoClient, tid, string(audit.ActionDelete), "invoice", id, nil)
	c.JSON(http.StatusOK, gin.H{"message": "invoice deleted"})
}

func (h *Handler) DeleteAllInvoices(c *gin.Context) {
	tid := c.GetString("tenant_id")

	// Require explicit confirmation for the bulk wipe.
	if c.Query("confirm") != "true" {
		errors.BadRequest(c, "pass confirm=true to delete all invoices")
		return
	}

	deleted, err := h.store.Invoices.DeleteAllForTenant(c.Request.Context(), tid)
	if err != nil {
		h.logger.Error("Failed to delete invoices", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	audit.Log(h.mongoClient, tid, string(audit.ActionDeleteAll), "invoice", "", map[string]interface{}{
		"deleted": deleted,
	})
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

type importError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportInvoices accepts a CSV upload with columns customer_name,
// phone_number, amount, due_date, invoice_number, notes. Bad rows are
// reported, good rows are inserted.
func (h *Handler) ImportInvoices(c *gin.Context) {
	tid := c.GetString("tenant_id")

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		errors.BadRequest(c, "csv file upload required")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		errors.BadRequest(c, "failed to read csv header")
		return
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"customer_name", "phone_number", "amount", "due_date"} {
		if _, ok := col[required]; !ok {
			errors.BadRequest(c, "missing required column: "+required)
			return
		}
	}

	var invoices []store.Invoice
	var importErrors []importError
	row := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			importErrors = append(importErrors, importError{Row: row, Reason: "malformed row"})
			continue
		}
		if row-1 > maxImportRows {
			errors.BadRequest(c, fmt.Sprintf("import limited to %d rows", maxImportRows))
			return
		}

		field := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		inv, err := buildInvoice(tid, InvoiceRequest{
			CustomerName:  field("customer_name"),
			PhoneNumber:   field("phone_number"),
			Amount:        field("amount"),
			DueDate:       field("due_date"),
			InvoiceNumber: field("invoice_number"),
			Notes:         field("notes"),
		})
		if err != nil {
			importErrors = append(importErrors, importError{Row: row, Reason: err.Error()})
			continue
		}
		invoices = append(invoices, *inv)
	}

	if len(invoices) > 0 {
		if err := h.store.Invoices.CreateMany(c.Request.Context(), invoices); err != nil {
			h.logger.Error("Failed to import invoices", zap.Error(err))
			errors.InternalError(c, err, h.logger)
			return
		}
	}

	audit.Log(h.mongoClient, tid, string(audit.ActionImport), "invoice", "", map[string]interface{}{
		"imported": len(invoices),
		"rejected": len(importErrors),
	})

	c.JSON(http.StatusOK, gin.H{
		"imported": len(invoices),
		"rejected": len(importErrors),
		"errors":   importErrors,
	})
}

func buildInvoice(tid string, req InvoiceRequest) (*store.Invoice, error) {
	if req.CustomerName == "" {
		return nil, fmt.Errorf("customer_name is required")
	}

	phone := utils.NormalizePhone(req.PhoneNumber)
	if !utils.ValidateE164(phone) {
		return nil, fmt.Errorf("invalid phone number")
	}

	if req.Amount == "" {
		return nil, fmt.Errorf("amount is required")
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid due_date, expected YYYY-MM-DD")
	}

	now := time.Now()
	return &store.Invoice{
		ID:            uuid.New().String(),
		TenantID:      tid,
		CustomerName:  req.CustomerName,
		PhoneNumber:   phone,
		Amount:        req.Amount,
		DueDate:       dueDate,
		InvoiceNumber: req.InvoiceNumber,
		Notes:         req.Notes,
		Status:        store.InvoiceStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/recoverly/followup-agent/internal/scheduler"
	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/internal/usage"
	"github.com/recoverly/followup-agent/pkg/env"
	"github.com/recoverly/followup-agent/pkg/sms"
	"github.com/recoverly/followup-agent/pkg/vapi"
)

const testTenantID = "tenant-1"

type testEnv struct {
	handler *Handler
	store   *store.Store
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &env.Config{
		JWTSecret:         "test-secret",
		AppEnv:            "production",
		CronSecret:        "cron-secret",
		VapiWebhookSecret: "hook-secret",
		TZ:                "UTC",
		AllowSelfRegister: true,
	}

	st := store.NewMemory()
	tracker := usage.NewTracker(st.Usage, 100)
	gateway := vapi.NewClient("", "", "http://127.0.0.1:0", time.Second)
	sched := scheduler.New(st, tracker, gateway, sms.NewSender("", "", time.Second), scheduler.Config{
		Location: time.UTC,
	})

	// Unconnected client; dedupe checks fail open in the webhook path.
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})

	h := NewHandler(cfg, redisClient, nil, st, tracker, sched)

	router := gin.New()
	authed := router.Group("/api")
	authed.Use(func(c *gin.Context) {
		c.Set("tenant_id", testTenantID)
		c.Set("tenant_role", store.RoleTenant)
	})
	{
		authed.GET("/invoices", h.ListInvoices)
		authed.POST("/invoices", h.CreateInvoice)
		authed.POST("/invoices/import", h.ImportInvoices)
		authed.DELETE("/invoices", h.DeleteAllInvoices)
		authed.GET("/invoices/:id", h.GetInvoice)
		authed.PUT("/invoices/:id", h.UpdateInvoice)
		authed.DELETE("/invoices/:id", h.DeleteInvoice)
		authed.GET("/policy", h.GetPolicy)
		authed.PUT("/policy", h.UpsertPolicy)
		authed.GET("/usage", h.GetUsage)
		authed.GET("/overview", h.GetOverview)
	}
	router.POST("/webhooks/vapi", h.VapiWebhook)
	router.POST("/internal/cron/process-calls", h.TriggerScheduler)

	return &testEnv{handler: h, store: st, router: router}
}

func (te *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)
	return w
}

func TestCreateInvoiceNormalizesPhone(t *testing.T) {
	te := newTestEnv(t)

	w := te.do("POST", "/api/invoices", gin.H{
		"customer_name": "Dana Smith",
		"phone_number":  "(555) 123-4567",
		"amount":        "250.00",
		"due_date":      "2026-08-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var inv store.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &inv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if inv.PhoneNumber != "+15551234567" {
		t.Errorf("phone = %q, want +15551234567", inv.PhoneNumber)
	}
	if inv.Status != store.InvoiceStatusPending {
		t.Errorf("status = %q, want PENDING", inv.Status)
	}
	if inv.ID == "" {
		t.Error("expected generated id")
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	te := newTestEnv(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"bad phone", gin.H{"customer_name": "A", "phone_number": "12", "amount": "10", "due_date": "2026-08-01"}},
		{"bad due date", gin.H{"customer_name": "A", "phone_number": "+15551234567", "amount": "10", "due_date": "01/08/2026"}},
		{"missing amount", gin.H{"customer_name": "A", "phone_number": "+15551234567", "due_date": "2026-08-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := te.do("POST", "/api/invoices", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListInvoicesRejectsUnknownStatus(t *testing.T) {
	te := newTestEnv(t)
	if w := te.do("GET", "/api/invoices?status=BOGUS", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateInvoicePreservesCallState(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	next := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	inv := &store.Invoice{
		ID:           "inv-1",
		TenantID:     testTenantID,
		CustomerName: "Dana",
		PhoneNumber:  "+15551234567",
		Amount:       "100.00",
		DueDate:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:       store.InvoiceStatusInProgress,
		CallAttempts: 2,
		NextCallDate: &next,
	}
	if err := te.store.Invoices.Create(ctx, inv); err != nil {
		t.Fatal(err)
	}

	w := te.do("PUT", "/api/invoices/inv-1", gin.H{
		"customer_name": "Dana Smith",
		"phone_number":  "+15551234567",
		"amount":        "150.00",
		"due_date":      "2026-08-01",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got, err := te.store.Invoices.GetByID(ctx, testTenantID, "inv-1")
	if err != nil || got == nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Amount != "150.00" {
		t.Errorf("amount = %q, want 150.00", got.Amount)
	}
	if got.CallAttempts != 2 || got.Status != store.InvoiceStatusInProgress {
		t.Errorf("call state lost: attempts=%d status=%s", got.CallAttempts, got.Status)
	}
	if got.NextCallDate == nil || !got.NextCallDate.Equal(next) {
		t.Errorf("next call date lost: %v", got.NextCallDate)
	}
}

func TestDeleteAllInvoicesRequiresConfirm(t *testing.T) {
	te := newTestEnv(t)
	if w := te.do("DELETE", "/api/invoices", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without confirm", w.Code)
	}
	if w := te.do("DELETE", "/api/invoices?confirm=true", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with confirm", w.Code)
	}
}

func TestImportInvoicesMixedRows(t *testing.T) {
	te := newTestEnv(t)

	csvBody := strings.Join([]string{
		"customer_name,phone_number,amount,due_date,invoice_number",
		"Dana,+15551234567,100.00,2026-08-01,INV-1",
		"Riley,bad-phone,50.00,2026-08-02,INV-2",
		"Sam,(555) 987-6543,75.00,2026-08-03,INV-3",
	}, "\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "invoices.csv")
	fmt.Fprint(fw, csvBody)
	mw.Close()

	req := httptest.NewRequest("POST", "/api/invoices/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Imported int `json:"imported"`
		Rejected int `json:"rejected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Imported != 2 || resp.Rejected != 1 {
		t.Errorf("imported=%d rejected=%d, want 2/1", resp.Imported, resp.Rejected)
	}

	invoices, err := te.store.Invoices.List(context.Background(), testTenantID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(invoices) != 2 {
		t.Errorf("stored %d invoices, want 2", len(invoices))
	}
}

func TestUpsertPolicyValidation(t *testing.T) {
	te := newTestEnv(t)

	valid := gin.H{
		"cadence_days":      []int{3, 7, 14},
		"max_attempts":      3,
		"call_window_start": "09:00",
		"call_window_end":   "17:00",
		"call_days":         []string{"monday", "wednesday"},
		"payment_link":      "https://pay.example.com/abc",
	}

	tests := []struct {
		name   string
		mutate func(gin.H)
		want   int
	}{
		{"valid", func(gin.H) {}, http.StatusOK},
		{"unsorted cadence", func(b gin.H) { b["cadence_days"] = []int{7, 3} }, http.StatusBadRequest},
		{"zero cadence day", func(b gin.H) { b["cadence_days"] = []int{0, 3} }, http.StatusBadRequest},
		{"bad call day", func(b gin.H) { b["call_days"] = []string{"funday"} }, http.StatusBadRequest},
		{"window start only", func(b gin.H) { b["call_window_end"] = "" }, http.StatusBadRequest},
		{"inverted window", func(b gin.H) { b["call_window_start"] = "18:00" }, http.StatusBadRequest},
		{"bad payment link", func(b gin.H) { b["payment_link"] = "not-a-url" }, http.StatusBadRequest},
		{"max attempts too high", func(b gin.H) { b["max_attempts"] = 50 }, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := gin.H{}
			for k, v := range valid {
				body[k] = v
			}
			tt.mutate(body)
			if w := te.do("PUT", "/api/policy", body); w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestGetPolicyBeforeConfiguration(t *testing.T) {
	te := newTestEnv(t)
	if w := te.do("GET", "/api/policy", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetUsageFreshTenant(t *testing.T) {
	te := newTestEnv(t)

	w := te.do("GET", "/api/usage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status usage.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.MinutesAllocated != 100 || status.MinutesUsed != 0 {
		t.Errorf("allocated=%d used=%f, want 100/0", status.MinutesAllocated, status.MinutesUsed)
	}
	if !status.CanMakeCalls {
		t.Error("fresh tenant should be able to make calls")
	}
}

func TestGetOverviewFreshTenant(t *testing.T) {
	te := newTestEnv(t)

	w := te.do("GET", "/api/overview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var overview OverviewResponse
	if err := json.Unmarshal(w.Body.Bytes(), &overview); err != nil {
		t.Fatal(err)
	}
	for _, status := range []string{
		store.InvoiceStatusPending, store.InvoiceStatusInProgress,
		store.InvoiceStatusCompleted, store.InvoiceStatusFailed,
	} {
		if n, ok := overview.Invoices[status]; !ok || n != 0 {
			t.Errorf("invoices[%s] = %d,%v, want zero-filled", status, n, ok)
		}
	}
	if overview.CallsThisPeriod != 0 {
		t.Errorf("calls this period = %d, want 0", overview.CallsThisPeriod)
	}
	if overview.PolicyActive {
		t.Error("policy should not be active before configuration")
	}
	if overview.Usage == nil || !overview.Usage.CanMakeCalls {
		t.Error("fresh tenant usage should allow calls")
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVapiWebhookReconcilesCall(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	due := time.Now().AddDate(0, 0, -10)
	if err := te.store.Invoices.Create(ctx, &store.Invoice{
		ID:           "inv-1",
		TenantID:     testTenantID,
		CustomerName: "Dana",
		PhoneNumber:  "+15551234567",
		Amount:       "100.00",
		DueDate:      due,
		Status:       store.InvoiceStatusInProgress,
		CallAttempts: 0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := te.store.CallLogs.Create(ctx, &store.CallLog{
		ID:          "call-1",
		TenantID:    testTenantID,
		InvoiceID:   "inv-1",
		PhoneNumber: "+15551234567",
		StartedAt:   time.Now().Add(-10 * time.Minute),
		Outcome:     store.OutcomePending,
		VapiCallID:  "ext-1",
	}); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(gin.H{
		"message": gin.H{
			"type":            "end-of-call-report",
			"endedReason":     "customer-ended-call",
			"call":            gin.H{"id": "ext-1"},
			"durationSeconds": 120,
		},
	})

	req := httptest.NewRequest("POST", "/webhooks/vapi", bytes.NewReader(body))
	req.Header.Set("x-vapi-signature", signBody("hook-secret", body))
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	cl, err := te.store.CallLogs.GetByVapiCallID(ctx, "ext-1")
	if err != nil || cl == nil {
		t.Fatalf("reload call: %v", err)
	}
	if cl.Outcome != store.OutcomeAnswered {
		t.Errorf("outcome = %q, want ANSWERED", cl.Outcome)
	}

	inv, err := te.store.Invoices.GetByID(ctx, testTenantID, "inv-1")
	if err != nil || inv == nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if inv.Status != store.InvoiceStatusCompleted {
		t.Errorf("invoice status = %q, want COMPLETED", inv.Status)
	}
}

func TestVapiWebhookTopLevelShape(t *testing.T) {
	te := newTestEnv(t)
	ctx := context.Background()

	due := time.Now().AddDate(0, 0, -10)
	if err := te.store.Invoices.Create(ctx, &store.Invoice{
		ID:           "inv-2",
		TenantID:     testTenantID,
		CustomerName: "Dana",
		PhoneNumber:  "+15551234567",
		Amount:       "100.00",
		DueDate:      due,
		Status:       store.InvoiceStatusInProgress,
		CallAttempts: 0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := te.store.CallLogs.Create(ctx, &store.CallLog{
		ID:          "call-2",
		TenantID:    testTenantID,
		InvoiceID:   "inv-2",
		PhoneNumber: "+15551234567",
		StartedAt:   time.Now().Add(-10 * time.Minute),
		Outcome:     store.OutcomePending,
		VapiCallID:  "ext-2",
	}); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(gin.H{
		"type": "call-ended",
		"call": gin.H{
			"id":       "ext-2",
			"status":   "completed",
			"duration": 90,
			"metadata": gin.H{"tenantId": testTenantID, "invoiceId": "inv-2"},
		},
	})

	req := httptest.NewRequest("POST", "/webhooks/vapi", bytes.NewReader(body))
	req.Header.Set("x-vapi-signature", signBody("hook-secret", body))
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	cl, err := te.store.CallLogs.GetByVapiCallID(ctx, "ext-2")
	if err != nil || cl == nil {
		t.Fatalf("reload call: %v", err)
	}
	if cl.Outcome != store.OutcomeAnswered {
		t.Errorf("outcome = %q, want ANSWERED", cl.Outcome)
	}
	if cl.DurationSeconds != 90 {
		t.Errorf("duration = %d, want 90", cl.DurationSeconds)
	}

	inv, err := te.store.Invoices.GetByID(ctx, testTenantID, "inv-2")
	if err != nil || inv == nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if inv.Status != store.InvoiceStatusCompleted {
		t.Errorf("invoice status = %q, want COMPLETED", inv.Status)
	}
}

func TestVapiWebhookRejectsBadSignature(t *testing.T) {
	te := newTestEnv(t)

	body := []byte(`{"message":{"type":"end-of-call-report","call":{"id":"ext-1"}}}`)
	req := httptest.NewRequest("POST", "/webhooks/vapi", bytes.NewReader(body))
	req.Header.Set("x-vapi-signature", "deadbeef")
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestVapiWebhookIgnoresOtherEvents(t *testing.T) {
	te := newTestEnv(t)

	body := []byte(`{"message":{"type":"status-update","call":{"id":"ext-1"}}}`)
	req := httptest.NewRequest("POST", "/webhooks/vapi", bytes.NewReader(body))
	req.Header.Set("x-vapi-signature", signBody("hook-secret", body))
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ignored") {
		t.Errorf("body = %s, want ignored", w.Body.String())
	}
}

func TestTriggerSchedulerAuth(t *testing.T) {
	te := newTestEnv(t)

	req := httptest.NewRequest("POST", "/internal/cron/process-calls", nil)
	w := httptest.NewRecorder()
	te.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without secret", w.Code)
	}

	req = httptest.NewRequest("POST", "/internal/cron/process-calls", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w = httptest.NewRecorder()
	te.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with secret, body = %s", w.Code, w.Body.String())
	}

	var result scheduler.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.CallsInitiated != 0 || result.CallsReconciled != 0 {
		t.Errorf("empty store should do nothing, got %+v", result)
	}
}

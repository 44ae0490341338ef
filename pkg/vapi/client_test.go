package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMapOutcome(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"completed", OutcomeAnswered},
		{"customer-ended-call", OutcomeAnswered},
		{"voicemail", OutcomeVoicemail},
		{"no-answer", OutcomeNoAnswer},
		{"customer-did-not-answer", OutcomeNoAnswer},
		{"busy", OutcomeBusy},
		{"failed", OutcomeDisconnected},
		{"canceled", OutcomeDisconnected},
		{"", OutcomeDisconnected},
		{"something-new", OutcomeDisconnected},
	}

	for _, tt := range tests {
		if got := MapOutcome(tt.reason); got != tt.want {
			t.Errorf("MapOutcome(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestInterpolate(t *testing.T) {
	req := CallRequest{
		CustomerName:  "Dana Smith",
		Amount:        "$450.00",
		InvoiceNumber: "INV-1042",
		DaysOverdue:   12,
		CompanyName:   "Acme Plumbing",
	}

	script := "Hi {{customer_name}}, this is {{company_name}} about invoice {{invoice_number}} for {{amount_due}}, {{days_overdue}} days overdue."
	got := interpolate(script, req)
	want := "Hi Dana Smith, this is Acme Plumbing about invoice INV-1042 for $450.00, 12 days overdue."
	if got != want {
		t.Errorf("interpolate() = %q, want %q", got, want)
	}

	if interpolate("", req) != "" {
		t.Errorf("interpolate() on empty script should stay empty")
	}
}

func TestInitiateCall(t *testing.T) {
	var gotAuth string
	var gotBody createCallRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(createCallResponse{ID: "call-123", Status: "queued"})
	}))
	defer srv.Close()

	c := NewClient("test-key", "pn-1", srv.URL, 5*time.Second)
	id, err := c.InitiateCall(context.Background(), CallRequest{
		TenantID:       "t-1",
		InvoiceID:      "inv-1",
		CustomerName:   "Dana",
		PhoneNumber:    "+15551234567",
		Amount:         "$100.00",
		InvoiceNumber:  "INV-7",
		DaysOverdue:    5,
		CompanyName:    "Acme",
		GreetingScript: "Hello {{customer_name}}",
	})
	if err != nil {
		t.Fatalf("InitiateCall() error = %v", err)
	}
	if id != "call-123" {
		t.Errorf("InitiateCall() = %q, want call-123", id)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.PhoneNumberID != "pn-1" {
		t.Errorf("phoneNumberId = %q", gotBody.PhoneNumberID)
	}
	if gotBody.Customer.Number != "+15551234567" {
		t.Errorf("customer number = %q", gotBody.Customer.Number)
	}
	if gotBody.Assistant.FirstMessage != "Hello Dana" {
		t.Errorf("firstMessage = %q, placeholders not interpolated", gotBody.Assistant.FirstMessage)
	}
	if gotBody.Metadata.InvoiceID != "inv-1" {
		t.Errorf("metadata invoice id = %q", gotBody.Metadata.InvoiceID)
	}
	if !strings.Contains(gotBody.Assistant.Model.Messages[0].Content, "Acme") {
		t.Errorf("system prompt missing company name")
	}
}

func TestInitiateCallAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid phone number"}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", "pn-1", srv.URL, 5*time.Second)
	if _, err := c.InitiateCall(context.Background(), CallRequest{PhoneNumber: "bogus"}); err == nil {
		t.Fatalf("InitiateCall() expected error on 400 response")
	}
}

func TestGetCallStatus(t *testing.T) {
	started := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	ended := started.Add(95 * time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/call-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CallStatus{
			ID:          "call-123",
			Status:      "ended",
			EndedReason: "customer-ended-call",
			StartedAt:   &started,
			EndedAt:     &ended,
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", "pn-1", srv.URL, 5*time.Second)
	status, err := c.GetCallStatus(context.Background(), "call-123")
	if err != nil {
		t.Fatalf("GetCallStatus() error = %v", err)
	}
	if !status.Ended() {
		t.Errorf("Ended() = false, want true")
	}
	if got := status.DurationSeconds(); got != 95 {
		t.Errorf("DurationSeconds() = %d, want 95", got)
	}
	if MapOutcome(status.EndedReason) != OutcomeAnswered {
		t.Errorf("outcome mapping for %q", status.EndedReason)
	}
}

func TestCallStatusDurationWhileLive(t *testing.T) {
	started := time.Now()
	s := &CallStatus{Status: "in-progress", StartedAt: &started}
	if s.Ended() {
		t.Errorf("Ended() = true for in-progress call")
	}
	if s.DurationSeconds() != 0 {
		t.Errorf("DurationSeconds() = %d for live call, want 0", s.DurationSeconds())
	}
}

package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/recoverly/followup-agent/pkg/client"
)

const systemPrompt = `You are a polite and professional accounts receivable assistant calling on behalf of {{company_name}}. You are calling {{customer_name}} about invoice {{invoice_number}} for {{amount_due}}, which is {{days_overdue}} days past due. Be courteous, never threatening. Confirm you are speaking with the right person, remind them of the outstanding balance, and offer to send a payment link by text message. If they dispute the invoice or ask to speak with a person, apologize and say someone from the billing team will follow up. Keep the call under three minutes.`

// Client talks to the Vapi voice API.
type Client struct {
	apiKey        string
	phoneNumberID string
	baseURL       string
	http          *client.HTTPClient
}

func NewClient(apiKey, phoneNumberID, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:        apiKey,
		phoneNumberID: phoneNumberID,
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          client.NewHTTPClient("vapi", timeout),
	}
}

// CallRequest carries everything needed to place one follow-up call. Scripts
// may contain {{customer_name}}, {{amount_due}}, {{invoice_number}},
// {{days_overdue}} and {{company_name}} placeholders.
type CallRequest struct {
	TenantID        string
	InvoiceID       string
	CustomerName    string
	PhoneNumber     string
	Amount          string
	InvoiceNumber   string
	DaysOverdue     int
	CompanyName     string
	GreetingScript  string
	VoicemailScript string
}

// CallStatus is the provider's view of a call.
type CallStatus struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	EndedReason string     `json:"endedReason"`
	StartedAt   *time.Time `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt"`
}

// DurationSeconds returns the call length, or zero while the call is live.
func (s *CallStatus) DurationSeconds() int {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	d := s.EndedAt.Sub(*s.StartedAt)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}

// Ended reports whether the provider considers the call finished.
func (s *CallStatus) Ended() bool {
	return s.Status == "ended"
}

type createCallRequest struct {
	PhoneNumberID string        `json:"phoneNumberId"`
	Customer      callCustomer  `json:"customer"`
	Assistant     callAssistant `json:"assistant"`
	Metadata      callMetadata  `json:"metadata"`
}

type callCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type callAssistant struct {
	FirstMessage     string         `json:"firstMessage"`
	VoicemailMessage string         `json:"voicemailMessage,omitempty"`
	Model            assistantModel `json:"model"`
}

type assistantModel struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Messages []assistantMessage `json:"messages"`
}

type assistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type callMetadata struct {
	TenantID  string `json:"tenant_id"`
	InvoiceID string `json:"invoice_id"`
}

type createCallResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InitiateCall places an outbound call and returns the provider call id.
func (c *Client) InitiateCall(ctx context.Context, req CallRequest) (string, error) {
	body := createCallRequest{
		PhoneNumberID: c.phoneNumberID,
		Customer: callCustomer{
			Number: req.PhoneNumber,
			Name:   req.CustomerName,
		},
		Assistant: callAssistant{
			FirstMessage:     interpolate(req.GreetingScript, req),
			VoicemailMessage: interpolate(req.VoicemailScript, req),
			Model: assistantModel{
				Provider: "openai",
				Model:    "gpt-4o-mini",
				Messages: []assistantMessage{
					{Role: "system", Content: interpolate(systemPrompt, req)},
				},
			},
		},
		Metadata: callMetadata{
			TenantID:  req.TenantID,
			InvoiceID: req.InvoiceID,
		},
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/call", body, c.authHeaders())
	if err != nil {
		return "", fmt.Errorf("vapi call request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read vapi response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("vapi API error: %s (status %d)", string(raw), resp.StatusCode)
	}

	var result createCallResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to parse vapi response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("vapi response missing call id")
	}
	return result.ID, nil
}

// GetCallStatus polls the provider for the current state of a call.
func (c *Client) GetCallStatus(ctx context.Context, callID string) (*CallStatus, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/call/"+callID, c.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("vapi status request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read vapi response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vapi API error: %s (status %d)", string(raw), resp.StatusCode)
	}

	var status CallStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to parse vapi response: %w", err)
	}
	return &status, nil
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func interpolate(script string, req CallRequest) string {
	if script == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{{customer_name}}", req.CustomerName,
		"{{amount_due}}", req.Amount,
		"{{invoice_number}}", req.InvoiceNumber,
		"{{days_overdue}}", strconv.Itoa(req.DaysOverdue),
		"{{company_name}}", req.CompanyName,
	)
	return r.Replace(script)
}

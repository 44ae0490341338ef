package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/recoverly/followup-agent/pkg/client"
)

// Sender delivers payment-link text messages through an HTTP SMS provider.
// Delivery is best effort; callers log failures and move on rather than
// failing the call that triggered the text.
type Sender struct {
	providerURL string
	token       string
	http        *client.HTTPClient
}

func NewSender(providerURL, token string, timeout time.Duration) *Sender {
	return &Sender{
		providerURL: providerURL,
		token:       token,
		http:        client.NewHTTPClient("sms", timeout),
	}
}

// Enabled reports whether a provider is configured at all.
func (s *Sender) Enabled() bool {
	return s.providerURL != ""
}

type message struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendPaymentLink texts the customer a link to settle the invoice.
func (s *Sender) SendPaymentLink(ctx context.Context, to, companyName, paymentLink string) error {
	if !s.Enabled() {
		return fmt.Errorf("sms provider not configured")
	}

	body := message{
		To:   to,
		Body: fmt.Sprintf("%s: you can pay your outstanding invoice here: %s", companyName, paymentLink),
	}
	headers := map[string]string{"Authorization": "Bearer " + s.token}

	resp, err := s.http.Post(ctx, s.providerURL, body, headers)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider error: status %d", resp.StatusCode)
	}
	return nil
}

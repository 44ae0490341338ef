package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/pkg/errors"
	"github.com/recoverly/followup-agent/pkg/vapi"
	"github.com/recoverly/followup-agent/pkg/webhook"
)

type vapiCall struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
	Metadata struct {
		TenantID  string `json:"tenantId"`
		InvoiceID string `json:"invoiceId"`
	} `json:"metadata"`
}

// The provider posts call-ended events as a top-level {type, call} body.
// Server-event configurations wrap the same event in a message envelope
// with an endedReason instead of a call status; both shapes are accepted.
type vapiWebhookPayload struct {
	Type string   `json:"type"`
	Call vapiCall `json:"call"`

	Message struct {
		Type            string     `json:"type"`
		EndedReason     string     `json:"endedReason"`
		Call            vapiCall   `json:"call"`
		StartedAt       *time.Time `json:"startedAt"`
		EndedAt         *time.Time `json:"endedAt"`
		DurationSeconds float64    `json:"durationSeconds"`
	} `json:"message"`
}

type vapiCallEvent struct {
	Type      string
	CallID    string
	RawStatus string
	Duration  int
	EndedAt   *time.Time
}

func (p *vapiWebhookPayload) event() vapiCallEvent {
	if p.Message.Type != "" {
		duration := int(p.Message.DurationSeconds)
		if duration == 0 && p.Message.StartedAt != nil && p.Message.EndedAt != nil {
			duration = int(p.Message.EndedAt.Sub(*p.Message.StartedAt).Seconds())
		}
		return vapiCallEvent{
			Type:      p.Message.Type,
			CallID:    p.Message.Call.ID,
			RawStatus: p.Message.EndedReason,
			Duration:  duration,
			EndedAt:   p.Message.EndedAt,
		}
	}
	return vapiCallEvent{
		Type:      p.Type,
		CallID:    p.Call.ID,
		RawStatus: p.Call.Status,
		Duration:  int(p.Call.Duration),
	}
}

// VapiWebhook handles end-of-call reports from the voice provider. The
// signature is verified against the raw body before anything is parsed.
func (h *Handler) VapiWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errors.BadRequest(c, "failed to read request body")
		return
	}

	// Verification fails closed in production; local development runs
	// without a provider secret, same policy as the cron trigger.
	if h.cfg.AppEnv != "development" {
		signature := c.GetHeader("x-vapi-signature")
		if err := webhook.VerifyVapiSignature(h.cfg.VapiWebhookSecret, rawBody, signature); err != nil {
			h.logger.Warn("Rejected webhook with bad signature", zap.Error(err))
			errors.Unauthorized(c, "invalid webhook signature")
			return
		}
	}

	var payload vapiWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		errors.BadRequest(c, "invalid webhook payload")
		return
	}

	event := payload.event()

	// Only end-of-call reports drive state. Everything else is acknowledged
	// and dropped so the provider stops retrying.
	switch event.Type {
	case "end-of-call-report", "call-ended", "call.ended":
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	callID := event.CallID
	if callID == "" {
		// Acknowledge so the provider does not retry an unprocessable event.
		h.logger.Warn("Webhook without call id")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := c.Request.Context()

	// Providers retry webhooks; suppress duplicates for 24h.
	dedupeKey := "webhook:vapi:" + callID
	set, err := h.redisClient.SetNX(ctx, dedupeKey, "1", 24*time.Hour).Result()
	if err != nil {
		h.logger.Warn("Webhook dedupe check failed, processing anyway", zap.Error(err))
	} else if !set {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	cl, err := h.store.CallLogs.GetByVapiCallID(ctx, callID)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if cl == nil {
		h.logger.Warn("Webhook for unknown call", zap.String("vapi_call_id", callID))
		c.JSON(http.StatusOK, gin.H{"status": "unknown_call"})
		return
	}

	now := time.Now()
	endedAt := now
	if event.EndedAt != nil {
		endedAt = *event.EndedAt
	}

	outcome := vapi.MapOutcome(event.RawStatus)

	if err := h.scheduler.ReconcileCall(ctx, cl, endedAt, event.Duration, outcome, now); err != nil {
		h.logger.Error("Failed to process webhook",
			zap.String("vapi_call_id", callID), zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	h.logger.Info("Webhook processed",
		zap.String("vapi_call_id", callID),
		zap.String("outcome", outcome),
		zap.Int("duration_seconds", event.Duration),
	)
	c.JSON(http.StatusOK, gin.H{"status": "processed", "outcome": outcome})
}

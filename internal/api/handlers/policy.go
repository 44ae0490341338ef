package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/pkg/audit"
	"github.com/recoverly/followup-agent/pkg/errors"
)

var validCallDays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

type PolicyRequest struct {
	CadenceDays     []int    `json:"cadence_days" binding:"required"`
	MaxAttempts     int      `json:"max_attempts" binding:"required"`
	CallWindowStart string   `json:"call_window_start"`
	CallWindowEnd   string   `json:"call_window_end"`
	CallDays        []string `json:"call_days" binding:"required"`
	GreetingScript  string   `json:"greeting_script"`
	VoicemailScript string   `json:"voicemail_script"`
	PaymentLink     string   `json:"payment_link"`
	SMSEnabled      bool     `json:"sms_enabled"`
}

func (h *Handler) GetPolicy(c *gin.Context) {
	tid := c.GetString("tenant_id")

	policy, err := h.store.Policies.GetByTenant(c.Request.Context(), tid)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if policy == nil {
		errors.NotFound(c, "no policy configured yet")
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (h *Handler) UpsertPolicy(c *gin.Context) {
	tid := c.GetString("tenant_id")

	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	if detail := validatePolicy(req); detail != "" {
		errors.BadRequest(c, detail)
		return
	}

	policy := &store.Policy{
		TenantID:        tid,
		CadenceDays:     req.CadenceDays,
		MaxAttempts:     req.MaxAttempts,
		CallWindowStart: req.CallWindowStart,
		CallWindowEnd:   req.CallWindowEnd,
		CallDays:        req.CallDays,
		GreetingScript:  req.GreetingScript,
		VoicemailScript: req.VoicemailScript,
		PaymentLink:     req.PaymentLink,
		SMSEnabled:      req.SMSEnabled,
		UpdatedAt:       time.Now(),
	}

	if err := h.store.Policies.Upsert(c.Request.Context(), policy); err != nil {
		h.logger.Error("Failed to save policy", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	audit.Log(h.mongoClient, tid, string(audit.ActionUpdate), "policy", tid, nil)
	c.JSON(http.StatusOK, policy)
}

func validatePolicy(req PolicyRequest) string {
	if len(req.CadenceDays) == 0 {
		return "cadence_days must not be empty"
	}
	prev := 0
	for _, d := range req.CadenceDays {
		if d < 1 {
			return "cadence_days must be positive"
		}
		if d <= prev {
			return "cadence_days must be strictly increasing"
		}
		prev = d
	}

	if req.MaxAttempts < 1 || req.MaxAttempts > 20 {
		return "max_attempts must be between 1 and 20"
	}

	if len(req.CallDays) == 0 {
		return "call_days must not be empty"
	}
	for _, d := range req.CallDays {
		if !validCallDays[d] {
			return "invalid call day: " + d
		}
	}

	// Window is optional, but must be valid and ordered when present.
	if (req.CallWindowStart == "") != (req.CallWindowEnd == "") {
		return "call_window_start and call_window_end must be set together"
	}
	if req.CallWindowStart != "" {
		start, err := time.Parse("15:04", req.CallWindowStart)
		if err != nil {
			return "call_window_start must be HH:MM"
		}
		end, err := time.Parse("15:04", req.CallWindowEnd)
		if err != nil {
			return "call_window_end must be HH:MM"
		}
		if !start.Before(end) {
			return "call_window_start must be before call_window_end"
		}
	}

	if req.PaymentLink != "" {
		u, err := url.Parse(req.PaymentLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "payment_link must be a valid http(s) URL"
		}
	}

	return ""
}

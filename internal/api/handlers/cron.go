package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/pkg/audit"
	"github.com/recoverly/followup-agent/pkg/errors"
)

// TriggerScheduler runs one scheduling pass on demand. Meant for external
// cron services; authenticated with a bearer secret. The check is skipped
// in development so local runs do not need the secret.
func (h *Handler) TriggerScheduler(c *gin.Context) {
	if h.cfg.AppEnv != "development" {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if h.cfg.CronSecret == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.CronSecret)) != 1 {
			errors.Unauthorized(c, "invalid cron secret")
			return
		}
	}

	result, err := h.scheduler.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Scheduler run failed", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	audit.Log(h.mongoClient, "", string(audit.ActionTrigger), "scheduler", "", map[string]interface{}{
		"calls_initiated":  result.CallsInitiated,
		"calls_skipped":    result.CallsSkipped,
		"calls_reconciled": result.CallsReconciled,
	})

	c.JSON(http.StatusOK, gin.H{
		"calls_initiated":  result.CallsInitiated,
		"calls_skipped":    result.CallsSkipped,
		"calls_reconciled": result.CallsReconciled,
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

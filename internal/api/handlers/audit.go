package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/pkg/errors"
	"github.com/recoverly/followup-agent/pkg/utils"
)

// ListAuditLogs returns the tenant's audit trail, newest first. Defaults
// to the last 30 days unless a since parameter is given.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	tid := c.GetString("tenant_id")
	params := utils.ParsePagination(c)

	since := time.Now().AddDate(0, 0, -30)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			errors.BadRequest(c, "since must be YYYY-MM-DD")
			return
		}
		since = parsed
	}

	q := h.mongoClient.NewQuery("audit_log").
		Eq("tenant_id", tid).
		Gte("created_at", since.Format(time.RFC3339)).
		Sort("created_at", false).
		Limit(int64(params.Limit)).
		Skip(int64((params.Page - 1) * params.Limit))

	if action := c.Query("action"); action != "" {
		q = q.Eq("action", action)
	}
	if resourceType := c.Query("resource_type"); resourceType != "" {
		q = q.Eq("resource_type", resourceType)
	}

	logs, err := q.Find(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list audit logs", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}
	if logs == nil {
		logs = []map[string]interface{}{}
	}

	c.JSON(http.StatusOK, utils.PaginatedResponse{
		Data:  logs,
		Page:  params.Page,
		Limit: params.Limit,
		Count: len(logs),
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/followup-agent/pkg/errors"
)

func (h *Handler) GetUsage(c *gin.Context) {
	tid := c.GetString("tenant_id")

	status, err := h.tracker.GetStatus(c.Request.Context(), tid, time.Now())
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, status)
}

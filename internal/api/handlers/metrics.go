package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recoverly/followup-agent/pkg/metrics"
)

// GetMetrics returns the in-process counters as JSON.
func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.GetMetrics())
}

// GetPrometheusMetrics renders the same counters in Prometheus text format.
func (h *Handler) GetPrometheusMetrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(metrics.GetPrometheusMetrics()))
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/recoverly/followup-agent/pkg/errors"
)

// ValidateIDParam ensures the named path parameter is a UUID before the
// handler touches the database.
func ValidateIDParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param(param)
		if _, err := uuid.Parse(id); err != nil {
			errors.BadRequest(c, "invalid "+param+": must be a UUID")
			c.Abort()
			return
		}
		c.Next()
	}
}

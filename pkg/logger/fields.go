package logger

import (
	"go.uber.org/zap"
)

// TenantID is the standard field for tenant-scoped log lines.
func TenantID(id string) zap.Field {
	return zap.String("tenant_id", id)
}

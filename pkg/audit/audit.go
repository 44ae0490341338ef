package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/pkg/logger"
	"github.com/recoverly/followup-agent/pkg/mongo"
)

// Action represents an audit action
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionImport    Action = "import"
	ActionDeleteAll Action = "delete_all"
	ActionLogin     Action = "login"
	ActionLogout    Action = "logout"
	ActionRegister  Action = "register"
	ActionTrigger   Action = "trigger"
)

// Log logs an audit event
func Log(client *mongo.Client, tenantID, action, resourceType, resourceID string, metadata map[string]interface{}) error {
	log := logger.Log
	if log == nil {
		log = zap.NewNop()
	}
	if client == nil {
		log.Warn("Audit logging skipped: MongoDB client not available")
		return nil
	}

	metadataJSON, _ := json.Marshal(metadata)

	auditData := map[string]interface{}{
		"tenant_id":     tenantID,
		"action":        action,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"metadata":      string(metadataJSON),
		"created_at":    time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.NewQuery("audit_log").Insert(ctx, auditData)
	if err != nil {
		log.Error("Failed to log audit event",
			zap.Error(err),
			zap.String("action", action),
			zap.String("resource_type", resourceType),
		)
		return err
	}

	return nil
}

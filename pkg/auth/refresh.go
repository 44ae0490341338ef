package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/recoverly/followup-agent/pkg/mongo"
)

const refreshOpTimeout = 5 * time.Second

// StoreRefreshToken persists the hash of a freshly issued refresh token.
// The plaintext token never touches the database.
func StoreRefreshToken(client *mongo.Client, tenantID, token string, expiresInDays int) error {
	expiresAt := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour)

	doc := map[string]interface{}{
		"tenant_id":    tenantID,
		"token_hash":   hashToken(token),
		"expires_at":   expiresAt.Format(time.RFC3339),
		"revoked_at":   nil,
		"last_used_at": nil,
		"created_at":   time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshOpTimeout)
	defer cancel()

	_, err := client.NewQuery("refresh_tokens").Insert(ctx, doc)
	return err
}

// VerifyRefreshToken resolves a presented token to its tenant, rejecting
// revoked and expired tokens, and stamps last_used_at.
func VerifyRefreshToken(client *mongo.Client, token string) (string, error) {
	tokenHash := hashToken(token)

	ctx, cancel := context.WithTimeout(context.Background(), refreshOpTimeout)
	defer cancel()

	row, err := client.NewQuery("refresh_tokens").
		Select("tenant_id", "expires_at", "revoked_at").
		Eq("token_hash", tokenHash).
		FindOne(ctx)
	if err != nil || row == nil {
		return "", fmt.Errorf("refresh token not found")
	}

	if revokedAt, ok := row["revoked_at"].(string); ok && revokedAt != "" {
		return "", fmt.Errorf("refresh token has been revoked")
	}

	expiresAtStr, _ := row["expires_at"].(string)
	expiresAt, err := time.Parse(time.RFC3339, expiresAtStr)
	if err != nil || time.Now().After(expiresAt) {
		return "", fmt.Errorf("refresh token has expired")
	}

	tenantID, _ := row["tenant_id"].(string)

	client.NewQuery("refresh_tokens").
		Eq("token_hash", tokenHash).
		UpdateOne(ctx, map[string]interface{}{
			"last_used_at": time.Now().Format(time.RFC3339),
		})

	return tenantID, nil
}

// RevokeRefreshToken marks one token revoked, used on logout and rotation.
func RevokeRefreshToken(client *mongo.Client, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshOpTimeout)
	defer cancel()

	_, err := client.NewQuery("refresh_tokens").
		Eq("token_hash", hashToken(token)).
		UpdateOne(ctx, map[string]interface{}{
			"revoked_at": time.Now().Format(time.RFC3339),
		})
	return err
}

// RevokeAllTenantTokens revokes every live token for a tenant, used when
// the account is deactivated.
func RevokeAllTenantTokens(client *mongo.Client, tenantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshOpTimeout)
	defer cancel()

	_, err := client.NewQuery("refresh_tokens").
		Eq("tenant_id", tenantID).
		IsNull("revoked_at").
		Update(ctx, map[string]interface{}{
			"revoked_at": time.Now().Format(time.RFC3339),
		})
	return err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

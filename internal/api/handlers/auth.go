package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recoverly/followup-agent/internal/store"
	"github.com/recoverly/followup-agent/pkg/audit"
	"github.com/recoverly/followup-agent/pkg/auth"
	"github.com/recoverly/followup-agent/pkg/errors"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	CompanyName string `json:"company_name" binding:"required"`
	Timezone    string `json:"timezone"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthResponse struct {
	auth.TokenPair
	Tenant TenantInfo `json:"tenant"`
}

type TenantInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	Role        string `json:"role"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	tenant, err := h.store.Tenants.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("Failed to look up tenant", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}
	if tenant == nil {
		errors.Unauthorized(c, "invalid credentials")
		return
	}
	if !tenant.IsActive {
		errors.Forbidden(c, "account is inactive")
		return
	}

	// Verify password with bcrypt
	if err := auth.VerifyPassword(tenant.PasswordHash, req.Password); err != nil {
		errors.Unauthorized(c, "invalid credentials")
		return
	}

	resp, err := h.issueTokens(c, tenant)
	if err != nil {
		return
	}

	if err := h.store.Tenants.UpdateLastLogin(c.Request.Context(), tenant.ID, time.Now()); err != nil {
		h.logger.Warn("Failed to update last login", zap.Error(err))
	}
	audit.Log(h.mongoClient, tenant.ID, string(audit.ActionLogin), "tenant", tenant.ID, nil)

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Register(c *gin.Context) {
	// Check if self-registration is allowed
	if !h.cfg.AllowSelfRegister {
		errors.Forbidden(c, "self-registration is disabled")
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	if req.Timezone == "" {
		req.Timezone = h.cfg.TZ
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		errors.BadRequest(c, "invalid timezone")
		return
	}

	existing, err := h.store.Tenants.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if existing != nil {
		errors.Conflict(c, "email already registered")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	tenant := &store.Tenant{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		CompanyName:  req.CompanyName,
		Timezone:     req.Timezone,
		Role:         store.RoleTenant,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := h.store.Tenants.Create(c.Request.Context(), tenant); err != nil {
		h.logger.Error("Failed to create tenant", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return
	}

	resp, err := h.issueTokens(c, tenant)
	if err != nil {
		return
	}

	audit.Log(h.mongoClient, tenant.ID, string(audit.ActionRegister), "tenant", tenant.ID, map[string]interface{}{
		"company_name": tenant.CompanyName,
	})

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}

	// Verify refresh token
	tid, err := auth.VerifyRefreshToken(h.mongoClient, req.RefreshToken)
	if err != nil {
		errors.Unauthorized(c, "invalid or expired refresh token")
		return
	}

	tenant, err := h.store.Tenants.GetByID(c.Request.Context(), tid)
	if err != nil || tenant == nil {
		errors.Unauthorized(c, "tenant not found")
		return
	}
	if !tenant.IsActive {
		errors.Forbidden(c, "account is inactive")
		return
	}

	// Rotate: revoke the old token before issuing a new pair
	_ = auth.RevokeRefreshToken(h.mongoClient, req.RefreshToken)

	resp, err := h.issueTokens(c, tenant)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		_ = auth.RevokeRefreshToken(h.mongoClient, req.RefreshToken)
	}

	tid := c.GetString("tenant_id")
	if tid != "" {
		_ = auth.RevokeAllTenantTokens(h.mongoClient, tid)
		audit.Log(h.mongoClient, tid, string(audit.ActionLogout), "tenant", tid, nil)
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// issueTokens generates and stores the token pair. It writes the error
// response itself; callers bail out on error.
func (h *Handler) issueTokens(c *gin.Context, tenant *store.Tenant) (*AuthResponse, error) {
	accessToken, expiresAt, err := auth.GenerateAccessToken(
		tenant.ID,
		tenant.Email,
		tenant.Role,
		h.cfg.JWTSecret,
		h.cfg.JWTIssuer,
		h.cfg.JWTAudience,
		h.cfg.AccessTTLMin,
	)
	if err != nil {
		h.logger.Error("Failed to generate access token", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return nil, err
	}

	refreshToken, err := auth.GenerateRefreshToken()
	if err != nil {
		h.logger.Error("Failed to generate refresh token", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return nil, err
	}

	if err := auth.StoreRefreshToken(h.mongoClient, tenant.ID, refreshToken, h.cfg.RefreshTTLDays); err != nil {
		h.logger.Error("Failed to store refresh token", zap.Error(err))
		errors.InternalError(c, err, h.logger)
		return nil, err
	}

	return &AuthResponse{
		TokenPair: auth.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
		},
		Tenant: TenantInfo{
			ID:          tenant.ID,
			Email:       tenant.Email,
			CompanyName: tenant.CompanyName,
			Role:        tenant.Role,
		},
	}, nil
}

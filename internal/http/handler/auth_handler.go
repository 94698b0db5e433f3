package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VanHoang0612/Mochi-Chat/internal/config"
	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
	"github.com/VanHoang0612/Mochi-Chat/internal/http/middleware"
	"github.com/VanHoang0612/Mochi-Chat/internal/service"
)

const refreshCookieName = "refreshToken"

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Cfg  config.Config
}

// NewAuthHandler builds the handler with its dependencies.
func NewAuthHandler(auth *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg}
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondValidation(c, "Username and password are required")
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	result.RefreshToken = ""

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Login successful", Data: result})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, ok := h.refreshToken(c)
	if !ok {
		respondError(c, domain.ErrRefreshTokenInvalid)
		return
	}

	result, err := h.Auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Token refreshed", Data: result})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := h.refreshToken(c)
	if !ok {
		respondError(c, domain.ErrRefreshTokenInvalid)
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), raw); err != nil {
		respondError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Logout successful"})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondValidation(c, "Username, email and password are required")
		return
	}

	err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, apiResponse{Success: true, Message: "Registration successful, please verify your email"})
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		respondValidation(c, "Email and code are required")
		return
	}

	if err := h.Auth.VerifyEmail(c.Request.Context(), normalizeEmail(req.Email), strings.TrimSpace(req.Code)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Email verified"})
}

func (h *AuthHandler) ResendCode(c *gin.Context) {
	email, ok := bindEmail(c)
	if !ok {
		return
	}

	if err := h.Auth.ResendCode(c.Request.Context(), email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Verification code sent"})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	email, ok := bindEmail(c)
	if !ok {
		return
	}

	if err := h.Auth.ForgotPassword(c.Request.Context(), email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Password reset code sent"})
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" {
		respondValidation(c, "Email and otp are required")
		return
	}

	result, err := h.Auth.VerifyOTP(c.Request.Context(), normalizeEmail(req.Email), strings.TrimSpace(req.OTP))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Code verified", Data: result})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		ResetToken  string `json:"resetToken"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.ResetToken) == "" || req.NewPassword == "" {
		respondValidation(c, "Reset token and new password are required")
		return
	}

	if err := h.Auth.ResetPassword(c.Request.Context(), strings.TrimSpace(req.ResetToken), req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Password reset successful"})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		respondError(c, domain.ErrAccessTokenInvalid)
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		respondValidation(c, "Old and new passwords are required")
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "Password changed"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		respondError(c, domain.ErrAccessTokenInvalid)
		return
	}

	profile, err := h.Auth.Profile(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "OK", Data: profile})
}

// refreshToken reads the refresh token from the httpOnly cookie, falling back
// to the request body for clients that do not keep cookies.
func (h *AuthHandler) refreshToken(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie, true
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return "", false
	}
	return req.RefreshToken, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, value, int(h.Cfg.RefreshTokenTTL.Seconds()), "/auth", "", h.secureCookies(), true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, "/auth", "", h.secureCookies(), true)
}

func (h *AuthHandler) secureCookies() bool {
	return h.Cfg.Environment == "production"
}

func bindEmail(c *gin.Context) (string, bool) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return "", false
	}
	if strings.TrimSpace(req.Email) == "" {
		respondValidation(c, "Email is required")
		return "", false
	}
	return normalizeEmail(req.Email), true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func respondInvalidPayload(c *gin.Context) {
	c.JSON(http.StatusBadRequest, apiResponse{
		Success: false,
		Message: "Invalid payload",
		Errors:  gin.H{"code": domain.ErrValidationFailed.Code},
	})
}

func respondValidation(c *gin.Context, message string) {
	c.JSON(domain.ErrValidationFailed.Status, apiResponse{
		Success: false,
		Message: message,
		Errors:  gin.H{"code": domain.ErrValidationFailed.Code},
	})
}

func respondError(c *gin.Context, err error) {
	appErr := domain.AsAppError(err)
	errors := gin.H{"code": appErr.Code}
	if len(appErr.Details) > 0 {
		errors["details"] = appErr.Details
	}
	c.JSON(appErr.Status, apiResponse{
		Success: false,
		Message: appErr.Message,
		Errors:  errors,
	})
}

package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"secure-ehr-gateway/internal/config"
	"secure-ehr-gateway/internal/credential"
	"secure-ehr-gateway/internal/middleware"
	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Credentials *credential.Manager
	Cfg         *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(credentials *credential.Manager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Credentials: credentials, Cfg: cfg}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=H R"`
}

// Register handles user registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return // Error response handled by BindAndValidate
	}

	account, err := h.Credentials.Register(c.Request.Context(), req.Username, req.Password, models.Role(req.Role))
	if err != nil {
		if errors.Is(err, credential.ErrDuplicateUser) {
			utils.BadRequest(c, "Account with this username already exists")
			return
		}
		utils.InternalServerError(c, "Failed to register account: "+err.Error())
		return
	}

	utils.Created(c, "Account registered successfully", account.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken string                  `json:"accessToken"`
	Account     models.AccountSanitized `json:"account"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	account, err := h.Credentials.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		// The same response covers unknown usernames and wrong passwords.
		if errors.Is(err, credential.ErrInvalidCredentials) {
			utils.Unauthorized(c, "Invalid username or password")
			return
		}
		utils.InternalServerError(c, "Failed to authenticate: "+err.Error())
		return
	}

	accessToken, err := utils.GenerateToken(account, h.Cfg)
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	utils.Success(c, "Login successful", LoginResponse{
		AccessToken: accessToken,
		Account:     account.Sanitize(),
	})
}

// RotatePasswordRequest represents the request body for password rotation.
type RotatePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// RotatePassword replaces the caller's password verifier.
func (h *AuthHandler) RotatePassword(c *gin.Context) {
	sess, ok := middleware.GetSessionFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req RotatePasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	err := h.Credentials.RotatePassword(c.Request.Context(), sess.Username, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidCredentials) {
			utils.Unauthorized(c, "Invalid username or password")
			return
		}
		utils.InternalServerError(c, "Failed to rotate password: "+err.Error())
		return
	}

	utils.Success(c, "Password rotated successfully", nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-telematics-sync/internal/config"
	appErrors "fleet-telematics-sync/pkg/errors"
	"fleet-telematics-sync/pkg/utils"
)

// AuthHandler issues admin tokens against the statically configured
// admin credentials.
type AuthHandler struct {
	cfg *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, appErrors.NewAppError("VALIDATION_ERROR", "Invalid request body", err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		respondWithError(c, appErrors.NewAppError("VALIDATION_ERROR", "Username and password are required", err))
		return
	}

	admin := h.cfg.Admin
	if req.Username != admin.Username || !utils.CheckPassword(admin.PasswordHash, req.Password) {
		respondWithError(c, appErrors.ErrInvalidCredentials)
		return
	}

	token, err := utils.GenerateToken(req.Username, admin.JWTSecret, admin.TokenExpiry)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
}

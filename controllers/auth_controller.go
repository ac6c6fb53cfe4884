package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// AuthController handles registration, login and token refresh.
type AuthController struct {
	authService services.AuthService
}

// NewAuthController creates a new AuthController.
func NewAuthController(authService services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register handles POST /auth/register.
func (ac *AuthController) Register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, tokens, svcErr := ac.authService.Register(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": user, "tokens": tokens})
}

// Login handles POST /auth/login.
func (ac *AuthController) Login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, tokens, svcErr := ac.authService.Login(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// Refresh handles POST /auth/refresh.
func (ac *AuthController) Refresh(ctx *gin.Context) {
	var req models.RefreshRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	tokens, svcErr := ac.authService.Refresh(ctx.Request.Context(), req.RefreshToken)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Me handles GET /auth/me.
func (ac *AuthController) Me(ctx *gin.Context) {
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, svcErr := ac.authService.GetMe(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

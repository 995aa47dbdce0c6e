package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AmanCH3/hamro-grocery-backend/middleware"
	"github.com/AmanCH3/hamro-grocery-backend/models"
	"github.com/AmanCH3/hamro-grocery-backend/services"
)

type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*services.AuthResult, *services.ServiceError)
	Login(ctx context.Context, req *models.LoginRequest) (*services.AuthResult, *services.ServiceError)
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, *services.ServiceError)
}

type AuthController struct {
	authService AuthService
}

func NewAuthController(authService AuthService) *AuthController {
	return &AuthController{authService: authService}
}

func (ac *AuthController) Register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, svcErr := ac.authService.Register(ctx.Request.Context(), &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"success": true, "message": "User registered successfully", "token": result.Token, "data": result.User})
}

func (ac *AuthController) Login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, svcErr := ac.authService.Login(ctx.Request.Context(), &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful", "token": result.Token, "data": result.User})
}

// Profile returns the caller, including the current points balance.
func (ac *AuthController) Profile(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		respondMessage(ctx, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, svcErr := ac.authService.Profile(ctx.Request.Context(), userID)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

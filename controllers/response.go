package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AmanCH3/hamro-grocery-backend/services"
)

func respondError(ctx *gin.Context, svcErr *services.ServiceError) {
	ctx.JSON(svcErr.StatusCode, gin.H{"success": false, "message": svcErr.Message})
}

func respondMessage(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"success": false, "message": message})
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const (
		maxLimit     = 100
		defaultPage  = 1
		defaultLimit = 10
	)

	page, limit := defaultPage, defaultLimit
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limit = min(l, maxLimit)
	}
	return page, limit
}

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

// OrderService is the order behaviour the HTTP layer depends on.
type OrderService interface {
	StageOrder(ctx context.Context, userID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, *services.ServiceError)
	GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*services.OrderResponse, *services.ServiceError)
	GetAllOrders(ctx context.Context, page, limit int) (*services.OrderResponse, *services.ServiceError)
	GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, *services.ServiceError)
	FulfilOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, *services.ServiceError)
}

type OrderController struct {
	orderService OrderService
}

func NewOrderController(orderService OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrder stages the caller's cart as an order awaiting payment.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		respondMessage(ctx, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	order, svcErr := oc.orderService.StageOrder(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "message": "Order created, awaiting payment.", "order": order})
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		respondMessage(ctx, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, limit := parsePaginationParams(ctx)
	result, svcErr := oc.orderService.GetUserOrders(ctx.Request.Context(), userID, page, limit)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order for the authenticated user
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		respondMessage(ctx, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, svcErr := oc.orderService.GetOrderByID(ctx.Request.Context(), userID, orderID)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// GetAllOrders returns paginated orders for all users (admin only)
func (oc *OrderController) GetAllOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	result, svcErr := oc.orderService.GetAllOrders(ctx.Request.Context(), page, limit)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// FulfilOrder marks a processing order as delivered (admin only).
func (oc *OrderController) FulfilOrder(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, svcErr := oc.orderService.FulfilOrder(ctx.Request.Context(), orderID)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

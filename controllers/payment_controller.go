package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AmanCH3/hamro-grocery-backend/middleware"
	"github.com/AmanCH3/hamro-grocery-backend/models"
	"github.com/AmanCH3/hamro-grocery-backend/services"
)

// PaymentService is the payment behaviour the HTTP layer depends on.
type PaymentService interface {
	InitiatePayment(ctx context.Context, userID uuid.UUID, req *models.InitiatePaymentRequest) (*services.InitiateResult, *services.ServiceError)
	SettlePayment(ctx context.Context, transactionRef string) (*services.SettlementResult, *services.ServiceError)
}

type PaymentController struct {
	paymentService PaymentService
	frontendURL    string
}

func NewPaymentController(paymentService PaymentService, frontendURL string) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		frontendURL:    strings.TrimSuffix(frontendURL, "/"),
	}
}

// InitiatePayment opens a gateway session for one of the caller's orders.
func (pc *PaymentController) InitiatePayment(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		respondMessage(ctx, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.InitiatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, svcErr := pc.paymentService.InitiatePayment(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Payment initiated successfully.",
		"orderId":       result.OrderID,
		"paymentMethod": result.PaymentMethod,
		"pidx":          result.Pidx,
		"payment_url":   result.PaymentURL,
	})
}

// VerifyPayment settles a payment for API clients and answers with JSON.
// Anyone holding the pidx may trigger settlement, but the order itself is
// only returned to its customer.
func (pc *PaymentController) VerifyPayment(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		respondMessage(ctx, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.VerifyPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondMessage(ctx, http.StatusBadRequest, "Payment identifier missing.")
		return
	}

	result, svcErr := pc.paymentService.SettlePayment(ctx.Request.Context(), req.Pidx)
	if svcErr != nil {
		respondError(ctx, svcErr)
		return
	}

	body := gin.H{
		"success":        true,
		"alreadySettled": result.AlreadySettled,
		"message":        result.Message,
	}
	if result.Order != nil && result.Order.CustomerID == userID {
		body["order"] = result.Order
		body["pointsAwarded"] = result.PointsAwarded
	}
	ctx.JSON(http.StatusOK, body)
}

// VerifyRedirect is the gateway return URL. Whatever status the query
// claims is ignored; the outcome comes from the server-side lookup and the
// browser is sent to the matching storefront page.
func (pc *PaymentController) VerifyRedirect(ctx *gin.Context) {
	pidx := ctx.Query("pidx")
	if pidx == "" {
		ctx.Redirect(http.StatusFound, pc.failureURL("Payment identifier missing."))
		return
	}

	result, svcErr := pc.paymentService.SettlePayment(ctx.Request.Context(), pidx)
	if svcErr != nil {
		ctx.Redirect(http.StatusFound, pc.failureURL(svcErr.Message))
		return
	}
	ctx.Redirect(http.StatusFound, pc.frontendURL+"/payment-success?message="+url.QueryEscape(result.Message))
}

func (pc *PaymentController) failureURL(message string) string {
	return pc.frontendURL + "/checkout?payment=failure&message=" + url.QueryEscape(message)
}

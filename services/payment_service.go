package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmanCH3/hamro-grocery-backend/events"
	"github.com/AmanCH3/hamro-grocery-backend/models"
	awspkg "github.com/AmanCH3/hamro-grocery-backend/pkg/aws"
	"github.com/AmanCH3/hamro-grocery-backend/pkg/logger"
	"github.com/AmanCH3/hamro-grocery-backend/providers"
	"github.com/AmanCH3/hamro-grocery-backend/repository"
)

const (
	msgPaymentSuccess   = "Payment successful! Your order has been placed."
	msgDiscountApplied  = "A 25% discount was applied."
	msgAlreadyConfirmed = "Your order has already been confirmed."
)

// InitiateResult is returned to the client after a successful handoff.
type InitiateResult struct {
	OrderID       string `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentURL    string `json:"payment_url"`
	Pidx          string `json:"pidx"`
}

// SettlementResult describes a successful settlement. AlreadySettled is set
// when the order had been settled by an earlier call and nothing changed.
type SettlementResult struct {
	Order          *models.Order `json:"order"`
	AlreadySettled bool          `json:"alreadySettled"`
	PointsAwarded  int           `json:"pointsAwarded"`
	Message        string        `json:"message"`
}

type PaymentService struct {
	orderRepo  repository.OrderRepository
	userRepo   repository.UserRepository
	notifyRepo repository.NotificationRepository
	gateways   providers.Registry
	roller     PointsRoller
	publisher  events.Publisher
	metrics    awspkg.MetricsRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewPaymentService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	notifyRepo repository.NotificationRepository,
	gateways providers.Registry,
	roller PointsRoller,
	publisher events.Publisher,
	metrics awspkg.MetricsRecorder,
	logger *zap.Logger,
) *PaymentService {
	if notifyRepo == nil {
		notifyRepo = repository.NoopNotificationRepository{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &PaymentService{
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		notifyRepo: notifyRepo,
		gateways:   gateways,
		roller:     roller,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// InitiatePayment opens a gateway session for a staged order and records
// the gateway's reference on it. An order that already has a session is
// checked with the gateway first: a live session is handed back as is, a
// completed one is settled, and only a failed or expired one is replaced.
func (s *PaymentService) InitiatePayment(ctx context.Context, userID uuid.UUID, req *models.InitiatePaymentRequest) (*InitiateResult, *ServiceError) {
	log := logger.For(ctx, s.logger)

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = models.PaymentMethodKhalti
	}
	gateway, err := s.gateways.Get(method)
	if err != nil {
		return nil, validationError(fmt.Sprintf("Unsupported payment method %q", req.PaymentMethod))
	}

	order, err := s.orderRepo.FindByIDAndUserID(ctx, req.OrderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(http.StatusNotFound, "Order not found", ErrOrderNotFound)
		}
		log.Error("Failed to load order for payment", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		return nil, internalError("Failed to initiate payment")
	}
	if order.Status != models.StatusPendingPayment {
		return nil, newError(http.StatusConflict,
			fmt.Sprintf("Order is %s and cannot be paid.", order.Status), ErrOrderNotPayable)
	}

	if order.TransactionRef != nil {
		if result, svcErr := s.resumeHandoff(ctx, log, order); result != nil || svcErr != nil {
			return result, svcErr
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Error("Failed to load customer for payment", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, internalError("Failed to initiate payment")
	}

	orderID := order.ID.String()
	start := s.now()
	session, err := gateway.Initiate(ctx, providers.InitiateRequest{
		OrderID:     orderID,
		OrderName:   "Order from Hamro Grocery #" + orderID[len(orderID)-6:],
		AmountMinor: order.AmountMinorUnits(),
		Customer: providers.Customer{
			Name:  user.FullName,
			Email: user.Email,
			Phone: order.Phone,
		},
	})
	s.recordGatewayLatency(ctx, method, "initiate", start)
	if err != nil {
		log.Error("Payment initiation failed",
			zap.String("order_id", orderID),
			zap.String("payment_method", method),
			zap.Error(err),
		)
		return nil, newError(http.StatusBadGateway, "Payment gateway is unavailable, please try again.", ErrGateway)
	}

	err = s.orderRepo.SetTransactionRef(ctx, order.ID, order.TransactionRef, repository.Handoff{
		PaymentMethod:  method,
		TransactionRef: session.TransactionRef,
		PaymentURL:     session.PaymentURL,
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrOrderNotPending):
		return nil, newError(http.StatusConflict, "Order is no longer awaiting payment.", ErrOrderNotPayable)
	case errors.Is(err, repository.ErrHandoffChanged):
		log.Info("Concurrent handoff won, returning its session", zap.String("order_id", orderID))
		return s.currentHandoff(ctx, log, order.ID)
	default:
		log.Error("Failed to store transaction reference", zap.String("order_id", orderID), zap.Error(err))
		return nil, internalError("Failed to initiate payment")
	}

	log.Info("Payment initiated",
		zap.String("order_id", orderID),
		zap.String("payment_method", method),
		zap.String("pidx", session.TransactionRef),
		zap.Int64("amount_minor", order.AmountMinorUnits()),
	)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentInitiated, map[string]string{"Method": method})

	return &InitiateResult{
		OrderID:       orderID,
		PaymentMethod: method,
		PaymentURL:    session.PaymentURL,
		Pidx:          session.TransactionRef,
	}, nil
}

// resumeHandoff decides what to do with the session already recorded on
// order. Both return values are nil when that session is dead and a new one
// may replace it.
func (s *PaymentService) resumeHandoff(ctx context.Context, log *zap.Logger, order *models.Order) (*InitiateResult, *ServiceError) {
	ref := *order.TransactionRef
	log = log.With(zap.String("order_id", order.ID.String()), zap.String("previous_pidx", ref))

	gateway, err := s.gateways.Get(order.PaymentMethod)
	if err != nil {
		log.Error("No gateway for previous payment session", zap.String("payment_method", order.PaymentMethod))
		return nil, internalError("Failed to initiate payment")
	}

	start := s.now()
	lookup, err := gateway.Lookup(ctx, ref)
	s.recordGatewayLatency(ctx, order.PaymentMethod, "lookup", start)
	if err != nil {
		log.Error("Could not check previous payment session", zap.Error(err))
		return nil, newError(http.StatusBadGateway, "Payment gateway is unavailable, please try again.", ErrGateway)
	}

	switch lookup.Status {
	case providers.StatusCompleted:
		log.Info("Previous payment session already completed, settling it")
		if _, svcErr := s.SettlePayment(ctx, ref); svcErr != nil {
			return nil, svcErr
		}
		return nil, newError(http.StatusConflict, "Payment for this order has already been received.", ErrOrderNotPayable)
	case providers.StatusPending:
		if order.PaymentURL == "" {
			return nil, newError(http.StatusConflict,
				"A payment for this order is already in progress. Please try again shortly.", ErrPaymentPending)
		}
		log.Info("Returning live payment session", zap.String("gateway_status", lookup.GatewayStatus))
		return &InitiateResult{
			OrderID:       order.ID.String(),
			PaymentMethod: order.PaymentMethod,
			PaymentURL:    order.PaymentURL,
			Pidx:          ref,
		}, nil
	case providers.StatusFailed:
		log.Info("Previous payment session ended, opening a new one", zap.String("gateway_status", lookup.GatewayStatus))
		return nil, nil
	}

	log.Error("Unrecognised gateway status for previous payment session", zap.String("gateway_status", lookup.GatewayStatus))
	return nil, newError(http.StatusBadGateway, "Could not verify the previous payment, please try again.", ErrGateway)
}

// currentHandoff reports the session stored on the order by whichever
// handoff committed last.
func (s *PaymentService) currentHandoff(ctx context.Context, log *zap.Logger, orderID uuid.UUID) (*InitiateResult, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		log.Error("Failed to reload order after concurrent handoff", zap.Error(err))
		return nil, internalError("Failed to initiate payment")
	}
	if order.Status != models.StatusPendingPayment || order.TransactionRef == nil {
		return nil, newError(http.StatusConflict, "Order is no longer awaiting payment.", ErrOrderNotPayable)
	}
	return &InitiateResult{
		OrderID:       order.ID.String(),
		PaymentMethod: order.PaymentMethod,
		PaymentURL:    order.PaymentURL,
		Pidx:          *order.TransactionRef,
	}, nil
}

// SettlePayment finalises the order behind a gateway transaction reference.
// The gateway is always asked server-to-server; nothing the client says
// about the outcome is trusted. Repeated calls for a settled order report
// AlreadySettled and change nothing.
func (s *PaymentService) SettlePayment(ctx context.Context, transactionRef string) (*SettlementResult, *ServiceError) {
	log := logger.For(ctx, s.logger).With(zap.String("pidx", transactionRef))

	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, validationError("Payment identifier missing.")
	}

	order, err := s.orderRepo.FindByTransactionRef(ctx, transactionRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(http.StatusNotFound, "Order not found for this transaction.", ErrOrderNotFound)
		}
		log.Error("Failed to load order for settlement", zap.Error(err))
		return nil, internalError("An internal server error occurred during verification.")
	}
	log = log.With(zap.String("order_id", order.ID.String()))

	if result, svcErr := outcomeForStatus(order); result != nil || svcErr != nil {
		return result, svcErr
	}

	gateway, err := s.gateways.Get(order.PaymentMethod)
	if err != nil {
		log.Error("No gateway for order payment method", zap.String("payment_method", order.PaymentMethod))
		return nil, internalError("An internal server error occurred during verification.")
	}

	start := s.now()
	lookup, err := gateway.Lookup(ctx, transactionRef)
	s.recordGatewayLatency(ctx, order.PaymentMethod, "lookup", start)
	if err != nil {
		log.Error("Payment lookup failed", zap.Error(err))
		return nil, newError(http.StatusBadGateway, "Could not verify payment with the gateway, please try again.", ErrGateway)
	}

	switch lookup.Status {
	case providers.StatusPending:
		log.Info("Payment not yet completed", zap.String("gateway_status", lookup.GatewayStatus))
		return nil, newError(http.StatusConflict,
			fmt.Sprintf("Payment is still %s. Please try again shortly.", lookup.GatewayStatus), ErrPaymentPending)
	case providers.StatusFailed:
		return s.release(ctx, log, order, lookup)
	}

	if expected := order.AmountMinorUnits(); lookup.PaidMinor != expected {
		return s.dispute(ctx, log, order, lookup, expected)
	}

	return s.apply(ctx, log, order)
}

// outcomeForStatus short-circuits orders that are no longer awaiting
// payment. Both return values are nil when settlement should proceed.
func outcomeForStatus(order *models.Order) (*SettlementResult, *ServiceError) {
	switch {
	case order.Status.Settled():
		return &SettlementResult{
			Order:          order,
			AlreadySettled: true,
			PointsAwarded:  order.PointsAwarded,
			Message:        msgAlreadyConfirmed,
		}, nil
	case order.Status == models.StatusCancelled:
		return nil, newError(http.StatusBadRequest, "Payment was not completed.", ErrPaymentNotCompleted)
	case order.Status == models.StatusDisputed:
		return nil, newError(http.StatusConflict, "This order is under review. Please contact support.", ErrOrderDisputed)
	}
	return nil, nil
}

// resolveRace reloads an order whose conditional update lost against a
// concurrent request and reports what that request decided.
func (s *PaymentService) resolveRace(ctx context.Context, log *zap.Logger, orderID uuid.UUID) (*SettlementResult, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		log.Error("Failed to reload order after concurrent update", zap.Error(err))
		return nil, internalError("An internal server error occurred during verification.")
	}
	if result, svcErr := outcomeForStatus(order); result != nil || svcErr != nil {
		return result, svcErr
	}
	return nil, internalError("Order changed during verification, please retry.")
}

// release cancels an order whose payment the gateway reports as failed.
func (s *PaymentService) release(ctx context.Context, log *zap.Logger, order *models.Order, lookup *providers.LookupResult) (*SettlementResult, *ServiceError) {
	err := s.orderRepo.Transition(ctx, order.ID, models.StatusPendingPayment, models.StatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotPending) {
			return s.resolveRace(ctx, log, order.ID)
		}
		log.Error("Failed to cancel unpaid order", zap.Error(err))
		return nil, internalError("An internal server error occurred during verification.")
	}
	order.Status = models.StatusCancelled

	log.Info("Payment not completed, order cancelled", zap.String("gateway_status", lookup.GatewayStatus))
	s.publish(ctx, log, models.EventOrderCancelled, order)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentFailed, map[string]string{"Method": order.PaymentMethod})
	_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCancelled, nil)

	return nil, newError(http.StatusBadRequest,
		fmt.Sprintf("Payment verification failed. Status: %s", lookup.GatewayStatus), ErrPaymentNotCompleted)
}

// dispute flags an order whose paid amount differs from its price of
// record. Stock and points are never touched on this path.
func (s *PaymentService) dispute(ctx context.Context, log *zap.Logger, order *models.Order, lookup *providers.LookupResult, expected int64) (*SettlementResult, *ServiceError) {
	log.Error("payment amount mismatch",
		zap.String("alert", "tamper"),
		zap.Int64("paid_minor", lookup.PaidMinor),
		zap.Int64("expected_minor", expected),
		zap.String("customer_id", order.CustomerID.String()),
	)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricAmountMismatch, map[string]string{"Method": order.PaymentMethod})

	if result, svcErr := s.markDisputed(ctx, log, order); result != nil || svcErr != nil {
		return result, svcErr
	}
	return nil, newError(http.StatusBadRequest, "Amount mismatch. Payment has been flagged.", ErrAmountMismatch)
}

// markDisputed flags the order for manual review. Both return values are
// nil when the flag was set; otherwise they carry whatever a concurrent
// request decided for the order.
func (s *PaymentService) markDisputed(ctx context.Context, log *zap.Logger, order *models.Order) (*SettlementResult, *ServiceError) {
	err := s.orderRepo.Transition(ctx, order.ID, models.StatusPendingPayment, models.StatusDisputed)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotPending) {
			return s.resolveRace(ctx, log, order.ID)
		}
		log.Error("Failed to mark order disputed", zap.Error(err))
		return nil, internalError("An internal server error occurred during verification.")
	}
	order.Status = models.StatusDisputed
	s.publish(ctx, log, models.EventOrderDisputed, order)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersDisputed, nil)
	return nil, nil
}

// apply runs the settlement transaction for a verified, correctly paid
// order.
func (s *PaymentService) apply(ctx context.Context, log *zap.Logger, order *models.Order) (*SettlementResult, *ServiceError) {
	settlement := repository.Settlement{
		BonusPoints: BonusFor(order.ItemsSubtotal(), s.roller),
		SettledAt:   s.now().UTC(),
	}
	if order.DiscountApplied {
		settlement.PointsDebit = DiscountPointsCost
	}

	err := s.orderRepo.Settle(ctx, order, settlement)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrOrderNotPending):
		log.Info("Order settled by a concurrent request")
		return s.resolveRace(ctx, log, order.ID)
	case errors.Is(err, repository.ErrInsufficientStock), errors.Is(err, repository.ErrInsufficientPoints):
		log.Error("Settlement could not be applied, flagging order for review", zap.Error(err))
		if result, svcErr := s.markDisputed(ctx, log, order); result != nil || svcErr != nil {
			return result, svcErr
		}
		cause := ErrInsufficientStock
		if errors.Is(err, repository.ErrInsufficientPoints) {
			cause = ErrInsufficientPoints
		}
		return nil, newError(http.StatusConflict,
			"Payment received but the order could not be completed. It has been flagged for review.",
			fmt.Errorf("%w: %w", ErrOrderDisputed, cause))
	default:
		log.Error("Settlement transaction failed, order left pending", zap.Error(err))
		return nil, internalError("An internal server error occurred during verification.")
	}

	parts := []string{msgPaymentSuccess}
	if order.DiscountApplied {
		parts = append(parts, msgDiscountApplied)
	}
	if settlement.BonusPoints > 0 {
		parts = append(parts, fmt.Sprintf("You earned %d Grocery Points.", settlement.BonusPoints))
	}
	message := strings.Join(parts, " ")

	log.Info("Order settled",
		zap.Float64("amount", order.Amount),
		zap.Int("points_debited", settlement.PointsDebit),
		zap.Int("points_awarded", settlement.BonusPoints),
	)

	s.notify(ctx, log, order.CustomerID, message)
	s.publish(ctx, log, models.EventOrderSettled, order)
	_ = s.metrics.RecordCount(ctx, awspkg.MetricPaymentSucceeded, map[string]string{"Method": order.PaymentMethod})
	_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCompleted, nil)

	return &SettlementResult{
		Order:         order,
		PointsAwarded: settlement.BonusPoints,
		Message:       message,
	}, nil
}

func (s *PaymentService) notify(ctx context.Context, log *zap.Logger, userID uuid.UUID, message string) {
	err := s.notifyRepo.Create(ctx, &models.Notification{
		UserID:  userID.String(),
		Message: message,
	})
	if err != nil {
		log.Warn("Failed to record notification", zap.Error(err))
	}
}

func (s *PaymentService) publish(ctx context.Context, log *zap.Logger, eventType string, order *models.Order) {
	if err := s.publisher.Publish(ctx, models.NewOrderEvent(eventType, order)); err != nil {
		log.Warn("Order event publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *PaymentService) recordGatewayLatency(ctx context.Context, method, op string, start time.Time) {
	_ = s.metrics.RecordLatency(ctx, awspkg.MetricGatewayLatency, s.now().Sub(start), map[string]string{
		"Method":    method,
		"Operation": op,
	})
}

package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"commerce-core/models"
	"commerce-core/payment"
	"commerce-core/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// PaymentWebhookController receives and dispatches Stripe webhook events onto
// the order lifecycle.
type PaymentWebhookController struct {
	Stripe       *payment.StripeGateway
	OrderService *services.OrderService
	Logger       *zap.Logger
}

func NewPaymentWebhookController(gw *payment.StripeGateway, orders *services.OrderService, logger *zap.Logger) *PaymentWebhookController {
	return &PaymentWebhookController{Stripe: gw, OrderService: orders, Logger: logger}
}

func (pc *PaymentWebhookController) StripeWebhook(c *gin.Context) {
	event, err := pc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		pc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	pc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch event.Type {
	case "payment_intent.succeeded":
		pc.handlePaymentIntent(c, event, models.EventPaymentSucceeded)
	case "payment_intent.payment_failed":
		pc.handlePaymentIntent(c, event, models.EventPaymentFailed)
	default:
		pc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (pc *PaymentWebhookController) handlePaymentIntent(c *gin.Context, event stripe.Event, outcome string) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		pc.Logger.Error("Failed to unmarshal payment intent", zap.Error(err))
		return
	}

	orderID := pi.Metadata["order_id"]
	if orderID == "" {
		pc.Logger.Warn("Missing order_id metadata in payment intent",
			zap.String("payment_intent", pi.ID))
		return
	}

	evt := models.PaymentEvent{
		OrderID:   orderID,
		Type:      outcome,
		PaymentID: pi.ID,
		Timestamp: time.Now(),
	}
	if err := pc.OrderService.HandlePaymentEvent(c.Request.Context(), evt); err != nil && !errors.Is(err, models.ErrPaymentDenied) {
		pc.Logger.Error("Failed to apply payment outcome",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"hiddystays/internal/app/commands"
	paymentsapp "hiddystays/internal/app/handlers/payments"
	"hiddystays/internal/app/policies"
	domainbooking "hiddystays/internal/domain/booking"
)

const maxWebhookBody = 1 << 16

type PaymentHandler struct {
	Commands commands.Bus
	Webhooks policies.WebhookVerifier
	Logger   *slog.Logger
}

type createSessionRequest struct {
	BookingID  string `json:"bookingId"`
	PropertyID string `json:"propertyId"`
}

func (h PaymentHandler) CreateSession(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := paymentsapp.CreateSessionCommand{GuestID: user.ID, BookingID: req.BookingID, PropertyID: req.PropertyID}
	result, err := commands.Dispatch[paymentsapp.CreateSessionCommand, *paymentsapp.SessionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "create payment session failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) Retry(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := paymentsapp.RetryPaymentCommand{GuestID: user.ID, BookingID: req.BookingID}
	result, err := commands.Dispatch[paymentsapp.RetryPaymentCommand, *paymentsapp.SessionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "payment retry failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyRequest struct {
	SessionID string `json:"sessionId"`
}

func (h PaymentHandler) Verify(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := paymentsapp.ConfirmPaymentCommand{SessionID: req.SessionID, GuestID: user.ID, Source: paymentsapp.SourceVerify}
	result, err := commands.Dispatch[paymentsapp.ConfirmPaymentCommand, *paymentsapp.ConfirmResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "payment verification failed", err)
		return
	}
	if result.Conflict {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Webhook confirms bookings from provider events. Unknown sessions and event
// types are acknowledged so the provider stops retrying them.
func (h PaymentHandler) Webhook(c *gin.Context) {
	if h.Webhooks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhooks not configured"})
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	evt, err := h.Webhooks.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("webhook rejected", "error", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	switch evt.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	cmd := paymentsapp.ConfirmPaymentCommand{SessionID: evt.SessionID, Source: paymentsapp.SourceWebhook}
	result, err := commands.Dispatch[paymentsapp.ConfirmPaymentCommand, *paymentsapp.ConfirmResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			if h.Logger != nil {
				h.Logger.Warn("webhook for unknown session", "event_id", evt.ID, "session_id", evt.SessionID)
			}
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		respondError(c, h.Logger, "webhook confirmation failed", err)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("webhook processed", "event_id", evt.ID, "booking_id", result.BookingID, "status", result.Status, "conflict", result.Conflict)
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "result": result})
}

var _ PaymentHTTP = PaymentHandler{}

package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/dto"
	bookingapp "hiddystays/internal/app/handlers/booking"
	"hiddystays/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Guests     int    `json:"guests"`
	GuestEmail string `json:"guest_email"`
	GuestName  string `json:"guest_name"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email, name := req.GuestEmail, req.GuestName
	if email == "" {
		email = user.Email
	}
	if name == "" {
		name = user.Name
	}
	cmd := bookingapp.RequestBookingCommand{
		GuestID:         user.ID,
		GuestEmail:      email,
		GuestName:       name,
		PropertyID:      req.PropertyID,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "booking request failed", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type cancelBookingRequest struct {
	BookingID string `json:"bookingId"`
	// Refund defaults to true when omitted.
	Refund *bool  `json:"refund"`
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	refund := true
	if req.Refund != nil {
		refund = *req.Refund
	}
	cmd := bookingapp.CancelBookingCommand{
		GuestID:         user.ID,
		BookingID:       req.BookingID,
		Refund:          refund,
		Reason:          req.Reason,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.CancelBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, "booking cancellation failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.GuestBookingCollection](c.Request.Context(), h.Queries, bookingapp.ListGuestBookingsQuery{GuestID: user.ID})
	if err != nil {
		respondError(c, h.Logger, "list bookings failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}

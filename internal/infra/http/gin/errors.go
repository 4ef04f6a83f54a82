package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "hiddystays/internal/app/handlers/booking"
	"hiddystays/internal/app/middleware"
	"hiddystays/internal/app/policies"
	"hiddystays/internal/domain/availability"
	domainbooking "hiddystays/internal/domain/booking"
	"hiddystays/internal/domain/pricing"
	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/daterange"
	"hiddystays/internal/domain/shared/money"
	"hiddystays/internal/infra/validation"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, middleware.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, policies.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domainbooking.ErrPropertyUnavailable),
		errors.Is(err, availability.ErrBlockConflictsBooking):
		return http.StatusConflict
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, bookingapp.ErrBookingNotOwned),
		errors.Is(err, properties.ErrNotFound),
		errors.Is(err, properties.ErrNotOwned),
		errors.Is(err, availability.ErrBlockNotFound),
		errors.Is(err, policies.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrOracleUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, policies.ErrPaymentProvider):
		return http.StatusBadGateway
	case isValidationError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, validation.ErrInvalid),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, daterange.ErrInvalidDate),
		errors.Is(err, domainbooking.ErrCheckInInPast),
		errors.Is(err, domainbooking.ErrInvalidGuests),
		errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrNotEligible),
		errors.Is(err, domainbooking.ErrSessionRequired),
		errors.Is(err, bookingapp.ErrPropertyClosed),
		errors.Is(err, properties.ErrStayLength),
		errors.Is(err, properties.ErrNightsRange),
		errors.Is(err, availability.ErrNegativePrice),
		errors.Is(err, money.ErrCurrencyMismatch):
		return true
	}
	return false
}

// respondError maps err to its status. Server-side failures hide their
// detail from the client.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if logger != nil {
		fields := []any{"status", status, "error", err, "route", c.FullPath(), "request_id", c.GetString("request_id")}
		if p, ok := currentPrincipal(c); ok {
			fields = append(fields, "user_id", p.ID)
		}
		if status >= http.StatusInternalServerError {
			logger.Error(msg, fields...)
		} else {
			logger.Info(msg, fields...)
		}
	}
	body := gin.H{"error": err.Error()}
	switch status {
	case http.StatusInternalServerError:
		body["error"] = "internal error"
		if errors.Is(err, pricing.ErrOracleUnavailable) {
			body["error"] = "price could not be computed, please try again"
		}
	case http.StatusBadGateway:
		body["error"] = "payment provider unavailable, please try again"
	}
	c.JSON(status, body)
}

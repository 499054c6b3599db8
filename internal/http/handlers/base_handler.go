// README: JSON helpers and error-to-status mapping shared by handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"swiftcab/internal/modules/assignment"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/dispatch"
	"swiftcab/internal/modules/driver"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, assignment.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrNotEligible):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrNotAssignedDriver):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, assignment.ErrIncompatible):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrDispatchFailed):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func bookingView(b *booking.Booking, provisional bool) map[string]any {
	v := map[string]any{
		"booking_id":     b.ID,
		"tracking_code":  b.TrackingCode,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"refund_status":  b.RefundStatus,
		"total_amount":   b.TotalAmount.Amount,
		"currency":       b.TotalAmount.Currency,
	}
	if b.DriverID != nil {
		v["driver_id"] = *b.DriverID
	}
	if b.CompletedAt != nil {
		v["completed_at"] = *b.CompletedAt
	}
	if b.CancelledAt != nil {
		v["cancelled_at"] = *b.CancelledAt
	}
	if provisional {
		v["pending_sync"] = true
	}
	return v
}

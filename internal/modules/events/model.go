// README: Event types published on the bus for every observable booking mutation.
package events

import (
	"time"

	"swiftcab/internal/types"
)

type Type string

const (
	TypeBookingUpdated        Type = "booking_updated"
	TypeBookingStatusChanged  Type = "booking_status_changed"
	TypeDriverAssigned        Type = "driver_assigned"
	TypeRideStarted           Type = "ride_started"
	TypeRideCompleted         Type = "ride_completed"
	TypeRideCancelled         Type = "ride_cancelled"
	TypePaymentReceived       Type = "payment_received"
	TypeRefundInitiated       Type = "refund_initiated"
	TypeRefundProcessed       Type = "refund_processed"
	TypeRefundFailed          Type = "refund_failed"
	TypeRatingSubmitted       Type = "rating_submitted"
	TypeDriverLocationUpdated Type = "driver_location_updated"
)

// Event is a notification hint, not a source of truth: clients reconcile by
// refetching the booking after delivery.
type Event struct {
	Type      Type           `json:"type"`
	BookingID types.ID       `json:"booking_id"`
	UserID    types.ID       `json:"user_id,omitempty"`
	DriverID  *types.ID      `json:"driver_id,omitempty"`
	At        time.Time      `json:"at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

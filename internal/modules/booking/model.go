// README: Booking aggregate, status definitions, and the transition table.
package booking

import (
	"time"

	"swiftcab/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundInitiated RefundStatus = "initiated"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

type Rating struct {
	Score   int
	Comment string
}

type Booking struct {
	ID            types.ID
	TrackingCode  string
	UserID        types.ID
	PickupLoc     string
	DropLoc       string
	CabTypeID     types.ID
	CabTypeName   string
	PickupTime    time.Time
	Status        Status
	StatusVersion int
	DriverID      *types.ID
	TotalAmount   types.Money
	PaymentStatus PaymentStatus
	RefundStatus  RefundStatus
	UserRating    *Rating
	DriverRating  *Rating
	CreatedAt     time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
}

// HasDriver reports whether the booking is currently bound to a driver.
func (b *Booking) HasDriver() bool {
	return b.DriverID != nil && *b.DriverID != ""
}

// AllowedTransitions represents the booking state flow (diagram) as code.
// Admin overrides bypass this table through Service.Override.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusConfirmed, StatusPending, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

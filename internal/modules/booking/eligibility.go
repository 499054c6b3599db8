// README: Pure refund/cancellation and rating eligibility decisions.
package booking

import "time"

// RatingWindow is how long after completion a ride may still be rated.
const RatingWindow = 7 * 24 * time.Hour

type RefundDecision struct {
	Eligible            bool
	FullRefund          bool
	CancellationAllowed bool
	Reason              string
}

// RefundEligibility decides whether a booking may be cancelled and whether a
// refund is due. It is side-effect free; callers consult it both before
// applying a cancellation and when rendering available actions.
func RefundEligibility(b Booking) RefundDecision {
	switch b.Status {
	case StatusInProgress, StatusCompleted:
		return RefundDecision{Reason: "trip already started or completed"}
	case StatusCancelled:
		return RefundDecision{Reason: "booking already cancelled"}
	}
	if b.RefundStatus == RefundProcessed {
		return RefundDecision{Reason: "refund already processed"}
	}
	if b.PaymentStatus != PaymentCompleted {
		return RefundDecision{
			CancellationAllowed: true,
			Reason:              "no completed payment to refund",
		}
	}
	switch b.Status {
	case StatusPending, StatusConfirmed:
		return RefundDecision{
			Eligible:            true,
			FullRefund:          true,
			CancellationAllowed: true,
			Reason:              "no driver committed yet",
		}
	case StatusAssigned:
		return RefundDecision{
			CancellationAllowed: true,
			Reason:              "driver already committed resources",
		}
	}
	return RefundDecision{Reason: "unknown booking status"}
}

type RatingDecision struct {
	Needed bool
	Reason string
}

// RatingEligibility decides whether the given rater still needs to rate the
// booking at time now.
func RatingEligibility(b Booking, rater Role, now time.Time) RatingDecision {
	if b.Status != StatusCompleted {
		return RatingDecision{Reason: "booking not completed"}
	}
	switch rater {
	case RoleUser:
		if b.UserRating != nil {
			return RatingDecision{Reason: "already rated"}
		}
	case RoleDriver:
		if b.DriverRating != nil {
			return RatingDecision{Reason: "already rated"}
		}
	default:
		return RatingDecision{Reason: "unknown rater role"}
	}
	if b.CompletedAt != nil && now.Sub(*b.CompletedAt) > RatingWindow {
		return RatingDecision{Reason: "rating window expired"}
	}
	return RatingDecision{Needed: true}
}

// README: Eligibility engine tests over representative booking snapshots.
package booking

import (
	"testing"
	"time"
)

func TestRefundEligibility(t *testing.T) {
	paid := func(b Booking) Booking {
		b.PaymentStatus = PaymentCompleted
		return b
	}

	cases := []struct {
		name                string
		booking             Booking
		eligible            bool
		fullRefund          bool
		cancellationAllowed bool
	}{
		{
			name:                "paid pending",
			booking:             paid(Booking{Status: StatusPending}),
			eligible:            true,
			fullRefund:          true,
			cancellationAllowed: true,
		},
		{
			name:                "paid confirmed",
			booking:             paid(Booking{Status: StatusConfirmed}),
			eligible:            true,
			fullRefund:          true,
			cancellationAllowed: true,
		},
		{
			name:                "paid assigned cancels without refund",
			booking:             paid(Booking{Status: StatusAssigned}),
			cancellationAllowed: true,
		},
		{
			name:                "unpaid pending",
			booking:             Booking{Status: StatusPending, PaymentStatus: PaymentPending},
			cancellationAllowed: true,
		},
		{
			name:                "failed payment still cancellable",
			booking:             Booking{Status: StatusConfirmed, PaymentStatus: PaymentFailed},
			cancellationAllowed: true,
		},
		{
			name:    "in progress locked",
			booking: paid(Booking{Status: StatusInProgress}),
		},
		{
			name:    "completed locked",
			booking: paid(Booking{Status: StatusCompleted}),
		},
		{
			name:    "already cancelled",
			booking: paid(Booking{Status: StatusCancelled}),
		},
		{
			name:    "refund already processed",
			booking: paid(Booking{Status: StatusPending, RefundStatus: RefundProcessed}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RefundEligibility(tc.booking)
			if got.Eligible != tc.eligible {
				t.Errorf("Eligible = %v, want %v", got.Eligible, tc.eligible)
			}
			if got.FullRefund != tc.fullRefund {
				t.Errorf("FullRefund = %v, want %v", got.FullRefund, tc.fullRefund)
			}
			if got.CancellationAllowed != tc.cancellationAllowed {
				t.Errorf("CancellationAllowed = %v, want %v", got.CancellationAllowed, tc.cancellationAllowed)
			}
			if got.Reason == "" {
				t.Error("decision carries no reason")
			}
		})
	}
}

func TestRatingEligibility(t *testing.T) {
	now := time.Now()
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}
	rated := Rating{Score: 5}

	cases := []struct {
		name    string
		booking Booking
		rater   Role
		needed  bool
	}{
		{
			name:    "completed yesterday needs user rating",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(24 * time.Hour)},
			rater:   RoleUser,
			needed:  true,
		},
		{
			name:    "completed yesterday needs driver rating",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(24 * time.Hour)},
			rater:   RoleDriver,
			needed:  true,
		},
		{
			name:    "window expired after eight days",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(8 * 24 * time.Hour)},
			rater:   RoleUser,
		},
		{
			name:    "exactly inside the window",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(RatingWindow - time.Minute)},
			rater:   RoleUser,
			needed:  true,
		},
		{
			name:    "user already rated",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(time.Hour), UserRating: &rated},
			rater:   RoleUser,
		},
		{
			name:    "driver side independent of user rating",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(time.Hour), UserRating: &rated},
			rater:   RoleDriver,
			needed:  true,
		},
		{
			name:    "not completed",
			booking: Booking{Status: StatusInProgress},
			rater:   RoleUser,
		},
		{
			name:    "cancelled never rated",
			booking: Booking{Status: StatusCancelled},
			rater:   RoleDriver,
		},
		{
			name:    "unknown rater role",
			booking: Booking{Status: StatusCompleted, CompletedAt: ago(time.Hour)},
			rater:   RoleAdmin,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RatingEligibility(tc.booking, tc.rater, now)
			if got.Needed != tc.needed {
				t.Errorf("Needed = %v, want %v (reason %q)", got.Needed, tc.needed, got.Reason)
			}
		})
	}
}

// README: Dispatch coordinator; wraps the matcher with retry, idempotence, and provisional state.
package dispatch

import (
	"context"
	"errors"

	"swiftcab/internal/modules/assignment"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/driver"
	"swiftcab/internal/types"
)

// Matcher is the slice of the assignment service the coordinator drives.
type Matcher interface {
	Assign(ctx context.Context, bookingID, driverID types.ID) (*booking.Booking, error)
	Unassign(ctx context.Context, bookingID types.ID) (*booking.Booking, error)
}

// Result reports whether the authoritative backend confirmed the operation or
// whether only a local optimistic view was applied.
type Result struct {
	Booking   *booking.Booking
	Confirmed bool
}

type Coordinator struct {
	matcher  Matcher
	bookings booking.Store
	overlay  *Overlay
	policy   Policy
}

func NewCoordinator(matcher Matcher, bookings booking.Store, policy Policy) *Coordinator {
	return &Coordinator{
		matcher:  matcher,
		bookings: bookings,
		overlay:  NewOverlay(),
		policy:   policy,
	}
}

// AssignDriver binds driverID to the booking with bounded retries. A retry
// after a transient failure first re-checks the booking: if it already shows
// the expected driver the earlier attempt landed, and no second bind is made.
func (c *Coordinator) AssignDriver(ctx context.Context, bookingID, driverID types.ID) (Result, error) {
	if b, done := c.alreadyAssigned(ctx, bookingID, driverID); done {
		return Result{Booking: b, Confirmed: true}, nil
	}

	var assigned *booking.Booking
	err := c.policy.Do(ctx,
		func(opCtx context.Context) error {
			b, err := c.matcher.Assign(opCtx, bookingID, driverID)
			if err == nil {
				assigned = b
			}
			return err
		},
		Hooks{
			Retryable: retryable,
			AlreadyDone: func(checkCtx context.Context) bool {
				b, done := c.alreadyAssigned(checkCtx, bookingID, driverID)
				if done {
					assigned = b
				}
				return done
			},
			OnTransient: func() {
				c.applyProvisionalAssign(ctx, bookingID, driverID)
			},
		},
	)
	if err != nil {
		c.overlay.Rollback(bookingID)
		return Result{}, err
	}
	c.overlay.Resolve(bookingID)
	return Result{Booking: assigned, Confirmed: true}, nil
}

// RemoveDriver reverses a binding with the same retry budget. Unassign is
// idempotent, so a repeated attempt is harmless.
func (c *Coordinator) RemoveDriver(ctx context.Context, bookingID types.ID) (Result, error) {
	var current *booking.Booking
	err := c.policy.Do(ctx,
		func(opCtx context.Context) error {
			b, err := c.matcher.Unassign(opCtx, bookingID)
			if err == nil {
				current = b
			}
			return err
		},
		Hooks{Retryable: retryable},
	)
	if err != nil {
		c.overlay.Rollback(bookingID)
		return Result{}, err
	}
	c.overlay.Resolve(bookingID)
	return Result{Booking: current, Confirmed: true}, nil
}

// Get is the read-through view: a pending provisional entry shadows the
// authoritative record and is reported as such.
func (c *Coordinator) Get(ctx context.Context, id types.ID) (*booking.Booking, bool, error) {
	if v, ok := c.overlay.Get(id); ok {
		b := v.Booking
		return &b, true, nil
	}
	b, err := c.bookings.Get(ctx, id)
	return b, false, err
}

func (c *Coordinator) alreadyAssigned(ctx context.Context, bookingID, driverID types.ID) (*booking.Booking, bool) {
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, false
	}
	if b.Status == booking.StatusAssigned && b.DriverID != nil && *b.DriverID == driverID {
		return b, true
	}
	return nil, false
}

func (c *Coordinator) applyProvisionalAssign(ctx context.Context, bookingID, driverID types.ID) {
	if _, ok := c.overlay.Get(bookingID); ok {
		return
	}
	b, err := c.bookings.Get(ctx, bookingID)
	if err != nil {
		return
	}
	view := *b
	view.Status = booking.StatusAssigned
	view.DriverID = &driverID
	c.overlay.Put(view)
}

// retryable treats domain verdicts as final and everything else (network,
// timeout, storage) as transient.
func retryable(err error) bool {
	switch {
	case errors.Is(err, assignment.ErrConflict),
		errors.Is(err, assignment.ErrIncompatible),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrNotEligible),
		errors.Is(err, driver.ErrNotFound):
		return false
	}
	return true
}

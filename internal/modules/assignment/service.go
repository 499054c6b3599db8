// README: Assignment matcher; at-most-once driver binding via two-phase compare-and-swap.
package assignment

import (
	"context"
	"errors"

	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/driver"
	"swiftcab/internal/modules/events"
	"swiftcab/internal/types"
)

var (
	// ErrConflict means the booking or driver changed status between being
	// selected and being written. Expected under races; the caller re-fetches
	// and may retry with a different candidate.
	ErrConflict = errors.New("assignment conflict")
	// ErrIncompatible means the candidate's vehicle type does not match the
	// booking's cab type.
	ErrIncompatible = errors.New("driver vehicle type incompatible")
)

type Service struct {
	bookings booking.Store
	drivers  driver.Store
	bus      booking.Publisher
	store    *Store
}

func NewService(bookings booking.Store, drivers driver.Store, bus booking.Publisher, store *Store) *Service {
	return &Service{bookings: bookings, drivers: drivers, bus: bus, store: store}
}

// Candidates lists available drivers compatible with the booking's cab type.
// No compatible driver yields an empty slice, not an error.
func (s *Service) Candidates(ctx context.Context, bookingID types.ID) ([]driver.Driver, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	lookup, err := s.drivers.CabTypes(ctx)
	if err != nil {
		return nil, err
	}
	want := bookingTypeName(b, lookup)

	pool, err := s.availablePool(ctx)
	if err != nil {
		return nil, err
	}
	out := []driver.Driver{}
	for _, d := range pool {
		if got, ok := d.TypeRef().Resolve(lookup); ok && got == want {
			out = append(out, d)
		}
	}
	return out, nil
}

// Assign binds the candidate driver to the booking. At most one assignment
// per booking ever succeeds: the driver is claimed first, then the booking is
// written with a compare-and-swap; a lost booking race reverts the claim so
// the losing driver stays available.
func (s *Service) Assign(ctx context.Context, bookingID, driverID types.ID) (*booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusConfirmed {
		// A booking that was never confirmed is an invalid trigger; one that
		// moved past confirmed since selection is a lost race.
		if b.Status == booking.StatusPending {
			return nil, booking.ErrInvalidTransition
		}
		return nil, s.conflict(ctx, bookingID, driverID)
	}

	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if d.Status != driver.StatusAvailable {
		return nil, s.conflict(ctx, bookingID, driverID)
	}

	lookup, err := s.drivers.CabTypes(ctx)
	if err != nil {
		return nil, err
	}
	got, ok := d.TypeRef().Resolve(lookup)
	if !ok || got != bookingTypeName(b, lookup) {
		return nil, ErrIncompatible
	}

	// Phase one: claim the driver.
	claimed, err := s.drivers.UpdateStatus(ctx, d.ID, driver.StatusAvailable, driver.StatusAssigned, d.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, s.conflict(ctx, bookingID, driverID)
	}
	_ = s.store.MarkBusy(ctx, d.ID)

	// Phase two: bind the booking. On a lost race the claim is reverted so
	// no driver is ever left assigned with no booking.
	bound, err := s.bookings.UpdateStatus(ctx, booking.UpdateStatusArgs{
		ID:      b.ID,
		From:    booking.StatusConfirmed,
		To:      booking.StatusAssigned,
		Version: b.StatusVersion,
		Driver:  booking.BindDriver(driverID),
	})
	if err != nil || !bound {
		s.revertClaim(ctx, d.ID, d.StatusVersion+1)
		if err != nil {
			return nil, err
		}
		return nil, s.conflict(ctx, bookingID, driverID)
	}

	_ = s.store.RecordAttempt(ctx, Attempt{BookingID: bookingID, DriverID: driverID, Outcome: OutcomeSuccess})

	assigned, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeDriverAssigned, assigned, &driverID)
	return assigned, nil
}

// Unassign reverses the binding: the driver returns to available, the booking
// drops its driver and falls back to confirmed, or pending when payment was
// never recorded. Calling it on an unbound booking returns the current state.
func (s *Service) Unassign(ctx context.Context, bookingID types.ID) (*booking.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusAssigned || !b.HasDriver() {
		return b, nil
	}

	to := booking.StatusConfirmed
	if b.PaymentStatus != booking.PaymentCompleted {
		to = booking.StatusPending
	}
	released := *b.DriverID
	ok, err := s.bookings.UpdateStatus(ctx, booking.UpdateStatusArgs{
		ID:      b.ID,
		From:    booking.StatusAssigned,
		To:      to,
		Version: b.StatusVersion,
		Driver:  booking.ClearDriver(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race; if someone else already unbound it, that is the
		// idempotent outcome the caller wants.
		cur, gerr := s.bookings.Get(ctx, bookingID)
		if gerr != nil {
			return nil, gerr
		}
		if cur.Status != booking.StatusAssigned {
			return cur, nil
		}
		return nil, ErrConflict
	}

	_ = s.Release(ctx, released)

	cur, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publish(events.TypeBookingUpdated, cur, &released)
	return cur, nil
}

// Release returns a driver to the available pool. It is safe to call for a
// driver that is already available or offline.
func (s *Service) Release(ctx context.Context, driverID types.ID) error {
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return err
	}
	if d.Status != driver.StatusAssigned {
		return nil
	}
	ok, err := s.drivers.UpdateStatus(ctx, d.ID, driver.StatusAssigned, driver.StatusAvailable, d.StatusVersion)
	if err != nil {
		return err
	}
	if ok {
		_ = s.store.MarkAvailable(ctx, d.ID)
	}
	return nil
}

func (s *Service) availablePool(ctx context.Context) ([]driver.Driver, error) {
	if ids := s.store.AvailableIDs(ctx); ids != nil {
		pool := make([]driver.Driver, 0, len(ids))
		for _, id := range ids {
			d, err := s.drivers.Get(ctx, id)
			if err != nil {
				continue
			}
			if d.Status == driver.StatusAvailable {
				pool = append(pool, *d)
			}
		}
		if len(pool) > 0 {
			return pool, nil
		}
	}
	return s.drivers.ListByStatus(ctx, driver.StatusAvailable)
}

func (s *Service) revertClaim(ctx context.Context, driverID types.ID, version int) {
	if ok, _ := s.drivers.UpdateStatus(ctx, driverID, driver.StatusAssigned, driver.StatusAvailable, version); ok {
		_ = s.store.MarkAvailable(ctx, driverID)
	}
}

func (s *Service) conflict(ctx context.Context, bookingID, driverID types.ID) error {
	_ = s.store.RecordAttempt(ctx, Attempt{BookingID: bookingID, DriverID: driverID, Outcome: OutcomeConflict})
	return ErrConflict
}

func (s *Service) publish(t events.Type, b *booking.Booking, driverID *types.ID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      t,
		BookingID: b.ID,
		UserID:    b.UserID,
		DriverID:  driverID,
		Payload:   map[string]any{"status": b.Status},
	})
}

func bookingTypeName(b *booking.Booking, lookup map[types.ID]driver.CabType) string {
	if ct, ok := lookup[b.CabTypeID]; ok {
		return driver.NormalizeTypeName(ct.Name)
	}
	return driver.NormalizeTypeName(b.CabTypeName)
}

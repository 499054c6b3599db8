// README: Booking service implements lifecycle transitions and eligibility-guarded mutations.
package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"

	"swiftcab/internal/modules/events"
	"swiftcab/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotFound          = errors.New("booking not found")
	ErrConflict          = errors.New("booking state conflict")
	ErrNotEligible       = errors.New("operation not eligible")
	ErrNotAssignedDriver = errors.New("caller is not the assigned driver")
	ErrBadRequest        = errors.New("bad request")
)

// Publisher pushes an event to the room router after a successful mutation.
type Publisher interface {
	Publish(events.Event)
}

// DriverReleaser returns a driver to the available pool. The booking service
// never touches driver records directly.
type DriverReleaser interface {
	Release(ctx context.Context, driverID types.ID) error
}

type Service struct {
	store    Store
	bus      Publisher
	releaser DriverReleaser
}

func NewService(store Store, bus Publisher, releaser DriverReleaser) *Service {
	return &Service{store: store, bus: bus, releaser: releaser}
}

type CreateCommand struct {
	UserID      types.ID
	PickupLoc   string
	DropLoc     string
	CabTypeID   types.ID
	CabTypeName string
	PickupTime  time.Time
	TotalAmount types.Money
}

type ConfirmCommand struct {
	BookingID     types.ID
	AdminOverride bool
}

type PaymentReceivedCommand struct {
	BookingID types.ID
}

type StartCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type CompleteCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type CancelCommand struct {
	BookingID types.ID
	Actor     Role
	Reason    string
}

type RatingCommand struct {
	BookingID types.ID
	Rater     Role
	TargetID  types.ID
	Score     int
	Comment   string
}

type RefundResultCommand struct {
	BookingID types.ID
	Succeeded bool
}

type OverrideCommand struct {
	BookingID types.ID
	To        Status
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.UserID == "" || cmd.CabTypeID == "" {
		return "", ErrBadRequest
	}
	b := &Booking{
		ID:            types.ID(uuid.NewString()),
		TrackingCode:  newTrackingCode(),
		UserID:        cmd.UserID,
		PickupLoc:     cmd.PickupLoc,
		DropLoc:       cmd.DropLoc,
		CabTypeID:     cmd.CabTypeID,
		CabTypeName:   cmd.CabTypeName,
		PickupTime:    cmd.PickupTime,
		Status:        StatusPending,
		TotalAmount:   cmd.TotalAmount,
		PaymentStatus: PaymentPending,
		RefundStatus:  RefundNone,
		CreatedAt:     time.Now(),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return "", err
	}
	s.publish(events.TypeBookingUpdated, b)
	return b.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*Booking, error) {
	return s.store.GetByTrackingCode(ctx, code)
}

// Confirm moves a pending booking to confirmed once payment is recorded, or
// on an explicit admin override. Only pending is a valid source: the
// assigned->confirmed edge in the transition table is the driver-removal
// path, which clears the driver binding.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return ErrInvalidTransition
	}
	if b.PaymentStatus != PaymentCompleted && !cmd.AdminOverride {
		return ErrNotEligible
	}
	if err := s.transition(ctx, b, StatusConfirmed, KeepDriver(), nil); err != nil {
		return err
	}
	s.publish(events.TypeBookingStatusChanged, b)
	return nil
}

// MarkPaymentReceived records a completed payment. Status is unchanged;
// confirmation is a separate trigger.
func (s *Service) MarkPaymentReceived(ctx context.Context, cmd PaymentReceivedCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.PaymentStatus == PaymentCompleted {
		return nil
	}
	if err := s.store.SetPaymentStatus(ctx, b.ID, PaymentCompleted); err != nil {
		return err
	}
	b.PaymentStatus = PaymentCompleted
	s.publish(events.TypePaymentReceived, b)
	return nil
}

// Start begins the trip. Only the assigned driver may start it.
func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, StatusInProgress) {
		return ErrInvalidTransition
	}
	if b.DriverID == nil || *b.DriverID != cmd.DriverID {
		return ErrNotAssignedDriver
	}
	if err := s.transition(ctx, b, StatusInProgress, KeepDriver(), nil); err != nil {
		return err
	}
	s.publish(events.TypeRideStarted, b)
	return nil
}

// Complete finishes the trip, stamps CompletedAt, and releases the driver
// back to the available pool. The booking keeps its driver reference.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, StatusCompleted) {
		return ErrInvalidTransition
	}
	if b.DriverID == nil || *b.DriverID != cmd.DriverID {
		return ErrNotAssignedDriver
	}
	if err := s.transition(ctx, b, StatusCompleted, KeepDriver(), nil); err != nil {
		return err
	}
	s.release(ctx, b.DriverID)
	s.publish(events.TypeRideCompleted, b)
	return nil
}

// Cancel applies a user/admin cancellation after consulting the eligibility
// engine. An eligible payment gets its refund initiated in the same call.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	decision := RefundEligibility(*b)
	if !decision.CancellationAllowed {
		return ErrNotEligible
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return ErrInvalidTransition
	}
	boundDriver := b.DriverID
	reason := cmd.Reason
	if err := s.transition(ctx, b, StatusCancelled, ClearDriver(), &reason); err != nil {
		return err
	}
	s.release(ctx, boundDriver)
	// The released driver still gets the cancellation notice.
	s.publishTo(events.TypeRideCancelled, b, boundDriver)

	if decision.Eligible {
		if err := s.store.SetRefundStatus(ctx, b.ID, RefundInitiated); err != nil {
			return err
		}
		b.RefundStatus = RefundInitiated
		s.publish(events.TypeRefundInitiated, b)
	}
	return nil
}

// SubmitRating records a rating for a completed trip inside the rating window.
func (s *Service) SubmitRating(ctx context.Context, cmd RatingCommand) error {
	if cmd.Score < 1 || cmd.Score > 5 {
		return ErrBadRequest
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	decision := RatingEligibility(*b, cmd.Rater, time.Now())
	if !decision.Needed {
		return ErrNotEligible
	}
	if err := s.store.SetRating(ctx, b.ID, cmd.Rater, Rating{Score: cmd.Score, Comment: cmd.Comment}); err != nil {
		return err
	}
	s.publish(events.TypeRatingSubmitted, b)
	return nil
}

// ResolveRefund records the payment collaborator's verdict on an initiated
// refund.
func (s *Service) ResolveRefund(ctx context.Context, cmd RefundResultCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.RefundStatus != RefundInitiated {
		return ErrNotEligible
	}
	to := RefundProcessed
	evt := events.TypeRefundProcessed
	if !cmd.Succeeded {
		to = RefundFailed
		evt = events.TypeRefundFailed
	}
	if err := s.store.SetRefundStatus(ctx, b.ID, to); err != nil {
		return err
	}
	b.RefundStatus = to
	s.publish(evt, b)
	return nil
}

// Override is the operator escape hatch: it moves a booking to any status,
// bypassing the transition table. It still preserves the driver invariant, so
// a target status that requires a driver is rejected when none is bound, and
// one that forbids a driver releases the binding.
func (s *Service) Override(ctx context.Context, cmd OverrideCommand) error {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	switch cmd.To {
	case StatusPending, StatusConfirmed, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
	default:
		return ErrBadRequest
	}
	needsDriver := cmd.To == StatusAssigned || cmd.To == StatusInProgress || cmd.To == StatusCompleted
	if needsDriver && !b.HasDriver() {
		return ErrBadRequest
	}
	patch := KeepDriver()
	var released *types.ID
	if !needsDriver && b.HasDriver() {
		patch = ClearDriver()
		released = b.DriverID
	}
	if err := s.transition(ctx, b, cmd.To, patch, nil); err != nil {
		return err
	}
	s.release(ctx, released)
	if released != nil {
		s.publishTo(events.TypeBookingUpdated, b, released)
	} else {
		s.publish(events.TypeBookingUpdated, b)
	}
	return nil
}

// transition applies the single CAS write and refreshes b's local view.
func (s *Service) transition(ctx context.Context, b *Booking, to Status, patch DriverPatch, reason *string) error {
	ok, err := s.store.UpdateStatus(ctx, UpdateStatusArgs{
		ID:      b.ID,
		From:    b.Status,
		To:      to,
		Version: b.StatusVersion,
		Driver:  patch,
		Reason:  reason,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	b.Status = to
	b.StatusVersion++
	if patch.set {
		b.DriverID = patch.id
	}
	return nil
}

func (s *Service) release(ctx context.Context, driverID *types.ID) {
	if driverID == nil || s.releaser == nil {
		return
	}
	_ = s.releaser.Release(ctx, *driverID)
}

func (s *Service) publish(t events.Type, b *Booking) {
	s.publishTo(t, b, b.DriverID)
}

func (s *Service) publishTo(t events.Type, b *Booking, driverID *types.ID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      t,
		BookingID: b.ID,
		UserID:    b.UserID,
		DriverID:  driverID,
		Payload: map[string]any{
			"status":         b.Status,
			"payment_status": b.PaymentStatus,
			"refund_status":  b.RefundStatus,
		},
	})
}

const trackingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newTrackingCode() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = trackingAlphabet[int(v)%len(trackingAlphabet)]
	}
	return "SC-" + string(out)
}

// README: In-memory booking store for demo mode and hermetic tests.
package booking

import (
	"context"
	"sync"
	"time"

	"swiftcab/internal/types"
)

// MemStore implements Store with a mutex-guarded map. It honors the same
// compare-and-swap contract as the Postgres store.
type MemStore struct {
	mu       sync.Mutex
	bookings map[types.ID]*Booking
	tracking map[string]types.ID
}

func NewMemStore() *MemStore {
	return &MemStore{
		bookings: make(map[types.ID]*Booking),
		tracking: make(map[string]types.ID),
	}
}

func (s *MemStore) Create(ctx context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.bookings[b.ID] = &cp
	if b.TrackingCode != "" {
		s.tracking[b.TrackingCode] = b.ID
	}
	return nil
}

func (s *MemStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *MemStore) GetByTrackingCode(ctx context.Context, code string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tracking[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBooking(s.bookings[id]), nil
}

func (s *MemStore) UpdateStatus(ctx context.Context, args UpdateStatusArgs) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[args.ID]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != args.From || b.StatusVersion != args.Version {
		return false, nil
	}

	now := time.Now()
	b.Status = args.To
	b.StatusVersion++
	if args.Driver.set {
		b.DriverID = args.Driver.id
	}
	switch args.To {
	case StatusCompleted:
		if b.CompletedAt == nil {
			b.CompletedAt = &now
		}
		b.CancelledAt = nil
	case StatusCancelled:
		if b.CancelledAt == nil {
			b.CancelledAt = &now
		}
		b.CompletedAt = nil
	default:
		b.CompletedAt = nil
		b.CancelledAt = nil
	}
	if args.Reason != nil {
		r := *args.Reason
		b.CancelReason = &r
	}
	return true, nil
}

func (s *MemStore) SetPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.PaymentStatus = ps
	return nil
}

func (s *MemStore) SetRefundStatus(ctx context.Context, id types.ID, rs RefundStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.RefundStatus = rs
	return nil
}

func (s *MemStore) SetRating(ctx context.Context, id types.ID, rater Role, r Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	cp := r
	switch rater {
	case RoleUser:
		if b.UserRating != nil {
			return ErrConflict
		}
		b.UserRating = &cp
	case RoleDriver:
		if b.DriverRating != nil {
			return ErrConflict
		}
		b.DriverRating = &cp
	default:
		return ErrBadRequest
	}
	return nil
}

func copyBooking(b *Booking) *Booking {
	cp := *b
	if b.DriverID != nil {
		d := *b.DriverID
		cp.DriverID = &d
	}
	if b.UserRating != nil {
		r := *b.UserRating
		cp.UserRating = &r
	}
	if b.DriverRating != nil {
		r := *b.DriverRating
		cp.DriverRating = &r
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		cp.CompletedAt = &t
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		cp.CancelledAt = &t
	}
	if b.CancelReason != nil {
		r := *b.CancelReason
		cp.CancelReason = &r
	}
	return &cp
}

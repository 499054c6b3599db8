// README: Driver location updates; position write plus realtime notification.
package location

import (
	"context"

	"swiftcab/internal/modules/events"
	"swiftcab/internal/types"
)

type Publisher interface {
	Publish(events.Event)
}

type Service struct {
	store *Store
	bus   Publisher
}

func NewService(store *Store, bus Publisher) *Service {
	return &Service{store: store, bus: bus}
}

type Update struct {
	DriverID  types.ID
	BookingID types.ID
	UserID    types.ID
	Lat, Lng  float64
}

// Apply writes the position and notifies the rooms watching the driver.
// No routing or ETA math happens here; consumers treat the position as a hint.
func (s *Service) Apply(ctx context.Context, u Update) error {
	if err := s.store.SetPosition(ctx, u.DriverID, u.Lat, u.Lng); err != nil {
		return err
	}
	if s.bus != nil {
		d := u.DriverID
		s.bus.Publish(events.Event{
			Type:      events.TypeDriverLocationUpdated,
			BookingID: u.BookingID,
			UserID:    u.UserID,
			DriverID:  &d,
			Payload:   map[string]any{"lat": u.Lat, "lng": u.Lng},
		})
	}
	return nil
}

// README: Read-through cache of provisional booking views awaiting backend confirmation.
package dispatch

import (
	"sync"
	"time"

	"swiftcab/internal/modules/booking"
	"swiftcab/internal/types"
)

// ProvisionalView is an optimistic local update applied while the backend is
// being retried. It is always explicitly tagged; it is reconciled away on
// success and rolled back on terminal failure, never left ambiguous.
type ProvisionalView struct {
	Booking   booking.Booking
	AppliedAt time.Time
}

type Overlay struct {
	mu      sync.RWMutex
	entries map[types.ID]ProvisionalView
}

func NewOverlay() *Overlay {
	return &Overlay{entries: make(map[types.ID]ProvisionalView)}
}

// Put records an optimistic view for the booking.
func (o *Overlay) Put(b booking.Booking) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[b.ID] = ProvisionalView{Booking: b, AppliedAt: time.Now()}
}

// Get returns the provisional view for the booking, if one is pending.
func (o *Overlay) Get(id types.ID) (ProvisionalView, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.entries[id]
	return v, ok
}

// Resolve drops the provisional view after the authoritative write landed.
func (o *Overlay) Resolve(id types.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, id)
}

// Rollback discards the provisional view after retries were exhausted.
func (o *Overlay) Rollback(id types.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, id)
}

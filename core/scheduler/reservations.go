package scheduler

import "sync"

// Reservations maps tile ids to the telescope that first scheduled them. It
// is the only state shared between telescopes. A nil *Reservations disables
// exclusivity: every lookup reports no owner and every reservation succeeds.
type Reservations struct {
	mu    sync.RWMutex
	owner map[string]string
}

// NewReservations returns an empty table.
func NewReservations() *Reservations {
	return &Reservations{owner: map[string]string{}}
}

// Owner returns the telescope holding tile, if any.
func (r *Reservations) Owner(tile string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.owner[tile]
	return o, ok
}

// Reserve claims tile for telescope unless another telescope holds it. It
// returns the owner after the call.
func (r *Reservations) Reserve(tile, telescope string) string {
	if r == nil {
		return telescope
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.owner[tile]; ok {
		return o
	}
	r.owner[tile] = telescope
	return telescope
}

// Len returns the number of reserved tiles.
func (r *Reservations) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

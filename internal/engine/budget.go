package engine

import "sync"

// leaseBudget caps the number of zone leases across all workers for batch
// runs. A zero budget means unlimited.
type leaseBudget struct {
	unlimited bool
	mu        sync.Mutex
	remaining int
}

func newLeaseBudget(maxZones int) *leaseBudget {
	return &leaseBudget{
		unlimited: maxZones <= 0,
		remaining: maxZones,
	}
}

// take reserves one lease slot. Reports false when the budget is spent.
func (b *leaseBudget) take() bool {
	if b.unlimited {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// put returns an unused slot, for leases that found no zone.
func (b *leaseBudget) put() {
	if b.unlimited {
		return
	}
	b.mu.Lock()
	b.remaining++
	b.mu.Unlock()
}

// batch reports whether the engine is running with a finite budget, in
// which case an empty queue ends the run instead of backing off.
func (b *leaseBudget) batch() bool {
	return !b.unlimited
}

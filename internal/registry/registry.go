// Package registry tracks the set of addresses being monitored and the
// per-address poll watermark.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ledgerwatch/internal/domain"
)

// ValidationError reports a malformed address passed to Add.
type ValidationError struct {
	Address string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Address, e.Reason)
}

// Registry is an in-memory set of watched addresses with per-address
// watermarks. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	addresses  map[string]struct{}
	watermarks map[string]time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		addresses:  make(map[string]struct{}),
		watermarks: make(map[string]time.Time),
	}
}

// Add registers an address for monitoring. The watermark starts at the
// zero time so the first poll reports the full lookback window. Adding
// an existing address is a no-op and keeps its watermark.
func (r *Registry) Add(addr string) error {
	if !domain.ValidAddress(addr) {
		return &ValidationError{Address: domain.TruncateAddress(addr), Reason: "must be 0x followed by 64 hex characters"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.addresses[addr]; ok {
		return nil
	}
	r.addresses[addr] = struct{}{}
	r.watermarks[addr] = time.Time{}
	return nil
}

// Remove unregisters an address and drops its watermark. Returns false
// if the address was not registered.
func (r *Registry) Remove(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.addresses[addr]; !ok {
		return false
	}
	delete(r.addresses, addr)
	delete(r.watermarks, addr)
	return true
}

// Contains reports whether addr is registered.
func (r *Registry) Contains(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.addresses[addr]
	return ok
}

// Len returns the number of registered addresses.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.addresses)
}

// Snapshot returns the registered addresses sorted, as a copy. Callers
// iterate the snapshot without holding the registry lock.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.addresses))
	for addr := range r.addresses {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Validate re-checks every registered address and returns the invalid
// subset. Useful after loading persisted addresses from storage.
func (r *Registry) Validate() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var invalid []string
	for addr := range r.addresses {
		if !domain.ValidAddress(addr) {
			invalid = append(invalid, addr)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// Watermark returns the poll watermark for addr. The zero time is
// returned for unknown addresses.
func (r *Registry) Watermark(addr string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.watermarks[addr]
}

// SetWatermark advances the watermark for addr. Watermarks never move
// backwards; a stale value is ignored. Unknown addresses are ignored,
// which covers an address removed mid-poll.
func (r *Registry) SetWatermark(addr string, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.addresses[addr]; !ok {
		return
	}
	if ts.After(r.watermarks[addr]) {
		r.watermarks[addr] = ts
	}
}

// Package registry keeps the markers placed on the map, in draw order.
package registry

import (
	"sync"

	"github.com/samber/lo"

	"github.com/vmap/mapviewer/pkg/core"
)

// RemoveListener is notified after a marker leaves the registry.
type RemoveListener func(id core.MarkerID)

// Registry holds the markers currently placed on the map, in insertion order.
// Ids are assigned by the registry and never reused, even across Reset.
type Registry struct {
	mu        sync.RWMutex
	markers   map[core.MarkerID]core.Marker
	order     []core.MarkerID
	lastID    core.MarkerID
	listeners []RemoveListener
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{
		markers: make(map[core.MarkerID]core.Marker),
	}
}

// Add stores m under a fresh id and returns it. Any id already set on m is ignored.
func (r *Registry) Add(m core.Marker) core.MarkerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	m.ID = r.lastID
	r.markers[m.ID] = m
	r.order = append(r.order, m.ID)
	return m.ID
}

// Get retrieves a marker by id
func (r *Registry) Get(id core.MarkerID) (core.Marker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markers[id]
	return m, ok
}

// Remove deletes a marker and notifies listeners. It reports whether the id was present.
func (r *Registry) Remove(id core.MarkerID) bool {
	r.mu.Lock()
	if _, ok := r.markers[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.markers, id)
	r.order = lo.Without(r.order, id)
	listeners := r.listeners
	r.mu.Unlock()

	// listeners run unlocked so they may read the registry
	for _, l := range listeners {
		l(id)
	}
	return true
}

// All returns a snapshot of every marker in insertion order.
func (r *Registry) All() []core.Marker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(id core.MarkerID, _ int) core.Marker { return r.markers[id] })
}

// Len returns the number of markers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// OnRemove registers a listener called for every removed marker, including
// markers dropped by Reset.
func (r *Registry) OnRemove(l RemoveListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Reset removes all markers. The id sequence keeps counting.
func (r *Registry) Reset() {
	r.mu.Lock()
	removed := r.order
	r.markers = make(map[core.MarkerID]core.Marker)
	r.order = nil
	listeners := r.listeners
	r.mu.Unlock()

	for _, id := range removed {
		for _, l := range listeners {
			l(id)
		}
	}
}

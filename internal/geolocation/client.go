package geolocation

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/vmap/mapviewer/pkg/core"
)

// Browser PositionError codes.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

type pendingRequest struct {
	id      uint64
	success func(core.Coordinate)
	failure func(error)
}

// ClientProvider answers requests with positions reported by a connected
// client, typically the browser's navigator.geolocation.
type ClientProvider struct {
	mu      sync.Mutex
	pending []pendingRequest
	nextID  uint64
	// OnRequest is called when a request starts waiting, so the transport
	// can ask the client for a fix.
	OnRequest func()
}

// NewClientProvider creates a ClientProvider.
func NewClientProvider() *ClientProvider {
	return &ClientProvider{}
}

// GetCurrentPosition implements Provider. The request stays pending until
// Report, ReportError or Unsupported is called, or until ctx ends.
func (p *ClientProvider) GetCurrentPosition(ctx context.Context, success func(core.Coordinate), failure func(error)) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.pending = append(p.pending, pendingRequest{id: id, success: success, failure: failure})
	notify := p.OnRequest
	p.mu.Unlock()

	context.AfterFunc(ctx, func() { p.forget(id) })

	if notify != nil {
		notify()
	}
}

// forget drops a request whose caller stopped waiting.
func (p *ClientProvider) forget(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = lo.Reject(p.pending, func(r pendingRequest, _ int) bool { return r.id == id })
}

// Pending returns the number of requests waiting for the client.
func (p *ClientProvider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Report answers every pending request with the client's position.
func (p *ClientProvider) Report(c core.Coordinate) {
	for _, req := range p.drain() {
		req.success(c)
	}
}

// ReportError fails every pending request with a browser PositionError.
func (p *ClientProvider) ReportError(code int, message string) {
	err := fmt.Errorf("%w: code %d: %s", ErrPositionUnavailable, code, message)
	for _, req := range p.drain() {
		req.failure(err)
	}
}

// Unsupported fails every pending request because the client lacks the capability.
func (p *ClientProvider) Unsupported() {
	for _, req := range p.drain() {
		req.failure(ErrUnsupported)
	}
}

func (p *ClientProvider) drain() []pendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

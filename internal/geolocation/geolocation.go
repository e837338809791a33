// Package geolocation resolves the device position once, asynchronously.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmap/mapviewer/internal/geo"
	"github.com/vmap/mapviewer/pkg/core"
)

var (
	// ErrUnsupported is returned when the host has no geolocation capability.
	ErrUnsupported = errors.New("geolocation is not supported")
	// ErrPositionUnavailable covers permission denial, timeouts and provider failures.
	ErrPositionUnavailable = errors.New("position unavailable")
)

// Provider is the platform capability. Exactly one of success or failure
// should be called; extra calls are ignored.
type Provider interface {
	GetCurrentPosition(ctx context.Context, success func(core.Coordinate), failure func(error))
}

// Result is the outcome of one resolution.
type Result struct {
	Position core.Coordinate
	Err      error
}

// Resolver performs one-shot lookups. It never retries.
type Resolver struct {
	provider Provider
	timeout  time.Duration
}

// NewResolver creates a Resolver. A nil provider makes every lookup fail with
// ErrUnsupported; a zero timeout waits for the provider or the context.
func NewResolver(p Provider, timeout time.Duration) *Resolver {
	return &Resolver{provider: p, timeout: timeout}
}

// Resolve starts a lookup and returns immediately. The channel yields exactly
// one Result and is then closed.
func (r *Resolver) Resolve(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		out <- r.resolve(ctx)
	}()
	return out
}

// ResolveFunc is the continuation form of Resolve. It returns immediately;
// the lookup and fn both run on a separate goroutine.
func (r *Resolver) ResolveFunc(ctx context.Context, fn func(Result)) {
	go func() { fn(r.resolve(ctx)) }()
}

func (r *Resolver) resolve(ctx context.Context) Result {
	if r.provider == nil {
		return Result{Err: ErrUnsupported}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan Result, 1)
	var once sync.Once
	deliver := func(res Result) {
		once.Do(func() { done <- res })
	}

	r.provider.GetCurrentPosition(ctx,
		func(c core.Coordinate) {
			if c.Frame == core.FrameGeographic && !geo.ValidLonLat(c.X, c.Y) {
				deliver(Result{Err: fmt.Errorf("%w: invalid position %s", ErrPositionUnavailable, c)})
				return
			}
			deliver(Result{Position: c})
		},
		func(err error) {
			deliver(Result{Err: classify(err)})
		},
	)

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		// a late provider answer may already be waiting
		select {
		case res := <-done:
			return res
		default:
		}
		return Result{Err: fmt.Errorf("%w: %w", ErrPositionUnavailable, ctx.Err())}
	}
}

func classify(err error) error {
	switch {
	case err == nil:
		return ErrPositionUnavailable
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrPositionUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
	}
}

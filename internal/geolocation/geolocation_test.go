package geolocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmap/mapviewer/pkg/core"
)

// funcProvider adapts a function to Provider for testing
type funcProvider func(ctx context.Context, success func(core.Coordinate), failure func(error))

func (f funcProvider) GetCurrentPosition(ctx context.Context, success func(core.Coordinate), failure func(error)) {
	f(ctx, success, failure)
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func TestResolve_NilProviderUnsupported(t *testing.T) {
	r := NewResolver(nil, 0)

	res := receive(t, r.Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrUnsupported)
}

func TestResolve_Success(t *testing.T) {
	r := NewResolver(StaticProvider{Position: core.LonLat(126.978, 37.5665)}, time.Second)

	res := receive(t, r.Resolve(context.Background()))

	require.NoError(t, res.Err)
	assert.Equal(t, core.LonLat(126.978, 37.5665), res.Position)
}

func TestResolve_ChannelClosedAfterOneResult(t *testing.T) {
	r := NewResolver(StaticProvider{Position: core.LonLat(1, 2)}, 0)
	ch := r.Resolve(context.Background())

	receive(t, ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestResolve_DoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	p := funcProvider(func(_ context.Context, success func(core.Coordinate), _ func(error)) {
		go func() {
			<-release
			success(core.LonLat(1, 2))
		}()
	})
	r := NewResolver(p, 0)

	ch := r.Resolve(context.Background())
	select {
	case <-ch:
		t.Fatal("result delivered before provider answered")
	default:
	}

	close(release)
	res := receive(t, ch)
	require.NoError(t, res.Err)
}

func TestResolve_ProviderFailureIsPositionUnavailable(t *testing.T) {
	cause := errors.New("permission denied")
	p := funcProvider(func(_ context.Context, _ func(core.Coordinate), failure func(error)) {
		failure(cause)
	})

	res := receive(t, NewResolver(p, 0).Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
	assert.ErrorIs(t, res.Err, cause)
}

func TestResolve_ProviderReportsUnsupported(t *testing.T) {
	p := funcProvider(func(_ context.Context, _ func(core.Coordinate), failure func(error)) {
		failure(ErrUnsupported)
	})

	res := receive(t, NewResolver(p, 0).Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrUnsupported)
	assert.NotErrorIs(t, res.Err, ErrPositionUnavailable)
}

func TestResolve_Timeout(t *testing.T) {
	p := funcProvider(func(context.Context, func(core.Coordinate), func(error)) {})

	res := receive(t, NewResolver(p, 20*time.Millisecond).Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestResolve_InvalidPosition(t *testing.T) {
	res := receive(t, NewResolver(StaticProvider{Position: core.LonLat(0, 120)}, 0).Resolve(context.Background()))

	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
}

func TestResolve_OnlyFirstAnswerCounts(t *testing.T) {
	p := funcProvider(func(_ context.Context, success func(core.Coordinate), failure func(error)) {
		success(core.LonLat(1, 2))
		failure(errors.New("late"))
		success(core.LonLat(3, 4))
	})

	res := receive(t, NewResolver(p, 0).Resolve(context.Background()))

	require.NoError(t, res.Err)
	assert.Equal(t, core.LonLat(1, 2), res.Position)
}

func TestResolveFunc(t *testing.T) {
	r := NewResolver(StaticProvider{Position: core.LonLat(5, 6)}, 0)
	got := make(chan Result, 1)

	r.ResolveFunc(context.Background(), func(res Result) { got <- res })

	res := receive(t, got)
	assert.Equal(t, core.LonLat(5, 6), res.Position)
}

func TestResolveFunc_DoesNotBlockCaller(t *testing.T) {
	silent := funcProvider(func(context.Context, func(core.Coordinate), func(error)) {})
	r := NewResolver(silent, 300*time.Millisecond)
	got := make(chan Result, 1)

	start := time.Now()
	r.ResolveFunc(context.Background(), func(res Result) { got <- res })
	assert.Less(t, time.Since(start), 50*time.Millisecond, "ResolveFunc must return before the lookup ends")

	res := receive(t, got)
	assert.ErrorIs(t, res.Err, ErrPositionUnavailable)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

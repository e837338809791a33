package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmap/mapviewer/pkg/core"
)

func marker(label string) core.Marker {
	return core.Marker{Position: core.LonLat(126.978, 37.5665), Label: label}
}

func TestRegistry_New(t *testing.T) {
	r := New()

	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.All())
}

func TestRegistry_AddAndGet(t *testing.T) {
	r := New()

	id := r.Add(marker("Null Island"))

	m, ok := r.Get(id)
	require.True(t, ok, "expected to find marker")
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "Null Island", m.Label)
}

func TestRegistry_Add_IgnoresCallerID(t *testing.T) {
	r := New()

	m := marker("a")
	m.ID = 99
	id := r.Add(m)

	assert.Equal(t, core.MarkerID(1), id)
	_, ok := r.Get(99)
	assert.False(t, ok)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := New()

	_, ok := r.Get(42)
	assert.False(t, ok, "expected not to find nonexistent marker")
}

func TestRegistry_All_InsertionOrder(t *testing.T) {
	r := New()
	r.Add(marker("first"))
	r.Add(marker("second"))
	r.Add(marker("third"))

	labels := []string{}
	for _, m := range r.All() {
		labels = append(labels, m.Label)
	}

	assert.Equal(t, []string{"first", "second", "third"}, labels)
}

func TestRegistry_All_IsSnapshot(t *testing.T) {
	r := New()
	r.Add(marker("a"))

	snap := r.All()
	r.Add(marker("b"))
	snap[0].Label = "mutated"

	assert.Len(t, snap, 1)
	m, _ := r.Get(1)
	assert.Equal(t, "a", m.Label)
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	a := r.Add(marker("a"))
	b := r.Add(marker("b"))

	assert.True(t, r.Remove(a))

	_, ok := r.Get(a)
	assert.False(t, ok, "expected not to find marker after remove")
	_, ok = r.Get(b)
	assert.True(t, ok, "expected other marker to still exist")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Remove_NonExistent(t *testing.T) {
	r := New()

	assert.False(t, r.Remove(7))
}

func TestRegistry_IDsNeverReused(t *testing.T) {
	r := New()
	seen := map[core.MarkerID]bool{}

	for i := 0; i < 5; i++ {
		id := r.Add(marker("x"))
		require.False(t, seen[id], "id %d reused", id)
		seen[id] = true
		r.Remove(id)
	}

	r.Reset()
	id := r.Add(marker("after reset"))
	assert.False(t, seen[id], "id reused after reset")
}

func TestRegistry_OnRemove(t *testing.T) {
	r := New()
	var removed []core.MarkerID
	r.OnRemove(func(id core.MarkerID) { removed = append(removed, id) })

	a := r.Add(marker("a"))
	b := r.Add(marker("b"))
	r.Remove(a)
	r.Remove(a) // absent, no notification

	assert.Equal(t, []core.MarkerID{a}, removed)

	r.Reset()
	assert.Equal(t, []core.MarkerID{a, b}, removed)
}

func TestRegistry_ListenerCanReadRegistry(t *testing.T) {
	r := New()
	var lenAtNotify int
	r.OnRemove(func(core.MarkerID) { lenAtNotify = r.Len() })

	r.Add(marker("a"))
	r.Add(marker("b"))
	r.Remove(1)

	assert.Equal(t, 1, lenAtNotify)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Add(marker("m"))
		}()
		go func() {
			defer wg.Done()
			_ = r.All()
		}()
	}

	wg.Wait()
	assert.Equal(t, 100, r.Len())
}

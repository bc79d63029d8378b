package syncmap

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_Basic(t *testing.T) {
	m := New[int]()

	_, ok := m.Load("a")
	require.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	require.True(t, loaded)
	require.Equal(t, 1, actual)

	actual, loaded = m.LoadOrStore("b", 3)
	require.False(t, loaded)
	require.Equal(t, 3, actual)
	require.Equal(t, 2, m.Len())

	m.Delete("a")
	require.Equal(t, 1, m.Len())

	m.Clear()
	require.Equal(t, 0, m.Len())
}

func TestMap_Range(t *testing.T) {
	m := New[int]()
	for i := range 50 {
		m.Store(strconv.Itoa(i), i)
	}

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	require.Equal(t, 49*50/2, sum)

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	require.Equal(t, 3, visited)
}

func TestMap_LoadOrComputeError(t *testing.T) {
	m := New[string]()
	boom := errors.New("boom")

	_, err := m.LoadOrCompute("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, m.Len(), "errors are not cached")

	v, err := m.LoadOrCompute("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestMap_LoadOrComputeConcurrent(t *testing.T) {
	m := New[*int]()
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.LoadOrCompute("shared", func() (*int, error) {
				calls.Add(1)
				x := int(calls.Load())
				return &x, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	// Population may run more than once, but every caller sees the same winner.
	require.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}

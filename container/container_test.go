package container

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	id     int
	closed *[]int
}

func (w *widget) Close() error {
	*w.closed = append(*w.closed, w.id)
	return nil
}

func TestNamedSingletonIsConstructedOnce(t *testing.T) {
	c := NewCollection()
	var calls atomic.Int32
	require.NoError(t, AddNamedSingleton(c, "a", func(*Provider) (*widget, error) {
		calls.Add(1)
		return &widget{id: 1, closed: new([]int)}, nil
	}))
	p := c.Build()

	var wg sync.WaitGroup
	results := make([]*widget, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GetRequiredNamed[*widget](p, "a")
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, w := range results {
		require.Same(t, results[0], w)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	c := NewCollection()
	require.NoError(t, AddNamedSingleton(c, "a", func(*Provider) (string, error) { return "first", nil }))
	require.NoError(t, AddNamedSingleton(c, "a", func(*Provider) (string, error) { return "second", nil }))
	got, err := GetRequiredNamed[string](c.Build(), "a")
	require.NoError(t, err)
	require.Equal(t, "second", got)
}

func TestMissingServices(t *testing.T) {
	p := NewCollection().Build()

	_, ok, err := GetNamed[string](p, "nope")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = GetRequiredNamed[string](p, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = GetRequired[int](p)
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = GetNamed[string](p, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFailedConstructionIsRetried(t *testing.T) {
	c := NewCollection()
	boom := errors.New("boom")
	attempts := 0
	require.NoError(t, AddSingleton(c, func(*Provider) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, boom
		}
		return 42, nil
	}))
	p := c.Build()

	_, err := GetRequired[int](p)
	require.Same(t, boom, err)

	got, err := GetRequired[int](p)
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestEnsureSharesItemAndResolvesIt(t *testing.T) {
	type registry struct{ n int }
	c := NewCollection()
	first := Ensure(c, func() *registry { return &registry{n: 1} })
	second := Ensure(c, func() *registry { return &registry{n: 2} })
	require.Same(t, first, second)

	got, err := GetRequired[*registry](c.Build())
	require.NoError(t, err)
	require.Same(t, first, got)
}

func TestCloseReverseOrder(t *testing.T) {
	closed := []int{}
	c := NewCollection()
	for id, name := range []string{"one", "two"} {
		id := id + 1
		require.NoError(t, AddNamedSingleton(c, name, func(*Provider) (*widget, error) {
			return &widget{id: id, closed: &closed}, nil
		}))
	}
	require.NoError(t, AddInstance(c, &widget{id: 99, closed: &closed}))
	p := c.Build()

	_, err := GetRequiredNamed[*widget](p, "one")
	require.NoError(t, err)
	_, err = GetRequiredNamed[*widget](p, "two")
	require.NoError(t, err)
	_, err = GetRequired[*widget](p)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.Equal(t, []int{2, 1}, closed)

	_, err = GetRequiredNamed[*widget](p, "one")
	require.NoError(t, err)
}

func TestInvalidRegistrations(t *testing.T) {
	c := NewCollection()
	require.ErrorIs(t, AddNamedSingleton[string](c, "", func(*Provider) (string, error) { return "", nil }), ErrInvalidArgument)
	require.ErrorIs(t, AddNamedSingleton[string](c, "x", nil), ErrInvalidArgument)
	require.ErrorIs(t, AddSingleton[string](c, nil), ErrInvalidArgument)
	require.False(t, Contains[string](c, "x"))
}

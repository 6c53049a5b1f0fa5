package track

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArenaErrors(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := NewArena(capacity)
		assert.True(t, errors.Is(err, ErrInvalidConfig), "capacity %d", capacity)
	}
}

func TestArenaOccupancy(t *testing.T) {
	a, err := NewArena(70)
	require.NoError(t, err)
	assert.Equal(t, 70, a.Capacity())
	assert.Equal(t, 0, a.Size())

	require.NoError(t, a.Activate(3))
	require.NoError(t, a.Activate(65))
	assert.True(t, errors.Is(a.Activate(3), ErrSlotOccupied))
	assert.True(t, a.Occupied(3))
	assert.True(t, a.Occupied(65))
	assert.False(t, a.Occupied(4))
	assert.Equal(t, 2, a.Size())
	assert.Equal(t, 68, a.NumVacancies())

	assert.Equal(t, []TrackSlotId{3, 65}, a.Occupants(nil))
	vac := a.Vacancies(nil)
	assert.Len(t, vac, 68)
	assert.Equal(t, TrackSlotId(0), vac[0])
	assert.Equal(t, TrackSlotId(69), vac[len(vac)-1])

	require.NoError(t, a.Release(3))
	assert.True(t, errors.Is(a.Release(3), ErrSlotEmpty))
	assert.Equal(t, 1, a.Size())

	a.Reset()
	assert.Equal(t, 0, a.Size())
	assert.False(t, a.Occupied(65))
}

func TestArenaClaim(t *testing.T) {
	a, err := NewArena(3)
	require.NoError(t, err)
	require.NoError(t, a.Activate(1))

	table := []TrackSlotId{0, 2}
	for i, want := range table {
		slot, err := a.Claim()
		require.NoError(t, err)
		if slot != want {
			t.Errorf("%d) Expected claim of slot %d, got %d.", i, want, slot)
		}
	}

	_, err = a.Claim()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotsExhausted))
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 3, capErr.Capacity)
	assert.Equal(t, 1, capErr.Lost())
}

func TestArenaClaimAcrossWords(t *testing.T) {
	a, err := NewArena(130)
	require.NoError(t, err)

	for want := 0; want < 130; want++ {
		slot, err := a.Claim()
		require.NoError(t, err)
		require.Equal(t, TrackSlotId(want), slot)
	}
	_, err = a.Claim()
	assert.True(t, errors.Is(err, ErrSlotsExhausted))
	assert.Empty(t, a.Vacancies(nil))
	assert.Len(t, a.Occupants(nil), 130)

	require.NoError(t, a.Release(128))
	require.NoError(t, a.Release(70))
	assert.Equal(t, []TrackSlotId{70, 128}, a.Vacancies(nil))

	table := []TrackSlotId{70, 128}
	for i, want := range table {
		slot, err := a.Claim()
		require.NoError(t, err)
		if slot != want {
			t.Errorf("%d) Expected claim of slot %d, got %d.", i, want, slot)
		}
	}
	assert.Equal(t, 130, a.Size())
}

func TestArenaAssign(t *testing.T) {
	a, err := NewArena(2)
	require.NoError(t, err)

	init := Initializer{Track: 4, Parent: NoTrack, Event: 2, Energy: 10, Weight: 1}
	assert.True(t, init.IsPrimary())
	a.NumSteps[1] = 9
	a.Aborted[1] = true
	a.Assign(1, &init)

	assert.Equal(t, Alive, a.Status[1])
	assert.Equal(t, int32(0), a.NumSteps[1])
	assert.False(t, a.Aborted[1])
	assert.Equal(t, TrackId(4), a.Track[1])
	assert.Equal(t, EventId(2), a.Event[1])
	assert.Equal(t, 10.0, a.Energy[1])

	a.Kill(1, true)
	assert.Equal(t, Killed, a.Status[1])
	assert.True(t, a.Aborted[1])
	assert.True(t, a.Status[1].Dead())
}

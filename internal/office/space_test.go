package office

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceOccupancy(t *testing.T) {
	s := &Space{ID: 3, Type: BreakArea, Capacity: 2}

	require.NoError(t, s.AddOccupant(7))
	require.NoError(t, s.AddOccupant(9))
	assert.True(t, s.IsFull())

	err := s.AddOccupant(11)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, []uint64{7, 9}, s.Occupants)

	require.NoError(t, s.RemoveOccupant(7))
	assert.Equal(t, []uint64{9}, s.Occupants)
	assert.False(t, s.IsFull())

	assert.ErrorIs(t, s.RemoveOccupant(7), ErrNotPresent)
	assert.ErrorIs(t, s.AddOccupant(9), ErrAlreadyPresent)
}

func TestRemoveOccupantKeepsOrder(t *testing.T) {
	s := &Space{Capacity: 5}
	for _, id := range []uint64{1, 2, 3, 4} {
		require.NoError(t, s.AddOccupant(id))
	}
	require.NoError(t, s.RemoveOccupant(2))
	assert.Equal(t, []uint64{1, 3, 4}, s.Occupants)
}

func TestParseSpaceType(t *testing.T) {
	tests := []struct {
		in   string
		want SpaceType
	}{
		{"Workstation", Workstation},
		{"Meeting Room", MeetingRoom},
		{"break_area", BreakArea},
		{"quiet-area", QuietArea},
	}
	for _, tt := range tests {
		got, err := ParseSpaceType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		round, err := ParseSpaceType(got.String())
		require.NoError(t, err)
		assert.Equal(t, got, round)
	}

	_, err := ParseSpaceType("Rooftop")
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(Point{0, 0}, Point{3, 4}), 1e-12)
	assert.Zero(t, Distance(Point{1, 1}, Point{1, 1}))
}

func TestNewFloorRejectsUnknownType(t *testing.T) {
	_, err := NewFloor([]*Space{
		{ID: 0, Type: Workstation, Capacity: 2},
		{ID: 1, Type: SpaceType(NumSpaceTypes), Capacity: 2},
	}, 10, 10)
	assert.Error(t, err)
}

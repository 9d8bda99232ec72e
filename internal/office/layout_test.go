package office

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultLayout(t *testing.T) {
	floor, err := Generate(DefaultLayoutConfig())
	require.NoError(t, err)

	counts := floor.TypeCounts()
	assert.Equal(t, 30, counts[Workstation])
	assert.Equal(t, 10, counts[MeetingRoom])
	assert.Equal(t, 5, counts[BreakArea])
	assert.Equal(t, 6, counts[QuietArea])
	assert.Equal(t, 30*4+10*6+5*10+6*4, floor.TotalCapacity())

	seen := make(map[Point]bool)
	for i, s := range floor.Spaces {
		assert.Equal(t, SpaceID(i), s.ID)
		assert.GreaterOrEqual(t, s.Position.X, 0.0)
		assert.LessOrEqual(t, s.Position.X, floor.Width)
		assert.GreaterOrEqual(t, s.Position.Y, 0.0)
		assert.LessOrEqual(t, s.Position.Y, floor.Height)
		assert.False(t, seen[s.Position], "duplicate position %v", s.Position)
		seen[s.Position] = true
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, err := Generate(DefaultLayoutConfig())
	require.NoError(t, err)
	b, err := Generate(DefaultLayoutConfig())
	require.NoError(t, err)
	for i := range a.Spaces {
		assert.Equal(t, a.Spaces[i].Position, b.Spaces[i].Position)
	}
}

func TestGenerateExplicitPositions(t *testing.T) {
	cfg := LayoutConfig{
		Width: 10, Height: 10,
		Groups: []SpaceGroup{
			{Type: Workstation, Count: 2, Capacity: 1, Positions: []Point{{1, 1}, {4, 5}}},
		},
	}
	floor, err := Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, Point{4, 5}, floor.Get(1).Position)
	assert.Nil(t, floor.Get(2))
	assert.Nil(t, floor.Get(NoSpace))
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	_, err := Generate(LayoutConfig{Width: 10, Height: 10})
	assert.Error(t, err)

	_, err = Generate(LayoutConfig{Width: 10, Height: 10, Groups: []SpaceGroup{{Type: BreakArea, Count: 1, Capacity: 0}}})
	assert.Error(t, err)

	_, err = Generate(LayoutConfig{Width: 10, Height: 10, Groups: []SpaceGroup{
		{Type: BreakArea, Count: 2, Capacity: 1, Positions: []Point{{0, 0}}},
	}})
	assert.Error(t, err)
}

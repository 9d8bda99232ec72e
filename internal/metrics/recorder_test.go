package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/office"
)

func testFloor(t *testing.T) *office.Floor {
	t.Helper()
	f, err := office.NewFloor([]*office.Space{
		{ID: 0, Type: office.Workstation, Capacity: 2},
		{ID: 1, Type: office.BreakArea, Capacity: 3},
	}, 10, 10)
	require.NoError(t, err)
	return f
}

func TestRecordTick(t *testing.T) {
	floor := testFloor(t)
	a1, a2, a3 := agents.New(1, 0), agents.New(2, 0), agents.New(3, 0)
	a2.Knowledge.Add(agents.SeedMarker)
	require.NoError(t, floor.Spaces[0].AddOccupant(1))
	require.NoError(t, floor.Spaces[1].AddOccupant(2))
	require.NoError(t, floor.Spaces[1].AddOccupant(3))

	r := NewRecorder(agents.SeedMarker)
	assert.Nil(t, r.LastFrame())
	dp := r.RecordTick(0, []*agents.Agent{a1, a2, a3}, floor)
	assert.Equal(t, 1, dp.Informed)
	assert.Equal(t, 3, dp.Total)
	assert.InDelta(t, 33.333, dp.Percent, 0.01)

	frame := r.LastFrame()
	require.NotNil(t, frame)
	assert.Equal(t, []uint64{2, 3}, frame.Occupants[1])
	assert.Equal(t, []agents.AgentID{2}, frame.Informed)

	r.RecordInteraction(0, 2, 3)
	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Ticks())
	assert.Equal(t, []int{1, 2}, snap.Usage[0].BySpace)
	assert.Equal(t, 1, snap.Usage[0].ByType[office.Workstation])
	assert.Equal(t, 2, snap.Usage[0].ByType[office.BreakArea])
	assert.Equal(t, []Interaction{{Tick: 0, A: 2, B: 3}}, snap.Interactions)
	assert.Equal(t, 1, r.InteractionCount())
}

func TestSnapshotIsACopy(t *testing.T) {
	floor := testFloor(t)
	r := NewRecorder(agents.SeedMarker)
	r.RecordTick(0, nil, floor)
	snap := r.Snapshot()
	snap.Usage[0].BySpace[0] = 99
	assert.Zero(t, r.Snapshot().Usage[0].BySpace[0])
	assert.Zero(t, snap.Final().Percent)
}

func TestSnapshotHelpers(t *testing.T) {
	var empty Snapshot
	assert.Equal(t, DiffusionPoint{}, empty.Final())

	s := Snapshot{
		Diffusion: []DiffusionPoint{{Tick: 0, Informed: 1}, {Tick: 1, Informed: 4}},
		Usage: []UsagePoint{
			{ByType: [office.NumSpaceTypes]int{1, 0, 2, 0}},
			{ByType: [office.NumSpaceTypes]int{0, 3, 1, 0}},
		},
	}
	assert.Equal(t, 4, s.Final().Informed)
	assert.Equal(t, [office.NumSpaceTypes]int{1, 3, 3, 0}, s.TypeTotals())
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/metrics"
	"github.com/talgya/office-diffusion/internal/office"
	"github.com/talgya/office-diffusion/internal/social"
)

func testFloor(t *testing.T, spaces ...*office.Space) *office.Floor {
	t.Helper()
	for i, sp := range spaces {
		sp.ID = office.SpaceID(i)
	}
	f, err := office.NewFloor(spaces, 100, 100)
	require.NoError(t, err)
	return f
}

func singleRoomConfig(t *testing.T) InitConfig {
	return InitConfig{
		Population:          10,
		TeamCount:           1,
		MinTeamSize:         10,
		FriendshipEdges:     0,
		HierarchyLevels:     3,
		HierarchyAdjustment: 0,
		Speed:               1,
		Floor:               testFloor(t, &office.Space{Type: office.Workstation, Capacity: 10}),
		Seed:                7,
	}
}

func smallOfficeConfig(seed uint64) InitConfig {
	cfg := DefaultInitConfig()
	cfg.Population = 40
	cfg.TeamCount = 5
	cfg.MinTeamSize = 8
	cfg.Layout.Groups = []office.SpaceGroup{
		{Type: office.Workstation, Count: 12, Capacity: 3},
		{Type: office.MeetingRoom, Count: 3, Capacity: 6},
		{Type: office.BreakArea, Count: 3, Capacity: 6},
		{Type: office.QuietArea, Count: 4, Capacity: 2},
	}
	cfg.Seed = seed
	return cfg
}

func TestSingleRoomForcedSharingInformsEveryone(t *testing.T) {
	sim, err := Initialize(singleRoomConfig(t))
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, sim.State())

	rc := DefaultRunConfig()
	rc.Ticks = 1
	rc.Diffusion = &DiffusionConfig{Forced: Force(1)}
	snap, err := sim.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, sim.State())
	assert.Equal(t, 1, snap.Ticks())
	assert.Equal(t, 10, snap.Final().Informed)
	assert.InDelta(t, 100.0, snap.Final().Percent, 1e-9)
	assert.Len(t, snap.Interactions, 45)
	for _, a := range sim.Agents {
		assert.True(t, a.Knowledge.Has(agents.SeedMarker), "agent %d", a.ID)
	}
	require.NoError(t, sim.CheckInvariants())
}

func TestNoSpaceLeftIsFatal(t *testing.T) {
	// After the first tick every agent sits in the only space, so no agent has
	// anywhere else to go.
	sim, err := Initialize(singleRoomConfig(t))
	require.NoError(t, err)

	rc := DefaultRunConfig()
	rc.Ticks = 3
	snap, err := sim.Run(context.Background(), rc)
	require.ErrorIs(t, err, ErrEmptyCandidateSet)
	assert.Equal(t, StateFailed, sim.State())
	assert.Equal(t, 1, snap.Ticks())
}

func TestForcedZeroNeverSpreads(t *testing.T) {
	sim, err := Initialize(smallOfficeConfig(3))
	require.NoError(t, err)

	rc := DefaultRunConfig()
	rc.Ticks = 30
	rc.Diffusion = &DiffusionConfig{Forced: Force(0)}
	snap, err := sim.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Empty(t, snap.Interactions)
	for _, dp := range snap.Diffusion {
		assert.Equal(t, 1, dp.Informed)
	}
}

func TestInvariantsAndMonotonicity(t *testing.T) {
	for _, mode := range []Mode{ModeSimple, ModeEnriched, ModeContinuous} {
		t.Run(mode.String(), func(t *testing.T) {
			sim, err := Initialize(smallOfficeConfig(11))
			require.NoError(t, err)

			prev := make([]int, len(sim.Agents))
			prevInformed := 0
			sim.OnTickDone = func(ts TickSummary) {
				require.NoError(t, sim.CheckInvariants(), "tick %d", ts.Tick)
				for _, sp := range sim.Floor.Spaces {
					require.LessOrEqual(t, sp.Len(), sp.Capacity)
				}
				for i, a := range sim.Agents {
					require.GreaterOrEqual(t, a.Knowledge.Len(), prev[i], "agent %d forgot", a.ID)
					prev[i] = a.Knowledge.Len()
				}
				require.GreaterOrEqual(t, ts.Diffusion.Informed, prevInformed)
				prevInformed = ts.Diffusion.Informed
			}

			rc := DefaultRunConfig()
			rc.Ticks = 40
			rc.Mode = mode
			rc.Diffusion = &DiffusionConfig{Forced: Force(0.5)}
			snap, err := sim.Run(context.Background(), rc)
			require.NoError(t, err)
			assert.Equal(t, 40, snap.Ticks())
			assert.Equal(t, mode, sim.Mode())

			for _, rec := range snap.Interactions {
				assert.True(t, sim.related(rec.A, rec.B), "%d and %d share no tie", rec.A, rec.B)
			}
		})
	}
}

func TestRunsAreDeterministic(t *testing.T) {
	for _, mode := range []Mode{ModeSimple, ModeEnriched, ModeContinuous} {
		t.Run(mode.String(), func(t *testing.T) {
			run := func() (metrics.Snapshot, [][]string) {
				sim, err := Initialize(smallOfficeConfig(99))
				require.NoError(t, err)
				rc := DefaultRunConfig()
				rc.Ticks = 25
				rc.Mode = mode
				snap, err := sim.Run(context.Background(), rc)
				require.NoError(t, err)
				knowledge := make([][]string, len(sim.Agents))
				for i, a := range sim.Agents {
					knowledge[i] = a.Knowledge.Items()
				}
				return snap, knowledge
			}
			a, ka := run()
			b, kb := run()
			assert.Equal(t, a.Interactions, b.Interactions)
			assert.Equal(t, a.Usage, b.Usage)
			assert.Equal(t, a.Diffusion, b.Diffusion)
			assert.Equal(t, ka, kb)
		})
	}
}

func TestTeamOnlySpreadStaysWithinTeam(t *testing.T) {
	cfg := DefaultInitConfig()
	cfg.Population = 100
	cfg.TeamCount = 10
	cfg.MinTeamSize = 10
	cfg.FriendshipEdges = 0
	sim, err := Initialize(cfg)
	require.NoError(t, err)
	assert.Zero(t, sim.FriendGraph.EdgeCount())
	for _, team := range sim.Teams {
		assert.Len(t, team.Members, 10)
	}

	rc := DefaultRunConfig()
	rc.Ticks = 50
	snap, err := sim.Run(context.Background(), rc)
	require.NoError(t, err)

	reachable := sim.TeamGraph.Reachable(rc.SeedAgent)
	reachPct := float64(len(reachable)) / float64(len(sim.Agents)) * 100
	assert.LessOrEqual(t, snap.Final().Percent, reachPct)

	inReach := make(map[agents.AgentID]bool)
	for _, id := range reachable {
		inReach[id] = true
	}
	for _, a := range sim.Agents {
		if a.Knowledge.Has(agents.SeedMarker) {
			assert.True(t, inReach[a.ID], "agent %d informed outside the seed's team", a.ID)
		}
	}
}

func TestInitializeRejectsBadConfiguration(t *testing.T) {
	cases := map[string]func(*InitConfig){
		"no spaces": func(c *InitConfig) {
			f, _ := office.NewFloor(nil, 10, 10)
			c.Floor = f
		},
		"capacity below population": func(c *InitConfig) { c.Population = 300 },
		"impossible teams":          func(c *InitConfig) { c.TeamCount = 20 },
		"friendship too large":      func(c *InitConfig) { c.FriendshipEdges = 100 },
		"negative friendship":       func(c *InitConfig) { c.FriendshipEdges = -1 },
		"no hierarchy":              func(c *InitConfig) { c.HierarchyLevels = 0 },
		"negative adjustment":       func(c *InitConfig) { c.HierarchyAdjustment = -0.1 },
		"empty population":          func(c *InitConfig) { c.Population = 0 },
		"unknown space type": func(c *InitConfig) {
			c.Floor = &office.Floor{Spaces: []*office.Space{
				{ID: 0, Type: office.SpaceType(7), Capacity: 500},
			}}
		},
		"bad layout": func(c *InitConfig) {
			c.Layout.Groups = []office.SpaceGroup{{Type: office.Workstation, Count: 1, Capacity: 0}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultInitConfig()
			mutate(&cfg)
			_, err := Initialize(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestRunRejectsBadParameters(t *testing.T) {
	sim, err := Initialize(smallOfficeConfig(5))
	require.NoError(t, err)

	rc := DefaultRunConfig()
	rc.SeedAgent = 0
	_, err = sim.Run(context.Background(), rc)
	assert.ErrorIs(t, err, ErrConfiguration)

	rc = DefaultRunConfig()
	rc.Ticks = -1
	_, err = sim.Run(context.Background(), rc)
	assert.ErrorIs(t, err, ErrConfiguration)

	rc = DefaultRunConfig()
	rc.Diffusion = &DiffusionConfig{Forced: Force(2)}
	_, err = sim.Run(context.Background(), rc)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, StateInitialized, sim.State())

	rc = DefaultRunConfig()
	rc.Ticks = 2
	_, err = sim.Run(context.Background(), rc)
	require.NoError(t, err)
	_, err = sim.Run(context.Background(), rc)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestZeroTickRunCompletesImmediately(t *testing.T) {
	sim, err := Initialize(smallOfficeConfig(5))
	require.NoError(t, err)

	rc := DefaultRunConfig()
	rc.Ticks = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := sim.Run(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sim.State())
	assert.Zero(t, snap.Ticks())
	assert.Empty(t, snap.Interactions)
	assert.Nil(t, sim.Recorder.LastFrame())
}

// One team and forced sharing: whoever lands next to an informed colleague
// learns the marker, so movement alone carries it across the rooms.
func TestForcedSharingAcrossSeveralSpaces(t *testing.T) {
	spaces := make([]*office.Space, 3)
	for i := range spaces {
		spaces[i] = &office.Space{Type: office.Workstation, Capacity: 6, Position: office.Point{X: float64(10 * i)}}
	}
	sim, err := Initialize(InitConfig{
		Population:      6,
		TeamCount:       1,
		MinTeamSize:     6,
		HierarchyLevels: 1,
		Floor:           testFloor(t, spaces...),
		Seed:            21,
	})
	require.NoError(t, err)

	rc := DefaultRunConfig()
	rc.Ticks = 60
	rc.Mode = ModeSimple
	rc.Diffusion = &DiffusionConfig{Forced: Force(1)}
	snap, err := sim.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, 6, snap.Final().Informed)
	for _, rec := range snap.Interactions {
		assert.True(t, sim.TeamGraph.HasEdge(rec.A, rec.B))
	}
	for _, a := range sim.Agents {
		assert.True(t, a.Knowledge.Has(agents.SeedMarker), "agent %d", a.ID)
	}
}

// Friendships form a chain 1-2-...-6 and occupants sit in reverse order, so a
// pass over the room moves the marker exactly one hop. Coverage completes after
// as many passes as the chain is long.
func TestForcedSharingAlongChainTakesDiameterPasses(t *testing.T) {
	sim, err := Initialize(InitConfig{
		Population:      6,
		TeamCount:       6,
		MinTeamSize:     1,
		HierarchyLevels: 1,
		Floor:           testFloor(t, &office.Space{Type: office.MeetingRoom, Capacity: 6}),
		Seed:            4,
	})
	require.NoError(t, err)
	require.Zero(t, sim.TeamGraph.EdgeCount())

	chain := social.NewGraph()
	for id := agents.AgentID(1); id < 6; id++ {
		chain.AddEdge(id, id+1)
	}
	sim.FriendGraph = chain
	sim.diffusion = DiffusionConfig{Forced: Force(1)}
	sim.agent(1).Knowledge.Add(agents.SeedMarker)
	for i := len(sim.Agents) - 1; i >= 0; i-- {
		require.NoError(t, sim.occupy(sim.Agents[i], 0))
	}

	informed := func() int {
		n := 0
		for _, a := range sim.Agents {
			if a.Knowledge.Has(agents.SeedMarker) {
				n++
			}
		}
		return n
	}
	for pass := 1; pass <= 5; pass++ {
		// Every adjacent pair is related, so all five share each pass.
		assert.Equal(t, 5, sim.interactionPhase(pass))
		assert.Equal(t, pass+1, informed(), "after pass %d", pass)
	}
	assert.Equal(t, 6, informed())
}

func TestContinuousNeedsSpeed(t *testing.T) {
	cfg := smallOfficeConfig(5)
	cfg.Speed = 0
	sim, err := Initialize(cfg)
	require.NoError(t, err)
	rc := DefaultRunConfig()
	rc.Mode = ModeContinuous
	_, err = sim.Run(context.Background(), rc)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestStopAbortsRun(t *testing.T) {
	sim, err := Initialize(smallOfficeConfig(5))
	require.NoError(t, err)
	sim.OnTickDone = func(ts TickSummary) {
		if ts.Tick == 4 {
			sim.Stop()
		}
	}
	rc := DefaultRunConfig()
	rc.Ticks = 50
	snap, err := sim.Run(context.Background(), rc)
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StateAborted, sim.State())
	assert.Equal(t, 5, snap.Ticks())
}

func TestCheckInvariantsDetectsDrift(t *testing.T) {
	sim, err := Initialize(singleRoomConfig(t))
	require.NoError(t, err)
	require.NoError(t, sim.CheckInvariants())

	sim.Agents[0].Location = 0
	assert.ErrorIs(t, sim.CheckInvariants(), ErrInconsistent)

	sim.Agents[0].Location = office.NoSpace
	sim.Floor.Spaces[0].Occupants = []uint64{2}
	assert.ErrorIs(t, sim.CheckInvariants(), ErrInconsistent)

	sim.Agents[1].Location = 0
	require.NoError(t, sim.CheckInvariants())
	sim.Floor.Spaces[0].Capacity = 0
	assert.ErrorIs(t, sim.CheckInvariants(), office.ErrCapacityExceeded)
}

func TestStateAndModeStrings(t *testing.T) {
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "aborted", StateAborted.String())
	for _, m := range []Mode{ModeSimple, ModeEnriched, ModeContinuous} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("teleport")
	assert.ErrorIs(t, err, ErrConfiguration)
}

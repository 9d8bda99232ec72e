// Simulation ties the office floor, the workforce and its relationship graphs
// together and runs them tick by tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/metrics"
	"github.com/talgya/office-diffusion/internal/office"
	"github.com/talgya/office-diffusion/internal/social"
)

var (
	// ErrConfiguration is returned for parameters that cannot produce a valid run.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidState is returned when an operation does not fit the lifecycle.
	ErrInvalidState = errors.New("invalid simulation state")
	// ErrInconsistent reports occupancy bookkeeping that disagrees with itself.
	ErrInconsistent = errors.New("inconsistent occupancy")
)

// Seed offsets keep each random stream independent for a given seed.
const (
	teamSeedOffset   = 100
	friendSeedOffset = 200
	runSeedOffset    = 400
)

// State is the lifecycle stage of a simulation.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateCompleted
	StateFailed  // A tick failed; results up to the previous tick remain valid
	StateAborted // Stopped externally before the last tick
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := StateUninitialized; st <= StateAborted; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// InitConfig holds the parameters fixed for the lifetime of a simulation.
type InitConfig struct {
	Population          int                 `yaml:"population"`
	TeamCount           int                 `yaml:"team_count"`
	MinTeamSize         int                 `yaml:"min_team_size"`
	FriendshipEdges     int                 `yaml:"friendship_edges"` // New friendships per newcomer
	HierarchyLevels     int                 `yaml:"hierarchy_levels"`
	HierarchyAdjustment float64             `yaml:"hierarchy_adjustment"` // Sharing probability lost per level of gap
	Speed               float64             `yaml:"speed"`                // Distance per tick in continuous mode
	Layout              office.LayoutConfig `yaml:"layout"`
	Seed                uint64              `yaml:"seed"`

	// Floor, when set, is used instead of generating one from Layout.
	Floor *office.Floor `yaml:"-"`
}

// DefaultInitConfig returns a mid-sized office of a hundred people.
func DefaultInitConfig() InitConfig {
	return InitConfig{
		Population:          100,
		TeamCount:           10,
		MinTeamSize:         8,
		FriendshipEdges:     2,
		HierarchyLevels:     4,
		HierarchyAdjustment: HierarchyPenalty,
		Speed:               5,
		Layout:              office.DefaultLayoutConfig(),
		Seed:                42,
	}
}

// RunConfig holds the parameters of one run.
type RunConfig struct {
	Ticks              int            `yaml:"ticks"`
	SeedAgent          agents.AgentID `yaml:"seed_agent"`
	HierarchyThreshold int            `yaml:"hierarchy_threshold"` // Levels at or above count as senior
	Mode               Mode           `yaml:"mode"`
	Interval           time.Duration  `yaml:"interval"`

	// Diffusion overrides the sharing table. Nil uses DefaultDiffusion with the
	// initialised hierarchy adjustment.
	Diffusion *DiffusionConfig `yaml:"diffusion,omitempty"`
}

// DefaultRunConfig returns a hundred enriched-mode ticks seeded at agent 1.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Ticks:              100,
		SeedAgent:          1,
		HierarchyThreshold: 2,
		Mode:               ModeEnriched,
	}
}

// TickSummary is passed to observers after each completed tick.
type TickSummary struct {
	Tick         int                    `json:"tick"`
	Diffusion    metrics.DiffusionPoint `json:"diffusion"`
	Interactions int                    `json:"interactions"` // Successful shares this tick
	Elapsed      time.Duration          `json:"elapsed"`
}

// Simulation holds the complete office state and wires the phases together.
type Simulation struct {
	Floor       *office.Floor
	Agents      []*agents.Agent // Ordered by ID; Agents[i].ID == i+1
	Teams       []social.Team
	TeamGraph   *social.Graph
	FriendGraph *social.Graph
	Recorder    *metrics.Recorder

	// OnTickDone, if set, is called on the simulation goroutine after every tick.
	OnTickDone func(TickSummary)

	seed      uint64
	penalty   float64
	contacts  map[agents.AgentID][]agents.AgentID // Teammates and friends, sorted
	rng       *rand.Rand                          // Shared by movement and interaction
	router    *Router
	engine    *Engine
	run       RunConfig
	diffusion DiffusionConfig
	state     atomic.Int32
	mode      atomic.Int32 // Mirrors run.Mode for readers off the simulation goroutine
}

// Initialize builds the floor, teams, friendships and workforce. Any parameter
// that cannot produce a valid run is rejected with ErrConfiguration.
func Initialize(cfg InitConfig) (*Simulation, error) {
	switch {
	case cfg.Population < 1:
		return nil, fmt.Errorf("%w: population %d", ErrConfiguration, cfg.Population)
	case cfg.HierarchyLevels < 1:
		return nil, fmt.Errorf("%w: hierarchy levels %d", ErrConfiguration, cfg.HierarchyLevels)
	case cfg.HierarchyAdjustment < 0:
		return nil, fmt.Errorf("%w: hierarchy adjustment %g", ErrConfiguration, cfg.HierarchyAdjustment)
	case cfg.Speed < 0:
		return nil, fmt.Errorf("%w: speed %g", ErrConfiguration, cfg.Speed)
	}

	floor := cfg.Floor
	if floor == nil {
		var err error
		if floor, err = office.Generate(cfg.Layout); err != nil {
			return nil, fmt.Errorf("%w: layout: %w", ErrConfiguration, err)
		}
	}
	if floor.Len() == 0 {
		return nil, fmt.Errorf("%w: office has no spaces", ErrConfiguration)
	}
	if c := floor.TotalCapacity(); c < cfg.Population {
		return nil, fmt.Errorf("%w: total capacity %d below population %d", ErrConfiguration, c, cfg.Population)
	}
	for _, sp := range floor.Spaces {
		if sp.Type >= office.NumSpaceTypes {
			return nil, fmt.Errorf("%w: space %d has unknown type %d", ErrConfiguration, sp.ID, sp.Type)
		}
		if sp.Len() > 0 {
			return nil, fmt.Errorf("%w: space %d is already occupied", ErrConfiguration, sp.ID)
		}
	}

	teams, err := social.GenerateTeams(cfg.Population, cfg.TeamCount, cfg.MinTeamSize,
		rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+teamSeedOffset)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	friends, err := social.FriendshipGraph(cfg.Population, cfg.FriendshipEdges,
		rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+friendSeedOffset)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	ag, err := agents.NewSpawner(cfg.Seed).SpawnPopulation(cfg.Population, cfg.HierarchyLevels, cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	teamGraph := social.TeamGraph(teams, cfg.Population)
	social.AssignTeams(teams, ag)
	social.AssignFriends(friends, ag)

	s := &Simulation{
		Floor:       floor,
		Agents:      ag,
		Teams:       teams,
		TeamGraph:   teamGraph,
		FriendGraph: friends,
		Recorder:    metrics.NewRecorder(agents.SeedMarker),
		seed:        cfg.Seed,
		penalty:     cfg.HierarchyAdjustment,
		contacts:    buildContacts(ag, teamGraph),
		rng:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+runSeedOffset)),
		router:      NewRouter(floor),
		engine:      NewEngine(0),
	}
	s.state.Store(int32(StateInitialized))

	slog.Info("simulation initialised",
		"agents", cfg.Population,
		"teams", len(teams),
		"friendships", friends.EdgeCount(),
		"spaces", floor.Len(),
		"capacity", humanize.Comma(int64(floor.TotalCapacity())),
		"seed", cfg.Seed,
	)
	return s, nil
}

// buildContacts merges each agent's teammates and friends into one sorted list.
func buildContacts(ag []*agents.Agent, teams *social.Graph) map[agents.AgentID][]agents.AgentID {
	out := make(map[agents.AgentID][]agents.AgentID, len(ag))
	for _, a := range ag {
		seen := make(map[agents.AgentID]bool)
		var ids []agents.AgentID
		for _, id := range append(teams.Neighbors(a.ID), a.Friends...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[a.ID] = ids
	}
	return out
}

// Run seeds the marker and executes every tick. It returns the recorded series;
// on failure the series cover the ticks completed before the error.
func (s *Simulation) Run(ctx context.Context, rc RunConfig) (metrics.Snapshot, error) {
	if err := s.validateRun(rc); err != nil {
		return metrics.Snapshot{}, err
	}
	if !s.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning)) {
		return metrics.Snapshot{}, fmt.Errorf("%w: cannot run from %s", ErrInvalidState, s.State())
	}

	s.run = rc
	s.mode.Store(int32(rc.Mode))
	if rc.Diffusion != nil {
		s.diffusion = *rc.Diffusion
	} else {
		s.diffusion = DefaultDiffusion()
		s.diffusion.HierarchyPenalty = s.penalty
	}
	s.agent(rc.SeedAgent).Knowledge.Add(agents.SeedMarker)

	// A zero Limit means "until stopped" to the engine, so an empty run ends here.
	if rc.Ticks == 0 {
		s.state.Store(int32(StateCompleted))
		slog.Info("simulation run completed", "ticks", 0)
		return s.Recorder.Snapshot(), nil
	}

	s.engine.Limit = uint64(rc.Ticks)
	s.engine.Interval = rc.Interval
	s.engine.OnTick = s.step

	slog.Info("simulation run started", "ticks", rc.Ticks, "mode", rc.Mode, "seed_agent", rc.SeedAgent)
	err := s.engine.Run(ctx)
	snap := s.Recorder.Snapshot()
	if err != nil {
		if errors.Is(err, ErrStopped) {
			s.state.Store(int32(StateAborted))
			slog.Warn("simulation run aborted", "ticks_completed", snap.Ticks(), "error", err)
		} else {
			s.state.Store(int32(StateFailed))
			slog.Error("simulation run failed", "ticks_completed", snap.Ticks(), "error", err)
		}
		return snap, err
	}

	s.state.Store(int32(StateCompleted))
	final := snap.Final()
	slog.Info("simulation run completed",
		"ticks", snap.Ticks(),
		"informed", fmt.Sprintf("%d/%d", final.Informed, final.Total),
		"coverage", humanize.FtoaWithDigits(final.Percent, 1)+"%",
		"interactions", humanize.Comma(int64(len(snap.Interactions))),
	)
	return snap, nil
}

func (s *Simulation) validateRun(rc RunConfig) error {
	switch {
	case rc.Ticks < 0:
		return fmt.Errorf("%w: tick count %d", ErrConfiguration, rc.Ticks)
	case rc.SeedAgent < 1 || int(rc.SeedAgent) > len(s.Agents):
		return fmt.Errorf("%w: seed agent %d not in population of %d", ErrConfiguration, rc.SeedAgent, len(s.Agents))
	case rc.Mode > ModeContinuous:
		return fmt.Errorf("%w: unknown movement mode %d", ErrConfiguration, rc.Mode)
	}
	if d := rc.Diffusion; d != nil {
		if d.HierarchyPenalty < 0 || (d.Forced != nil && (*d.Forced < 0 || *d.Forced > 1)) {
			return fmt.Errorf("%w: diffusion %+v", ErrConfiguration, *d)
		}
	}
	if rc.Mode == ModeContinuous {
		for _, a := range s.Agents {
			if a.Speed <= 0 {
				return fmt.Errorf("%w: continuous movement needs positive speed, agent %d has %g",
					ErrConfiguration, a.ID, a.Speed)
			}
		}
	}
	return nil
}

// step runs one tick: every agent moves, then co-located pairs interact, then
// the tick is recorded.
func (s *Simulation) step(tick uint64) error {
	start := time.Now()
	t := int(tick)

	if err := s.movePhase(t); err != nil {
		return err
	}
	shared := s.interactionPhase(t)
	dp := s.Recorder.RecordTick(t, s.Agents, s.Floor)

	slog.Debug("tick complete", "tick", t, "shared", shared, "informed", dp.Informed)
	if s.OnTickDone != nil {
		s.OnTickDone(TickSummary{
			Tick:         t,
			Diffusion:    dp,
			Interactions: shared,
			Elapsed:      time.Since(start),
		})
	}
	return nil
}

// Stop aborts a run in progress before its next tick.
func (s *Simulation) Stop() {
	s.engine.Stop()
}

// State returns the current lifecycle stage.
func (s *Simulation) State() State {
	return State(s.state.Load())
}

// Seed returns the seed the simulation was initialised with.
func (s *Simulation) Seed() uint64 {
	return s.seed
}

// Mode returns the movement mode of the current or last run.
func (s *Simulation) Mode() Mode {
	return Mode(s.mode.Load())
}

// agent looks up an agent by ID.
func (s *Simulation) agent(id agents.AgentID) *agents.Agent {
	return s.Agents[id-1]
}

// CheckInvariants verifies that no space is over capacity and that every
// agent's location agrees with the occupant lists.
func (s *Simulation) CheckInvariants() error {
	placed := make(map[agents.AgentID]office.SpaceID, len(s.Agents))
	for _, sp := range s.Floor.Spaces {
		if sp.Len() > sp.Capacity {
			return fmt.Errorf("%w: space %d holds %d/%d", office.ErrCapacityExceeded, sp.ID, sp.Len(), sp.Capacity)
		}
		for _, raw := range sp.Occupants {
			id := agents.AgentID(raw)
			if id < 1 || int(id) > len(s.Agents) {
				return fmt.Errorf("%w: space %d holds unknown agent %d", ErrInconsistent, sp.ID, id)
			}
			if prev, dup := placed[id]; dup {
				return fmt.Errorf("%w: agent %d in spaces %d and %d", ErrInconsistent, id, prev, sp.ID)
			}
			placed[id] = sp.ID
		}
	}
	for _, a := range s.Agents {
		loc, ok := placed[a.ID]
		switch {
		case !a.HasLocation() && ok:
			return fmt.Errorf("%w: agent %d has no location but is in space %d", ErrInconsistent, a.ID, loc)
		case a.HasLocation() && !ok:
			return fmt.Errorf("%w: agent %d at space %d is not among its occupants", ErrInconsistent, a.ID, a.Location)
		case a.HasLocation() && loc != a.Location:
			return fmt.Errorf("%w: agent %d at space %d is listed in space %d", ErrInconsistent, a.ID, a.Location, loc)
		}
	}
	return nil
}

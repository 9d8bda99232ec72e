package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/office"
)

// ErrEmptyCandidateSet is returned when an agent has no legal destination.
// It is fatal for the run: the floor cannot host the population.
var ErrEmptyCandidateSet = errors.New("empty candidate set")

// Mode selects the movement policy.
type Mode uint8

const (
	ModeEnriched   Mode = iota // Hierarchy and social aware, agents teleport
	ModeSimple                 // Uniform over non-full spaces
	ModeContinuous             // Enriched choice, agents walk routes at bounded speed
)

func (m Mode) String() string {
	switch m {
	case ModeEnriched:
		return "enriched"
	case ModeSimple:
		return "simple"
	case ModeContinuous:
		return "continuous"
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// ParseMode converts a mode name as produced by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "enriched":
		return ModeEnriched, nil
	case "simple":
		return ModeSimple, nil
	case "continuous":
		return ModeContinuous, nil
	}
	return 0, fmt.Errorf("%w: unknown movement mode %q", ErrConfiguration, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// hierarchyAllows reports whether a space type is open to an agent of the given
// seniority. Seniors favour quiet rooms, juniors the break area.
func hierarchyAllows(t office.SpaceType, senior bool) bool {
	switch t {
	case office.Workstation:
		return true
	case office.QuietArea:
		return senior
	case office.BreakArea:
		return !senior
	case office.MeetingRoom:
		return false
	}
	return false
}

// movePhase relocates every agent in ID order.
func (s *Simulation) movePhase(tick int) error {
	for _, a := range s.Agents {
		var err error
		switch s.run.Mode {
		case ModeSimple:
			err = s.moveSimple(a)
		case ModeEnriched:
			err = s.moveEnriched(a)
		case ModeContinuous:
			err = s.moveContinuous(a)
		default:
			err = fmt.Errorf("%w: unknown movement mode %d", ErrConfiguration, s.run.Mode)
		}
		if err != nil {
			return fmt.Errorf("tick %d agent %d: %w", tick, a.ID, err)
		}
	}
	return nil
}

// moveSimple vacates the current space and joins a uniformly chosen space with
// room left.
func (s *Simulation) moveSimple(a *agents.Agent) error {
	if err := s.vacate(a); err != nil {
		return err
	}
	open := make([]office.SpaceID, 0, s.Floor.Len())
	for _, sp := range s.Floor.Spaces {
		if !sp.IsFull() {
			open = append(open, sp.ID)
		}
	}
	if len(open) == 0 {
		return ErrEmptyCandidateSet
	}
	return s.occupy(a, open[s.rng.IntN(len(open))])
}

// moveEnriched draws a destination with candidates and teleports there.
func (s *Simulation) moveEnriched(a *agents.Agent) error {
	cands, err := s.candidates(a)
	if err != nil {
		return err
	}
	picks, err := s.draw(a, cands, 1)
	if err != nil {
		return err
	}
	if err := s.vacate(a); err != nil {
		return err
	}
	return s.occupy(a, picks[0])
}

// moveContinuous plans a route for idle agents and advances walking ones.
// Unplaced agents are put straight at their first destination.
func (s *Simulation) moveContinuous(a *agents.Agent) error {
	if a.IsIdle() {
		cands, err := s.candidates(a)
		if err != nil {
			return err
		}
		picks, err := s.draw(a, cands, 2)
		if err != nil {
			return err
		}
		if !a.HasLocation() {
			return s.occupy(a, picks[0])
		}
		waypoint, target := picks[0], picks[0]
		if len(picks) > 1 {
			target = picks[1]
		}
		a.SetRoute(s.router.RouteVia(a.Location, waypoint, target))
	}
	return s.advance(a)
}

// candidates applies the destination filters for one agent: open spaces other
// than the current one, narrowed by seniority and then by where the agent's team
// and friends are. If the seniority filter leaves nothing, every open space
// qualifies again.
func (s *Simulation) candidates(a *agents.Agent) ([]office.SpaceID, error) {
	base := make([]office.SpaceID, 0, s.Floor.Len())
	for _, sp := range s.Floor.Spaces {
		if !sp.IsFull() && sp.ID != a.Location {
			base = append(base, sp.ID)
		}
	}
	if len(base) == 0 {
		return nil, fmt.Errorf("%w: no open space besides %d", ErrEmptyCandidateSet, a.Location)
	}

	senior := a.Level >= s.run.HierarchyThreshold
	var filtered []office.SpaceID
	for _, id := range base {
		if hierarchyAllows(s.Floor.Spaces[id].Type, senior) {
			filtered = append(filtered, id)
		}
	}

	near := make(map[office.SpaceID]bool)
	for _, id := range s.contacts[a.ID] {
		if loc := s.agent(id).Location; loc != office.NoSpace {
			near[loc] = true
		}
	}
	var narrowed []office.SpaceID
	for _, id := range filtered {
		if near[id] {
			narrowed = append(narrowed, id)
		}
	}

	switch {
	case len(narrowed) > 0:
		return narrowed, nil
	case len(filtered) > 0:
		return filtered, nil
	default:
		return base, nil
	}
}

// draw samples up to n distinct candidates weighted by inverse distance from
// the agent's current space. A candidate at zero distance is never drawn.
func (s *Simulation) draw(a *agents.Agent, cands []office.SpaceID, n int) ([]office.SpaceID, error) {
	w := make([]float64, len(cands))
	for i, id := range cands {
		if !a.HasLocation() {
			w[i] = 1
			continue
		}
		d := office.Distance(s.Floor.Spaces[a.Location].Position, s.Floor.Spaces[id].Position)
		if d > 0 {
			w[i] = 1 / d
		}
	}
	sampler := sampleuv.NewWeighted(w, s.rng)
	picks := make([]office.SpaceID, 0, n)
	for len(picks) < n {
		i, ok := sampler.Take()
		if !ok {
			break
		}
		picks = append(picks, cands[i])
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: all %d candidates at zero distance", ErrEmptyCandidateSet, len(cands))
	}
	return picks, nil
}

// advance walks the agent towards its target. Within one speed unit on both
// axes it arrives: it leaves its old space, joins the target and moves on to
// the next hop. A target that filled up meanwhile cancels the route.
func (s *Simulation) advance(a *agents.Agent) error {
	if a.IsIdle() {
		return nil
	}
	target := s.Floor.Get(a.Target)
	if target == nil {
		return fmt.Errorf("agent %d targets unknown space %d", a.ID, a.Target)
	}

	dest := target.Position
	dx, dy := dest.X-a.Position.X, dest.Y-a.Position.Y
	if d := office.Distance(a.Position, dest); d > a.Speed {
		a.Position.X += dx / d * a.Speed
		a.Position.Y += dy / d * a.Speed
		dx, dy = dest.X-a.Position.X, dest.Y-a.Position.Y
	}
	if math.Abs(dx) > a.Speed || math.Abs(dy) > a.Speed {
		return nil
	}

	if target.IsFull() {
		a.ClearRoute()
		return nil
	}
	if err := s.vacate(a); err != nil {
		return err
	}
	if err := s.occupy(a, target.ID); err != nil {
		return err
	}
	a.PopHop()
	return nil
}

// vacate removes the agent from its current space, if any.
func (s *Simulation) vacate(a *agents.Agent) error {
	if !a.HasLocation() {
		return nil
	}
	if err := s.Floor.Spaces[a.Location].RemoveOccupant(uint64(a.ID)); err != nil {
		return err
	}
	a.Location = office.NoSpace
	return nil
}

// occupy places the agent in a space. Capacity is enforced here for every mode.
func (s *Simulation) occupy(a *agents.Agent, id office.SpaceID) error {
	sp := s.Floor.Get(id)
	if sp == nil {
		return fmt.Errorf("agent %d: unknown space %d", a.ID, id)
	}
	if err := sp.AddOccupant(uint64(a.ID)); err != nil {
		return err
	}
	a.Location = id
	a.Position = sp.Position
	return nil
}

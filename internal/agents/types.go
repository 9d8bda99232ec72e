// Package agents provides the employee data model: identity, hierarchy, social ties,
// knowledge, and location on the floor.
package agents

import (
	"github.com/talgya/office-diffusion/internal/office"
)

// AgentID is a unique identifier for an agent. IDs start at 1.
type AgentID uint64

// TeamID identifies a team in the organisational structure.
type TeamID int

// NoTeam marks an agent not yet assigned to a team.
const NoTeam TeamID = -1

// SeedMarker is the knowledge marker planted in the seed agent before tick 0.
const SeedMarker = "Important Information"

// Agent is a simulated employee.
type Agent struct {
	ID AgentID `json:"id"`

	// Organisation
	Level   int       `json:"level"` // Hierarchy level, 0 = most junior
	TeamID  TeamID    `json:"team_id"`
	Friends []AgentID `json:"friends"` // Symmetric; sorted

	Knowledge Knowledge `json:"knowledge"`

	// Location and the space's occupant list must always agree.
	Location office.SpaceID `json:"location"`
	Position office.Point   `json:"position"`

	// Continuous motion only.
	Speed  float64          `json:"speed,omitempty"`
	Target office.SpaceID   `json:"target"`         // Next hop, NoSpace when idle
	Path   []office.SpaceID `json:"path,omitempty"` // Hops after Target
}

// New creates an agent with no location, no team and empty knowledge.
func New(id AgentID, level int) *Agent {
	return &Agent{
		ID:        id,
		Level:     level,
		TeamID:    NoTeam,
		Knowledge: NewKnowledge(),
		Location:  office.NoSpace,
		Target:    office.NoSpace,
	}
}

// HasLocation reports whether the agent currently occupies a space.
func (a *Agent) HasLocation() bool {
	return a.Location != office.NoSpace
}

// IsIdle reports whether the agent has no target to walk towards.
func (a *Agent) IsIdle() bool {
	return a.Target == office.NoSpace
}

// SetRoute stores a planned route; the first hop becomes the target.
func (a *Agent) SetRoute(route []office.SpaceID) {
	a.Target = office.NoSpace
	a.Path = append(a.Path[:0], route...)
	a.PopHop()
}

// PopHop advances Target to the next hop of the path, or clears it.
func (a *Agent) PopHop() {
	if len(a.Path) == 0 {
		a.Target = office.NoSpace
		return
	}
	a.Target = a.Path[0]
	a.Path = a.Path[1:]
}

// ClearRoute drops any pending target and path.
func (a *Agent) ClearRoute() {
	a.Target = office.NoSpace
	a.Path = nil
}

// IsFriend reports whether other is in the agent's friend list.
func (a *Agent) IsFriend(other AgentID) bool {
	for _, f := range a.Friends {
		if f == other {
			return true
		}
	}
	return false
}

// Befriend records a symmetric friendship between two agents.
func Befriend(a, b *Agent) {
	if a.ID == b.ID || a.IsFriend(b.ID) {
		return
	}
	a.Friends = insertSorted(a.Friends, b.ID)
	b.Friends = insertSorted(b.Friends, a.ID)
}

func insertSorted(ids []AgentID, id AgentID) []AgentID {
	i := 0
	for i < len(ids) && ids[i] < id {
		i++
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// Package metrics records diffusion coverage, space usage and the interaction log
// each tick, and derives network analytics from it.
package metrics

import (
	"sync"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/office"
)

// Interaction is one successful information-sharing event.
type Interaction struct {
	Tick int            `json:"tick" db:"tick"`
	A    agents.AgentID `json:"a" db:"agent_a"`
	B    agents.AgentID `json:"b" db:"agent_b"`
}

// DiffusionPoint is the coverage of the seed marker at the end of a tick.
type DiffusionPoint struct {
	Tick     int     `json:"tick" db:"tick"`
	Informed int     `json:"informed" db:"informed"`
	Total    int     `json:"total" db:"total"`
	Percent  float64 `json:"percent" db:"percent"`
}

// UsagePoint is the occupancy of every space at the end of a tick.
type UsagePoint struct {
	Tick    int                       `json:"tick"`
	BySpace []int                     `json:"by_space"` // Indexed by SpaceID
	ByType  [office.NumSpaceTypes]int `json:"by_type"`  // Indexed by SpaceType
}

// Frame is the latest per-tick view, used by live observers.
type Frame struct {
	Tick      int                         `json:"tick"`
	Occupants map[office.SpaceID][]uint64 `json:"occupants"`
	Informed  []agents.AgentID            `json:"informed"`
}

// Recorder accumulates per-tick metrics. Writes come from the simulation loop;
// reads may come from other goroutines (API handlers).
type Recorder struct {
	mu           sync.RWMutex
	marker       string
	interactions []Interaction
	diffusion    []DiffusionPoint
	usage        []UsagePoint
	last         *Frame
}

// NewRecorder creates a recorder that tracks coverage of the given marker.
func NewRecorder(marker string) *Recorder {
	return &Recorder{marker: marker}
}

// Marker returns the knowledge marker whose spread is tracked.
func (r *Recorder) Marker() string {
	return r.marker
}

// RecordInteraction appends one event to the interaction log.
func (r *Recorder) RecordInteraction(tick int, a, b agents.AgentID) {
	r.mu.Lock()
	r.interactions = append(r.interactions, Interaction{Tick: tick, A: a, B: b})
	r.mu.Unlock()
}

// RecordTick appends diffusion and usage points for a completed tick.
func (r *Recorder) RecordTick(tick int, ag []*agents.Agent, floor *office.Floor) DiffusionPoint {
	informed := make([]agents.AgentID, 0, len(ag))
	for _, a := range ag {
		if a.Knowledge.Has(r.marker) {
			informed = append(informed, a.ID)
		}
	}
	dp := DiffusionPoint{Tick: tick, Informed: len(informed), Total: len(ag)}
	if len(ag) > 0 {
		dp.Percent = float64(len(informed)) / float64(len(ag)) * 100
	}

	up := UsagePoint{Tick: tick, BySpace: make([]int, floor.Len())}
	occ := make(map[office.SpaceID][]uint64, floor.Len())
	for _, s := range floor.Spaces {
		up.BySpace[s.ID] = s.Len()
		up.ByType[s.Type] += s.Len()
		if s.Len() > 0 {
			occ[s.ID] = append([]uint64(nil), s.Occupants...)
		}
	}

	r.mu.Lock()
	r.diffusion = append(r.diffusion, dp)
	r.usage = append(r.usage, up)
	r.last = &Frame{Tick: tick, Occupants: occ, Informed: informed}
	r.mu.Unlock()
	return dp
}

// InteractionCount returns the length of the interaction log.
func (r *Recorder) InteractionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.interactions)
}

// LastFrame returns the most recent tick frame, or nil before the first tick.
func (r *Recorder) LastFrame() *Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Snapshot copies everything recorded so far.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	usage := make([]UsagePoint, len(r.usage))
	for i, u := range r.usage {
		usage[i] = u
		usage[i].BySpace = append([]int(nil), u.BySpace...)
	}
	return Snapshot{
		Marker:       r.marker,
		Interactions: append([]Interaction(nil), r.interactions...),
		Diffusion:    append([]DiffusionPoint(nil), r.diffusion...),
		Usage:        usage,
	}
}

// Snapshot is an immutable copy of the recorded series.
type Snapshot struct {
	Marker       string           `json:"marker"`
	Interactions []Interaction    `json:"interactions"`
	Diffusion    []DiffusionPoint `json:"diffusion"`
	Usage        []UsagePoint     `json:"usage"`
}

// Ticks returns the number of completed ticks recorded.
func (s Snapshot) Ticks() int {
	return len(s.Diffusion)
}

// Final returns the last diffusion point, or a zero point if nothing ran.
func (s Snapshot) Final() DiffusionPoint {
	if len(s.Diffusion) == 0 {
		return DiffusionPoint{}
	}
	return s.Diffusion[len(s.Diffusion)-1]
}

// TypeTotals sums usage per space type over all ticks.
func (s Snapshot) TypeTotals() [office.NumSpaceTypes]int {
	var totals [office.NumSpaceTypes]int
	for _, u := range s.Usage {
		for t, n := range u.ByType {
			totals[t] += n
		}
	}
	return totals
}

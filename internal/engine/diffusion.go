package engine

import (
	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/office"
)

// Sharing probabilities by setting.
const (
	FocusedShareProb = 0.6 // Workstations and meeting rooms
	SocialShareProb  = 0.3 // Break and quiet areas
	HierarchyPenalty = 0.1 // Probability lost per level of seniority gap
	BaselineFocused  = 0.9
	BaselineSocial   = 0.5
)

// DiffusionConfig controls how likely a co-located, related pair is to share.
type DiffusionConfig struct {
	Focused          float64  `json:"focused" yaml:"focused"`
	Social           float64  `json:"social" yaml:"social"`
	HierarchyPenalty float64  `json:"hierarchy_penalty" yaml:"hierarchy_penalty"`
	Forced           *float64 `json:"forced,omitempty" yaml:"forced,omitempty"` // Replaces the per-type base when set
}

// DefaultDiffusion returns the hierarchy-aware sharing table.
func DefaultDiffusion() DiffusionConfig {
	return DiffusionConfig{
		Focused:          FocusedShareProb,
		Social:           SocialShareProb,
		HierarchyPenalty: HierarchyPenalty,
	}
}

// BaselineDiffusion returns the earlier, more permissive sharing table.
func BaselineDiffusion() DiffusionConfig {
	return DiffusionConfig{
		Focused:          BaselineFocused,
		Social:           BaselineSocial,
		HierarchyPenalty: HierarchyPenalty,
	}
}

// Force returns a pointer suitable for DiffusionConfig.Forced.
func Force(p float64) *float64 {
	return &p
}

// BaseProbability returns the sharing probability of a space type before the
// hierarchy adjustment.
func (c DiffusionConfig) BaseProbability(t office.SpaceType) float64 {
	if c.Forced != nil {
		return *c.Forced
	}
	switch t {
	case office.Workstation, office.MeetingRoom:
		return c.Focused
	case office.BreakArea, office.QuietArea:
		return c.Social
	}
	return 0
}

// Probability returns the sharing probability for a pair of agents in a space
// of the given type.
func (c DiffusionConfig) Probability(t office.SpaceType, a, b *agents.Agent) float64 {
	gap := a.Level - b.Level
	if gap < 0 {
		gap = -gap
	}
	return c.BaseProbability(t) * max(0, 1-c.HierarchyPenalty*float64(gap))
}

// related reports whether a pair may share: teammates or friends.
func (s *Simulation) related(a, b agents.AgentID) bool {
	return s.FriendGraph.HasEdge(a, b) || s.TeamGraph.HasEdge(a, b)
}

// interactionPhase evaluates every co-located pair once, in space order and then
// occupant order. One uniform draw is consumed per pair whether or not the pair
// is related.
func (s *Simulation) interactionPhase(tick int) int {
	shared := 0
	for _, sp := range s.Floor.Spaces {
		occ := sp.Occupants
		for i := 0; i < len(occ); i++ {
			for j := i + 1; j < len(occ); j++ {
				a := s.agent(agents.AgentID(occ[i]))
				b := s.agent(agents.AgentID(occ[j]))
				p := s.diffusion.Probability(sp.Type, a, b)
				if s.rng.Float64() >= p || !s.related(a.ID, b.ID) {
					continue
				}
				agents.Share(a, b)
				s.Recorder.RecordInteraction(tick, a.ID, b.ID)
				shared++
			}
		}
	}
	return shared
}

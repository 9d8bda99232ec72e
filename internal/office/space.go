// Package office provides the floor plan: capacity-bounded spaces, their positions,
// and occupancy bookkeeping.
package office

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Occupancy errors.
var (
	ErrCapacityExceeded = errors.New("space capacity exceeded")
	ErrNotPresent       = errors.New("agent not present in space")
	ErrAlreadyPresent   = errors.New("agent already present in space")
)

// SpaceID indexes a space in the floor's arena.
type SpaceID int

// NoSpace marks an agent that is not in any space.
const NoSpace SpaceID = -1

// SpaceType classifies what a space is used for.
type SpaceType uint8

const (
	Workstation SpaceType = iota // Desks, focused work
	MeetingRoom                  // Scheduled collaboration
	BreakArea                    // Kitchens, lounges
	QuietArea                    // Focus pods, library corners
)

// NumSpaceTypes is the total number of space types.
const NumSpaceTypes = 4

// String returns the human-readable name of a space type.
func (t SpaceType) String() string {
	switch t {
	case Workstation:
		return "Workstation"
	case MeetingRoom:
		return "Meeting Room"
	case BreakArea:
		return "Break Area"
	case QuietArea:
		return "Quiet Area"
	default:
		return "Unknown"
	}
}

// ParseSpaceType accepts the display name or a snake_case variant.
func ParseSpaceType(s string) (SpaceType, error) {
	norm := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	switch norm {
	case "workstation":
		return Workstation, nil
	case "meetingroom":
		return MeetingRoom, nil
	case "breakarea":
		return BreakArea, nil
	case "quietarea":
		return QuietArea, nil
	}
	return 0, fmt.Errorf("unknown space type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t SpaceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SpaceType) UnmarshalText(b []byte) error {
	v, err := ParseSpaceType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Point is a position on the floor plan.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Space is a capacity-bounded location on the floor.
type Space struct {
	ID       SpaceID   `json:"id"`
	Type     SpaceType `json:"type"`
	Capacity int       `json:"capacity"`
	Position Point     `json:"position"`

	// Agent IDs in arrival order. Pairwise interaction walks this order.
	Occupants []uint64 `json:"occupants"`
}

// IsFull reports whether the occupant count has reached capacity.
func (s *Space) IsFull() bool {
	return len(s.Occupants) >= s.Capacity
}

// Len returns the current occupant count.
func (s *Space) Len() int {
	return len(s.Occupants)
}

// Has reports whether the agent is currently in this space.
func (s *Space) Has(agentID uint64) bool {
	return s.indexOf(agentID) >= 0
}

// AddOccupant appends an agent to the space.
func (s *Space) AddOccupant(agentID uint64) error {
	if s.IsFull() {
		return fmt.Errorf("%w: space %d (%s) holds %d/%d", ErrCapacityExceeded, s.ID, s.Type, len(s.Occupants), s.Capacity)
	}
	if s.Has(agentID) {
		return fmt.Errorf("%w: agent %d in space %d", ErrAlreadyPresent, agentID, s.ID)
	}
	s.Occupants = append(s.Occupants, agentID)
	return nil
}

// RemoveOccupant removes an agent, keeping the remaining occupants in order.
func (s *Space) RemoveOccupant(agentID uint64) error {
	i := s.indexOf(agentID)
	if i < 0 {
		return fmt.Errorf("%w: agent %d in space %d", ErrNotPresent, agentID, s.ID)
	}
	s.Occupants = append(s.Occupants[:i], s.Occupants[i+1:]...)
	return nil
}

func (s *Space) indexOf(agentID uint64) int {
	for i, id := range s.Occupants {
		if id == agentID {
			return i
		}
	}
	return -1
}

// Floor plan generation.
// Each group of spaces gets its own zone band across the floor; spaces are laid out on
// a grid inside the band and nudged by simplex noise so plans look less mechanical
// while staying deterministic for a given seed.
package office

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// SpaceGroup describes a batch of identical spaces.
type SpaceGroup struct {
	Type     SpaceType `yaml:"type" json:"type"`
	Count    int       `yaml:"count" json:"count"`
	Capacity int       `yaml:"capacity" json:"capacity"`

	// Optional explicit positions; when set, len(Positions) must equal Count.
	Positions []Point `yaml:"positions,omitempty" json:"positions,omitempty"`
}

// LayoutConfig holds floor plan generation parameters.
type LayoutConfig struct {
	Groups []SpaceGroup `yaml:"groups"`
	Width  float64      `yaml:"width"`
	Height float64      `yaml:"height"`
	Jitter float64      `yaml:"jitter"` // 0.0–1.0, fraction of half a grid cell
	Seed   int64        `yaml:"seed"`
}

// DefaultLayoutConfig mirrors the stock office: 30 workstations, 10 meeting rooms,
// 5 break areas, plus a handful of quiet pods.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Groups: []SpaceGroup{
			{Type: Workstation, Count: 30, Capacity: 4},
			{Type: MeetingRoom, Count: 10, Capacity: 6},
			{Type: BreakArea, Count: 5, Capacity: 10},
			{Type: QuietArea, Count: 6, Capacity: 4},
		},
		Width:  120,
		Height: 80,
		Jitter: 0.4,
		Seed:   42,
	}
}

// Generate builds a floor from the layout configuration.
func Generate(cfg LayoutConfig) (*Floor, error) {
	if len(cfg.Groups) == 0 {
		return nil, fmt.Errorf("layout has no space groups")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("layout dimensions must be positive, got %vx%v", cfg.Width, cfg.Height)
	}
	jitter := math.Max(0, math.Min(cfg.Jitter, 1))

	noise := opensimplex.NewNormalized(cfg.Seed)
	bandWidth := cfg.Width / float64(len(cfg.Groups))

	var spaces []*Space
	for gi, g := range cfg.Groups {
		if g.Count < 0 {
			return nil, fmt.Errorf("group %d (%s): negative count %d", gi, g.Type, g.Count)
		}
		if g.Count > 0 && g.Capacity < 1 {
			return nil, fmt.Errorf("group %d (%s): capacity must be positive, got %d", gi, g.Type, g.Capacity)
		}
		if len(g.Positions) > 0 && len(g.Positions) != g.Count {
			return nil, fmt.Errorf("group %d (%s): %d positions for %d spaces", gi, g.Type, len(g.Positions), g.Count)
		}

		var positions []Point
		if len(g.Positions) > 0 {
			positions = g.Positions
		} else {
			x0 := float64(gi) * bandWidth
			positions = gridPositions(noise, g.Count, x0, bandWidth, cfg.Height, jitter)
		}

		for _, p := range positions {
			spaces = append(spaces, &Space{
				ID:       SpaceID(len(spaces)),
				Type:     g.Type,
				Capacity: g.Capacity,
				Position: p,
			})
		}
	}

	return NewFloor(spaces, cfg.Width, cfg.Height)
}

// gridPositions lays out n cells in a band, keeping aspect ratio close to the band's.
func gridPositions(noise opensimplex.Noise, n int, x0, w, h, jitter float64) []Point {
	if n == 0 {
		return nil
	}
	cols := int(math.Ceil(math.Sqrt(float64(n) * w / h)))
	if cols < 1 {
		cols = 1
	}
	rows := (n + cols - 1) / cols
	cellW := w / float64(cols)
	cellH := h / float64(rows)

	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		c := i % cols
		r := i / cols
		cx := x0 + (float64(c)+0.5)*cellW
		cy := (float64(r) + 0.5) * cellH

		// Noise in [0,1) recentred to [-0.5,0.5); stays inside the cell.
		dx := (noise.Eval2(cx*0.1, cy*0.1) - 0.5) * cellW * jitter
		dy := (noise.Eval2(cy*0.1+100, cx*0.1+100) - 0.5) * cellH * jitter
		points = append(points, Point{X: cx + dx, Y: cy + dy})
	}
	return points
}

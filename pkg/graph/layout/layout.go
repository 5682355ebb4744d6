// Package layout places investigation graph nodes on a canvas and relaxes
// them with a force-directed simulation. Positions live in a Frame that is
// threaded explicitly through every tick; nothing here mutates the graph.
package layout

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/pkg/errors"
)

// Strategy selects how initial positions are computed
type Strategy string

const (
	// StrategyForce scatters nodes with jitter and leaves the rest to the simulator
	StrategyForce Strategy = "force"
	// StrategyRadial rings the non-target nodes around the centred target
	StrategyRadial Strategy = "radial"
	// StrategyHierarchical stacks non-target nodes in one layer per entity type
	StrategyHierarchical Strategy = "hierarchical"
)

const (
	RingRadius   = 200.0
	LayerHeight  = 120.0
	LayerSpacing = 100.0

	// forceRing and forceJitter shape the scatter used by StrategyForce
	forceRing   = 150.0
	forceJitter = 25.0
)

// layerOrder fixes the vertical order of hierarchical layers. Types outside
// the list follow in first-seen order.
var layerOrder = []graph.EntityType{
	graph.EntityEmail,
	graph.EntityUsername,
	graph.EntitySocial,
	graph.EntityWeb,
	graph.EntityPhone,
	graph.EntityAddress,
	graph.EntityRelative,
}

// ParseStrategy parses a strategy name. An empty name selects force.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return StrategyForce, nil
	case StrategyForce, StrategyRadial, StrategyHierarchical:
		return s, nil
	default:
		return "", errors.Errorf("unknown layout strategy %q", name)
	}
}

// Static reports whether positions are fixed by the strategy alone
func (s Strategy) Static() bool {
	return s == StrategyRadial || s == StrategyHierarchical
}

// Canvas is the drawable area
type Canvas struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// DefaultCanvas returns an 800x600 canvas
func DefaultCanvas() Canvas {
	return Canvas{Width: 800, Height: 600}
}

// Center returns the canvas midpoint
func (c Canvas) Center() (float64, float64) {
	return c.Width / 2, c.Height / 2
}

// Place computes a fresh frame for every node of g
func Place(g *graph.Graph, strategy Strategy, canvas Canvas, physics Physics, rng *rand.Rand) *Frame {
	frame := NewFrame(len(g.Nodes))
	for _, n := range g.Nodes {
		frame.add(Body{
			ID:     n.ID,
			Type:   n.Type,
			Radius: physics.radiusOf(n.Type),
			Pinned: n.Type == graph.EntityTarget,
		})
	}

	switch strategy {
	case StrategyRadial:
		placeRadial(frame, canvas)
	case StrategyHierarchical:
		placeHierarchical(frame, canvas)
	default:
		for i := range frame.Bodies {
			scatter(&frame.Bodies[i], i, len(frame.Bodies), canvas, rng)
		}
	}
	return frame
}

// placeRadial puts the target at the centre and the remaining N-1 bodies at
// angle ((i-1)/(N-1))*2pi on the fixed ring.
func placeRadial(frame *Frame, canvas Canvas) {
	cx, cy := canvas.Center()
	others := len(frame.Bodies) - countPinned(frame)

	i := 0
	for k := range frame.Bodies {
		b := &frame.Bodies[k]
		if b.Pinned {
			b.X, b.Y = cx, cy
			continue
		}
		i++
		angle := float64(i-1) / float64(others) * 2 * math.Pi
		b.X = cx + RingRadius*math.Cos(angle)
		b.Y = cy + RingRadius*math.Sin(angle)
	}
}

// placeHierarchical groups bodies into one layer per entity type. Layer l of
// L sits at cy + (l - L/2)*LayerHeight; bodies in a layer are spaced
// LayerSpacing apart and centred horizontally. The target is re-pinned to
// the centre afterwards.
func placeHierarchical(frame *Frame, canvas Canvas) {
	cx, cy := canvas.Center()

	layers := make(map[graph.EntityType][]int)
	seen := make([]graph.EntityType, 0)
	for k, b := range frame.Bodies {
		if b.Pinned {
			continue
		}
		if _, ok := layers[b.Type]; !ok {
			seen = append(seen, b.Type)
		}
		layers[b.Type] = append(layers[b.Type], k)
	}

	order := layerRank(seen)
	count := float64(len(order))
	for l, t := range order {
		members := layers[t]
		y := cy + (float64(l)-count/2)*LayerHeight
		offset := float64(len(members)-1) / 2
		for j, k := range members {
			frame.Bodies[k].X = cx + (float64(j)-offset)*LayerSpacing
			frame.Bodies[k].Y = y
		}
	}

	for k := range frame.Bodies {
		if frame.Bodies[k].Pinned {
			frame.Bodies[k].X, frame.Bodies[k].Y = cx, cy
		}
	}
}

func layerRank(types []graph.EntityType) []graph.EntityType {
	rank := make(map[graph.EntityType]int, len(layerOrder))
	for i, t := range layerOrder {
		rank[t] = i
	}
	ordered := append([]graph.EntityType(nil), types...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iok := rank[ordered[i]]
		rj, jok := rank[ordered[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})
	return ordered
}

// scatter drops a body near its role anchor: the target at the centre and
// everything else on a ring, both with random jitter.
func scatter(b *Body, i, n int, canvas Canvas, rng *rand.Rand) {
	cx, cy := canvas.Center()
	b.VX, b.VY = 0, 0
	if b.Pinned {
		b.X, b.Y = cx, cy
		return
	}

	angle := float64(i)/float64(max(n, 1))*2*math.Pi + (rng.Float64()-0.5)*0.5
	radius := forceRing + (rng.Float64()-0.5)*2*forceJitter
	b.X = cx + radius*math.Cos(angle)
	b.Y = cy + radius*math.Sin(angle)
}

func countPinned(frame *Frame) int {
	pinned := 0
	for _, b := range frame.Bodies {
		if b.Pinned {
			pinned++
		}
	}
	return pinned
}

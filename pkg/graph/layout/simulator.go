package layout

import (
	"math"
	"math/rand"
	"time"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/metrics"
	"github.com/sirupsen/logrus"
)

// goldenAngle spreads coincident pairs in distinct directions
const goldenAngle = 2.399963229728653

// Physics holds the simulation constants
type Physics struct {
	RestLength        float64 `yaml:"rest_length"`
	Spring            float64 `yaml:"spring"`
	Repulsion         float64 `yaml:"repulsion"`
	CollisionPadding  float64 `yaml:"collision_padding"`
	CollisionStrength float64 `yaml:"collision_strength"`
	Alpha             float64 `yaml:"alpha"`
	Damping           float64 `yaml:"damping"`
	BoundaryMargin    float64 `yaml:"boundary_margin"`
	MaxSpeed          float64 `yaml:"max_speed"`
	TargetRadius      float64 `yaml:"target_radius"`
	NodeRadius        float64 `yaml:"node_radius"`
}

// DefaultPhysics returns the stock constants
func DefaultPhysics() Physics {
	return Physics{
		RestLength:        120,
		Spring:            0.3,
		Repulsion:         1200,
		CollisionPadding:  15,
		CollisionStrength: 50,
		Alpha:             0.1,
		Damping:           0.85,
		BoundaryMargin:    20,
		MaxSpeed:          40,
		TargetRadius:      28,
		NodeRadius:        20,
	}
}

func (p Physics) radiusOf(t graph.EntityType) float64 {
	if t == graph.EntityTarget {
		return p.TargetRadius
	}
	return p.NodeRadius
}

// Simulator relaxes frames. It holds no frame state of its own; callers pass
// the previous frame in and keep the returned one.
//
// A Simulator is not safe for concurrent use because of its random source.
type Simulator struct {
	physics Physics
	canvas  Canvas
	rng     *rand.Rand
	logger  *logrus.Logger
}

// Option configures a Simulator
type Option func(*Simulator)

// WithPhysics overrides the simulation constants
func WithPhysics(p Physics) Option {
	return func(s *Simulator) {
		s.physics = p
	}
}

// WithCanvas overrides the canvas size
func WithCanvas(c Canvas) Option {
	return func(s *Simulator) {
		s.canvas = c
	}
}

// WithSeed makes placement jitter reproducible
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// NewSimulator creates a simulator with default physics on the default canvas
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		physics: DefaultPhysics(),
		canvas:  DefaultCanvas(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return s
}

// Physics returns the simulation constants in use
func (s *Simulator) Physics() Physics {
	return s.physics
}

// Canvas returns the canvas in use
func (s *Simulator) Canvas() Canvas {
	return s.canvas
}

// Place computes a fresh frame for g
func (s *Simulator) Place(g *graph.Graph, strategy Strategy) *Frame {
	return Place(g, strategy, s.canvas, s.physics, s.rng)
}

// Reconcile builds the frame for a rebuilt graph. Under the force strategy
// bodies whose id survives keep position and velocity, bodies missing from g
// are dropped and new ids get a fresh scatter. Static strategies are fully
// recomputed since their positions follow from the node set alone.
func (s *Simulator) Reconcile(prev *Frame, g *graph.Graph, strategy Strategy) *Frame {
	next := s.Place(g, strategy)
	if prev == nil || strategy.Static() {
		return next
	}

	next.Tick = prev.Tick
	kept := 0
	for i := range next.Bodies {
		b := &next.Bodies[i]
		old, ok := prev.Body(b.ID)
		if !ok {
			continue
		}
		b.X, b.Y, b.VX, b.VY = old.X, old.Y, old.VX, old.VY
		kept++
	}

	s.logger.WithFields(logrus.Fields{
		"kept":    kept,
		"added":   len(next.Bodies) - kept,
		"dropped": prev.Len() - kept,
	}).Debug("Reconciled layout frame")
	return next
}

// Tick advances prev by one step and returns the next frame. prev is not
// modified. Forces are accumulated in this order: springs, repulsion,
// collision; then velocity integrates alpha-scaled force, is damped, clamped
// to MaxSpeed, and moves the body, which is finally kept inside the canvas.
// Pinned bodies never move.
func (s *Simulator) Tick(g *graph.Graph, prev *Frame) *Frame {
	next := prev.Clone()
	next.Tick++
	p := s.physics
	bodies := next.Bodies
	fx := make([]float64, len(bodies))
	fy := make([]float64, len(bodies))

	// springs act on the child endpoint only
	for _, e := range g.Edges {
		si, ok := next.Index(e.Source)
		if !ok {
			continue
		}
		ci, ok := next.Index(e.Target)
		if !ok || si == ci || bodies[ci].Pinned {
			continue
		}
		ux, uy, dist := direction(bodies[ci], bodies[si], ci, si)
		force := (dist - p.RestLength) * p.Spring * e.Strength
		fx[ci] -= ux * force
		fy[ci] -= uy * force
	}

	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			ux, uy, dist := direction(bodies[i], bodies[j], i, j)

			floored := math.Max(dist, 1)
			repel := p.Repulsion / (floored * floored)
			fx[i] += ux * repel
			fy[i] += uy * repel
			fx[j] -= ux * repel
			fy[j] -= uy * repel

			minDist := bodies[i].Radius + bodies[j].Radius + p.CollisionPadding
			if dist < minDist {
				impulse := (minDist - dist) / floored * p.CollisionStrength
				fx[i] += ux * impulse
				fy[i] += uy * impulse
				fx[j] -= ux * impulse
				fy[j] -= uy * impulse
			}
		}
	}

	for i := range bodies {
		b := &bodies[i]
		if b.Pinned {
			b.VX, b.VY = 0, 0
			continue
		}

		b.VX = (b.VX + fx[i]*p.Alpha) * p.Damping
		b.VY = (b.VY + fy[i]*p.Alpha) * p.Damping
		if p.MaxSpeed > 0 {
			if speed := math.Hypot(b.VX, b.VY); speed > p.MaxSpeed {
				b.VX *= p.MaxSpeed / speed
				b.VY *= p.MaxSpeed / speed
			}
		}
		b.X += b.VX
		b.Y += b.VY

		s.contain(b)
	}

	metrics.SimulationTicks.Inc()
	metrics.SimulationKineticEnergy.Set(next.Energy())
	return next
}

// contain clamps a body to [radius+margin, dim-radius-margin] on each axis
// and zeroes the velocity component that hit the wall.
func (s *Simulator) contain(b *Body) {
	pad := b.Radius + s.physics.BoundaryMargin

	if lo, hi := pad, s.canvas.Width-pad; b.X < lo {
		b.X, b.VX = lo, 0
	} else if b.X > hi {
		b.X, b.VX = hi, 0
	}
	if lo, hi := pad, s.canvas.Height-pad; b.Y < lo {
		b.Y, b.VY = lo, 0
	} else if b.Y > hi {
		b.Y, b.VY = hi, 0
	}
}

// direction returns the unit vector from b to a and their distance.
// Coincident bodies get a deterministic golden-angle direction.
func direction(a, b Body, i, j int) (float64, float64, float64) {
	dx, dy := a.X-b.X, a.Y-b.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		angle := float64(i*31+j) * goldenAngle
		return math.Cos(angle), math.Sin(angle), 0
	}
	return dx / dist, dy / dist, dist
}

// Relax runs n ticks from prev and returns the last frame
func (s *Simulator) Relax(g *graph.Graph, prev *Frame, n int) *Frame {
	frame := prev
	for i := 0; i < n; i++ {
		frame = s.Tick(g, frame)
	}
	return frame
}

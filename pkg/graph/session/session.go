// Package session sequences rebuilds and simulation ticks for one live
// investigation graph. There is a single writer, serialised by the session
// lock, and any number of readers. Readers only ever see complete snapshots
// because every tick and rebuild publishes a fresh one with an atomic swap.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/builder"
	"github.com/athapong/aio-osint/pkg/graph/feed"
	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/athapong/aio-osint/pkg/graph/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Status is the simulator state of a session
type Status string

const (
	// StatusIdle means nothing has been built yet or the session was deactivated
	StatusIdle Status = "idle"
	// StatusRelaxing means a non-empty graph is live and ticks move it
	StatusRelaxing Status = "relaxing"
	// StatusEmpty means the latest build produced no nodes
	StatusEmpty Status = "empty"
	// StatusFeedFailed means the latest fetch failed; the graph is empty
	StatusFeedFailed Status = "feed_failed"
)

// DefaultTickInterval is the nominal 60 Hz tick period
const DefaultTickInterval = time.Second / 60

// Snapshot is an immutable view of the session. Callers must not modify it.
type Snapshot struct {
	Graph     *graph.Graph    `json:"graph"`
	Frame     *layout.Frame   `json:"frame,omitempty"`
	Strategy  layout.Strategy `json:"strategy"`
	Status    Status          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Session owns the live graph of one investigation
type Session struct {
	investigationID string
	feed            feed.Feed
	builder         *builder.Builder
	simulator       *layout.Simulator
	logger          *logrus.Logger

	mu       sync.Mutex
	strategy layout.Strategy
	current  atomic.Pointer[Snapshot]
	flight   singleflight.Group
	requests atomic.Uint64
	pivots   chan graph.PivotEvent
	onBuild  func(*Snapshot)
}

// Option configures a Session
type Option func(*Session)

// WithBuilder sets the graph builder
func WithBuilder(b *builder.Builder) Option {
	return func(s *Session) {
		s.builder = b
	}
}

// WithSimulator sets the layout simulator
func WithSimulator(sim *layout.Simulator) Option {
	return func(s *Session) {
		s.simulator = sim
	}
}

// WithStrategy sets the initial layout strategy
func WithStrategy(strategy layout.Strategy) Option {
	return func(s *Session) {
		s.strategy = strategy
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithPivotBuffer sets how many pivot events may wait unread
func WithPivotBuffer(n int) Option {
	return func(s *Session) {
		s.pivots = make(chan graph.PivotEvent, n)
	}
}

// WithRebuildHook registers fn to run after every rebuild, successful or not.
// It runs on the rebuilding goroutine outside the session lock.
func WithRebuildHook(fn func(*Snapshot)) Option {
	return func(s *Session) {
		s.onBuild = fn
	}
}

// New creates a session for the investigation fed by f
func New(investigationID string, f feed.Feed, opts ...Option) *Session {
	s := &Session{
		investigationID: investigationID,
		feed:            f,
		strategy:        layout.StrategyForce,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if s.builder == nil {
		s.builder = builder.New(builder.WithLogger(s.logger))
	}
	if s.simulator == nil {
		s.simulator = layout.NewSimulator(layout.WithLogger(s.logger))
	}
	if s.pivots == nil {
		s.pivots = make(chan graph.PivotEvent, 16)
	}

	s.current.Store(&Snapshot{
		Graph:     graph.NewEmptyGraph(),
		Strategy:  s.strategy,
		Status:    StatusIdle,
		UpdatedAt: time.Now(),
	})
	return s
}

// InvestigationID returns the investigation this session renders
func (s *Session) InvestigationID() string {
	return s.investigationID
}

// Snapshot returns the latest published snapshot. It never returns nil.
func (s *Session) Snapshot() *Snapshot {
	return s.current.Load()
}

// Pivots delivers events produced by Activate
func (s *Session) Pivots() <-chan graph.PivotEvent {
	return s.pivots
}

// Rebuild fetches the full finding history and rebuilds the graph.
// Concurrent calls share one rebuild, but a caller never receives a rebuild
// whose fetch began before the call: it joins or starts a later one. A feed
// failure publishes an empty graph with StatusFeedFailed and returns an error
// wrapping graph.ErrFeedUnavailable; a half-built graph is never published.
func (s *Session) Rebuild(ctx context.Context) (*Snapshot, error) {
	requested := s.requests.Add(1)

	for {
		v, err, shared := s.flight.Do(s.investigationID, func() (interface{}, error) {
			res := flightResult{served: s.requests.Load()}
			res.snap, res.err = s.rebuild(ctx)
			if s.onBuild != nil {
				s.onBuild(res.snap)
			}
			return res, nil
		})
		if err != nil {
			return nil, err
		}

		res := v.(flightResult)
		if res.served >= requested {
			return res.snap, res.err
		}
		if shared {
			s.logger.WithField("investigation_id", s.investigationID).Debug("Joined rebuild started before the request, rebuilding again")
		}
		if err := ctx.Err(); err != nil {
			return res.snap, err
		}
	}
}

// flightResult is one rebuild and the highest request number it covers
type flightResult struct {
	snap   *Snapshot
	err    error
	served uint64
}

func (s *Session) rebuild(ctx context.Context) (*Snapshot, error) {
	timer := prometheus.NewTimer(metrics.GraphBuildDuration.WithLabelValues("session"))
	defer timer.ObserveDuration()

	findings, err := s.feed.Findings(ctx, s.investigationID)
	if err != nil {
		metrics.FeedFailures.WithLabelValues(s.investigationID).Inc()
		metrics.RebuildsTotal.WithLabelValues(string(StatusFeedFailed)).Inc()
		s.logger.WithError(err).WithField("investigation_id", s.investigationID).Warn("Finding feed unavailable")

		snap := s.publish(graph.NewEmptyGraph(), nil, StatusFeedFailed)
		return snap, errors.Wrapf(graph.ErrFeedUnavailable, "investigation %s: %v", s.investigationID, err)
	}

	g := s.builder.Build(findings)

	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusRelaxing
	var frame *layout.Frame
	if g.IsEmpty() {
		status = StatusEmpty
	} else {
		frame = s.simulator.Reconcile(s.current.Load().Frame, g, s.strategy)
	}
	snap := s.publishLocked(g, frame, status)

	recordGraph(g)
	metrics.RebuildsTotal.WithLabelValues(string(status)).Inc()
	s.logger.WithFields(logrus.Fields{
		"investigation_id": s.investigationID,
		"findings":         len(findings),
		"nodes":            len(g.Nodes),
		"edges":            len(g.Edges),
		"status":           status,
	}).Info("Rebuilt investigation graph")
	return snap, nil
}

// Tick advances the simulation one step. Ticks only move a relaxing graph
// laid out with the force strategy; otherwise the current snapshot is returned.
func (s *Session) Tick() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur.Status != StatusRelaxing || cur.Frame == nil || s.strategy.Static() {
		return cur
	}
	return s.publishLocked(cur.Graph, s.simulator.Tick(cur.Graph, cur.Frame), cur.Status)
}

// SetStrategy switches the layout strategy and recomputes positions for the
// current node set. Nodes and edges are kept.
func (s *Session) SetStrategy(strategy layout.Strategy) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategy = strategy
	cur := s.current.Load()
	if cur.Graph.IsEmpty() {
		return s.publishLocked(cur.Graph, nil, cur.Status)
	}
	return s.publishLocked(cur.Graph, s.simulator.Place(cur.Graph, strategy), cur.Status)
}

// Deactivate tears the simulation down. The graph stays readable but ticks
// stop until the next rebuild.
func (s *Session) Deactivate() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	return s.publishLocked(cur.Graph, nil, StatusIdle)
}

// Activate emits the pivot event for a searchable node
func (s *Session) Activate(nodeID string) (graph.PivotEvent, error) {
	node, ok := s.Snapshot().Graph.Node(nodeID)
	if !ok {
		return graph.PivotEvent{}, errors.Wrapf(graph.ErrNodeNotFound, "node %s", nodeID)
	}

	event, err := graph.Pivot(node)
	if err != nil {
		return graph.PivotEvent{}, err
	}

	select {
	case s.pivots <- event:
	default:
		s.logger.WithField("node_id", nodeID).Warn("Pivot buffer full, dropping event")
	}
	return event, nil
}

// Watch rebuilds once and then again on every feed update until ctx ends.
// Rebuild failures are logged and do not stop watching.
func (s *Session) Watch(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial rebuild failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.feed.Updates():
			if _, err := s.Rebuild(ctx); err != nil {
				s.logger.WithError(err).Warn("Rebuild failed")
			}
		}
	}
}

// Run ticks the simulation every interval until ctx ends
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
			metrics.UpdateSystemMetrics()
		}
	}
}

// Relax runs n ticks back to back
func (s *Session) Relax(n int) *Snapshot {
	snap := s.Snapshot()
	for i := 0; i < n; i++ {
		snap = s.Tick()
	}
	return snap
}

func (s *Session) publish(g *graph.Graph, frame *layout.Frame, status Status) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishLocked(g, frame, status)
}

func (s *Session) publishLocked(g *graph.Graph, frame *layout.Frame, status Status) *Snapshot {
	snap := &Snapshot{
		Graph:     g,
		Frame:     frame,
		Strategy:  s.strategy,
		Status:    status,
		UpdatedAt: time.Now(),
	}
	s.current.Store(snap)
	return snap
}

func recordGraph(g *graph.Graph) {
	nodes := make(map[string]int)
	for t, n := range g.CountByType() {
		nodes[string(t)] = n
	}
	edges := make(map[string]int)
	for _, e := range g.Edges {
		edges[e.Relation]++
	}
	metrics.RecordGraph(nodes, edges)
}

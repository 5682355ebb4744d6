package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/feed"
	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const investigation = "inv-1"

func finding(id string, agent graph.AgentType, raw string, at time.Time) graph.Finding {
	return graph.Finding{
		ID:              id,
		InvestigationID: investigation,
		AgentType:       agent,
		RawData:         json.RawMessage(raw),
		ConfidenceScore: graph.Scored(70),
		CreatedAt:       at,
	}
}

func newSession(t *testing.T, opts ...Option) (*Session, *feed.MemoryFeed) {
	t.Helper()
	f := feed.NewMemoryFeed()
	opts = append([]Option{WithSimulator(layout.NewSimulator(layout.WithSeed(1)))}, opts...)
	return New(investigation, f, opts...), f
}

func TestSessionStartsIdle(t *testing.T) {
	s, _ := newSession(t)
	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.True(t, snap.Graph.IsEmpty())
}

func TestSessionRebuild(t *testing.T) {
	s, f := newSession(t)
	now := time.Now()
	f.Append(
		finding("f1", graph.AgentPhone, `{"phone":"(555) 234-5678"}`, now),
		finding("f2", graph.AgentAddress, `{"address":"12 Oak St"}`, now.Add(time.Second)),
	)

	snap, err := s.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRelaxing, snap.Status)
	assert.Len(t, snap.Graph.Nodes, 3)
	assert.Len(t, snap.Graph.Edges, 2)
	require.NotNil(t, snap.Frame)
	assert.Equal(t, 3, snap.Frame.Len())
	assert.Same(t, snap, s.Snapshot())
}

func TestSessionRebuildEmpty(t *testing.T) {
	s, _ := newSession(t)
	snap, err := s.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Nil(t, snap.Frame)

	assert.Same(t, snap, s.Tick(), "ticks are a no-op without nodes")
}

func TestSessionFeedFailure(t *testing.T) {
	s, f := newSession(t)
	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()))
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	f.Fail(errors.New("upstream timeout"))
	snap, err := s.Rebuild(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrFeedUnavailable)
	assert.Equal(t, StatusFeedFailed, snap.Status)
	assert.True(t, snap.Graph.IsEmpty(), "a failed fetch never leaves a stale or partial graph")

	f.Fail(nil)
	snap, err = s.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRelaxing, snap.Status)
}

func TestSessionRebuildKeepsMotionState(t *testing.T) {
	s, f := newSession(t)
	now := time.Now()
	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, now))
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	before := s.Relax(5)
	phoneID := before.Graph.Nodes[1].ID
	body, ok := before.Frame.Body(phoneID)
	require.True(t, ok)

	f.Append(finding("f2", graph.AgentAddress, `{"address":"12 Oak St"}`, now.Add(time.Second)))
	after, err := s.Rebuild(context.Background())
	require.NoError(t, err)
	require.Len(t, after.Graph.Nodes, 3)

	kept, ok := after.Frame.Body(phoneID)
	require.True(t, ok)
	assert.Equal(t, body.X, kept.X)
	assert.Equal(t, body.Y, kept.Y)
	assert.Equal(t, body.VX, kept.VX)
	assert.Equal(t, body.VY, kept.VY)
}

func TestSessionTickPublishesNewFrame(t *testing.T) {
	s, f := newSession(t)
	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()))
	first, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	next := s.Tick()
	assert.NotSame(t, first.Frame, next.Frame)
	assert.Equal(t, first.Frame.Tick+1, next.Frame.Tick)
	assert.Equal(t, uint64(0), first.Frame.Tick, "published frames are never mutated")
}

func TestSessionSetStrategy(t *testing.T) {
	s, f := newSession(t)
	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()))
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	snap := s.SetStrategy(layout.StrategyRadial)
	assert.Equal(t, layout.StrategyRadial, snap.Strategy)
	assert.Len(t, snap.Graph.Nodes, 2)

	phone, ok := snap.Frame.Body(snap.Graph.Nodes[1].ID)
	require.True(t, ok)
	assert.InDelta(t, 400+layout.RingRadius, phone.X, 1e-9)
	assert.InDelta(t, 300, phone.Y, 1e-9)

	assert.Same(t, snap, s.Tick(), "static layouts do not relax")
}

func TestSessionDeactivate(t *testing.T) {
	s, f := newSession(t)
	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()))
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	snap := s.Deactivate()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Frame)
	assert.Len(t, snap.Graph.Nodes, 2)
	assert.Same(t, snap, s.Tick())
}

func TestSessionActivate(t *testing.T) {
	s, f := newSession(t)
	f.Append(
		finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()),
		finding("f2", graph.AgentWeb, `{"results":[{"title":"Doe","url":"https://example.com/doe"}]}`, time.Now()),
	)
	snap, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	var phoneID, webID string
	for _, n := range snap.Graph.Nodes {
		switch n.Type {
		case graph.EntityPhone:
			phoneID = n.ID
		case graph.EntityWeb:
			webID = n.ID
		}
	}
	require.NotEmpty(t, phoneID)
	require.NotEmpty(t, webID)

	event, err := s.Activate(phoneID)
	require.NoError(t, err)
	assert.Equal(t, graph.PivotEvent{Type: "phone", Value: "5552345678"}, event)
	assert.Equal(t, event, <-s.Pivots())

	_, err = s.Activate(webID)
	assert.ErrorIs(t, err, graph.ErrNotSearchable)

	_, err = s.Activate("missing")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestSessionWatch(t *testing.T) {
	s, f := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	require.Eventually(t, func() bool {
		return s.Snapshot().Status == StatusEmpty
	}, 2*time.Second, 10*time.Millisecond)

	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()))
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Graph.Nodes) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestSessionRun(t *testing.T) {
	s, f := newSession(t)
	f.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, time.Now()))
	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool {
		return s.Snapshot().Frame.Tick >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestSessionRebuildHook(t *testing.T) {
	var seen []Status
	s, f := newSession(t, WithRebuildHook(func(snap *Snapshot) {
		seen = append(seen, snap.Status)
	}))

	_, err := s.Rebuild(context.Background())
	require.NoError(t, err)
	f.Fail(errors.New("down"))
	_, err = s.Rebuild(context.Background())
	require.Error(t, err)

	assert.Equal(t, []Status{StatusEmpty, StatusFeedFailed}, seen)
}

// gatedFeed holds its first fetch open after reading the history until released
type gatedFeed struct {
	*feed.MemoryFeed
	once    sync.Once
	fetched chan struct{}
	release chan struct{}
}

func (g *gatedFeed) Findings(ctx context.Context, id string) ([]graph.Finding, error) {
	findings, err := g.MemoryFeed.Findings(ctx, id)
	g.once.Do(func() {
		close(g.fetched)
		<-g.release
	})
	return findings, err
}

func TestSessionRebuildSeesFindingsAppendedDuringInFlightRebuild(t *testing.T) {
	gated := &gatedFeed{
		MemoryFeed: feed.NewMemoryFeed(),
		fetched:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := New(investigation, gated, WithSimulator(layout.NewSimulator(layout.WithSeed(1))))

	now := time.Now()
	gated.Append(finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, now))

	type result struct {
		snap *Snapshot
		err  error
	}
	first := make(chan result, 1)
	go func() {
		snap, err := s.Rebuild(context.Background())
		first <- result{snap, err}
	}()
	<-gated.fetched

	// the in-flight rebuild already read the history without this finding
	gated.Append(finding("f2", graph.AgentAddress, `{"address":"12 Oak St"}`, now.Add(time.Second)))
	second := make(chan result, 1)
	go func() {
		snap, err := s.Rebuild(context.Background())
		second <- result{snap, err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	r1 := <-first
	require.NoError(t, r1.err)
	assert.Len(t, r1.snap.Graph.Nodes, 2)

	r2 := <-second
	require.NoError(t, r2.err)
	require.Len(t, r2.snap.Graph.Nodes, 3, "the second caller's own finding is in its graph")
	counts := r2.snap.Graph.CountByType()
	assert.Equal(t, 1, counts[graph.EntityAddress])
	assert.Len(t, s.Snapshot().Graph.Nodes, 3)
}

// Package feed provides finding sources for investigation sessions. A feed
// returns the full finding history on demand and signals on Updates whenever
// that history may have changed.
package feed

import (
	"context"
	"sync"

	"github.com/athapong/aio-osint/pkg/graph"
)

// Feed is the finding source consumed by a session
type Feed interface {
	// Findings returns every finding recorded for the investigation
	Findings(ctx context.Context, investigationID string) ([]graph.Finding, error)
	// Updates delivers a signal whenever new findings may be available.
	// Signals coalesce: several changes may produce one signal.
	Updates() <-chan struct{}
}

// MemoryFeed is an in-process feed
type MemoryFeed struct {
	mu       sync.RWMutex
	findings map[string][]graph.Finding
	failure  error
	updates  chan struct{}
}

// NewMemoryFeed creates an empty in-memory feed
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		findings: make(map[string][]graph.Finding),
		updates:  make(chan struct{}, 1),
	}
}

// Append records findings and signals subscribers
func (m *MemoryFeed) Append(findings ...graph.Finding) {
	m.mu.Lock()
	for _, f := range findings {
		m.findings[f.InvestigationID] = append(m.findings[f.InvestigationID], f)
	}
	m.mu.Unlock()

	notify(m.updates)
}

// Fail makes subsequent fetches return err until Fail(nil) is called
func (m *MemoryFeed) Fail(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()

	notify(m.updates)
}

// Findings returns a copy of the recorded findings
func (m *MemoryFeed) Findings(ctx context.Context, investigationID string) ([]graph.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failure != nil {
		return nil, m.failure
	}
	out := make([]graph.Finding, len(m.findings[investigationID]))
	copy(out, m.findings[investigationID])
	return out, nil
}

// Updates implements Feed
func (m *MemoryFeed) Updates() <-chan struct{} {
	return m.updates
}

// notify signals without blocking; a pending signal already covers this change
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

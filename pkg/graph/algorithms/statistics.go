package algorithms

import (
	"github.com/athapong/aio-osint/pkg/graph"
	mapset "github.com/deckarep/golang-set/v2"
)

// ComputeStatistics summarises a relative graph. Person nodes are the target
// plus relatives. Relationship edges, and the mean confidence taken over their
// strengths, exclude the lives_at/has_phone/has_email satellites. An address
// is shared when more than one person lives there.
func ComputeStatistics(g *graph.Graph) *graph.Statistics {
	stats := &graph.Statistics{TotalNodes: len(g.Nodes)}
	if len(g.Nodes) == 0 {
		return stats
	}

	for _, n := range g.Nodes {
		switch n.Type {
		case graph.EntityTarget, graph.EntityRelative:
			stats.PersonNodes++
		case graph.EntityAddress:
			stats.AddressNodes++
		case graph.EntityPhone:
			stats.PhoneNodes++
		case graph.EntityEmail:
			stats.EmailNodes++
		}
	}

	residents := make(map[string]mapset.Set[string])
	totalStrength := 0.0
	for _, e := range g.Edges {
		if !adminRelations[e.Relation] {
			stats.RelationshipEdges++
			totalStrength += e.Strength
			continue
		}
		if e.Relation != graph.RelationLivesAt {
			continue
		}
		if _, ok := residents[e.Target]; !ok {
			residents[e.Target] = mapset.NewThreadUnsafeSet[string]()
		}
		residents[e.Target].Add(e.Source)
	}
	if stats.RelationshipEdges > 0 {
		stats.AverageConfidence = totalStrength / float64(stats.RelationshipEdges)
	}
	for _, people := range residents {
		if people.Cardinality() > 1 {
			stats.SharedAddresses++
		}
	}

	n := len(g.Nodes)
	possible := n * (n - 1) / 2
	if possible < 1 {
		possible = 1
	}
	stats.Density = float64(len(g.Edges)) / float64(possible)
	return stats
}

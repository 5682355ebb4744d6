package algorithms

import (
	"testing"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeBetween(g *graph.Graph, a, b string) (graph.Edge, bool) {
	for _, e := range g.Edges {
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			return e, true
		}
	}
	return graph.Edge{}, false
}

func nodeByLabel(g *graph.Graph, label string) (graph.Node, bool) {
	for _, n := range g.Nodes {
		if n.Label == label {
			return n, true
		}
	}
	return graph.Node{}, false
}

func TestExpandRelatives_InvalidDepth(t *testing.T) {
	_, err := ExpandRelatives(graph.Person{Name: "Jane Doe"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrInvalidDepth)
}

func TestExpandRelatives_Satellites(t *testing.T) {
	root := graph.Person{
		ID:        "p-root",
		Name:      "Jane Doe",
		Addresses: []string{"12 Oak St, Springfield"},
		Phones:    []string{"(555) 234-5678", "1234567890"},
		Emails:    []string{"Jane@Example.com"},
	}

	g, err := ExpandRelatives(root, 1)
	require.NoError(t, err)

	counts := g.CountByType()
	assert.Equal(t, 1, counts[graph.EntityTarget])
	assert.Equal(t, 1, counts[graph.EntityAddress])
	assert.Equal(t, 1, counts[graph.EntityPhone], "placeholder phone must be filtered")
	assert.Equal(t, 1, counts[graph.EntityEmail])

	relations := map[string]int{}
	for _, e := range g.Edges {
		assert.Equal(t, "p-root", e.Source)
		relations[e.Relation]++
	}
	assert.Equal(t, map[string]int{
		graph.RelationLivesAt:  1,
		graph.RelationHasPhone: 1,
		graph.RelationHasEmail: 1,
	}, relations)

	require.NotNil(t, g.Statistics)
	assert.Equal(t, 0, g.Statistics.RelationshipEdges)
	assert.Equal(t, 1, g.Statistics.PersonNodes)
}

func TestExpandRelatives_DepthBound(t *testing.T) {
	grandchild := &graph.Person{ID: "p-gc", Name: "Tim Doe"}
	child := &graph.Person{
		ID:                "p-child",
		Name:              "Bob Doe",
		EnrichedRelatives: []graph.RelativeMatch{{Name: "Tim Doe", Match: grandchild}},
	}
	root := graph.Person{
		ID:                "p-root",
		Name:              "Jane Doe",
		EnrichedRelatives: []graph.RelativeMatch{{Name: "Bob Doe", Match: child}},
	}

	g, err := ExpandRelatives(root, 1)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	_, ok := g.Node("p-gc")
	assert.False(t, ok, "depth 1 must not reach grandchildren")

	g, err = ExpandRelatives(root, 2)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)
	gc, ok := g.Node("p-gc")
	require.True(t, ok)
	assert.Equal(t, 2, gc.Attributes["depth"])
}

func TestExpandRelatives_CycleSafe(t *testing.T) {
	a := &graph.Person{ID: "p-a", Name: "Ann Smith"}
	b := &graph.Person{ID: "p-b", Name: "Ben Smith"}
	a.EnrichedRelatives = []graph.RelativeMatch{{Name: "Ben Smith", Match: b}}
	b.EnrichedRelatives = []graph.RelativeMatch{{Name: "Ann Smith", Match: a}}

	g, err := ExpandRelatives(*a, 10)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1, "back-reference must not duplicate the pair edge")
}

func TestExpandRelatives_SkipsSelfAndDuplicates(t *testing.T) {
	root := graph.Person{
		Name:      "Jane Doe",
		Relatives: []string{"jane doe", "Mark Lee", "MARK LEE", "  "},
	}

	g, err := ExpandRelatives(root, 1)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)

	mark, ok := nodeByLabel(g, "Mark Lee")
	require.True(t, ok)
	e, ok := edgeBetween(g, g.Nodes[0].ID, mark.ID)
	require.True(t, ok)
	assert.Equal(t, graph.RelationFamilyDifferentSurname, e.Relation)
	assert.InDelta(t, 0.5, e.Strength, 1e-9)
}

func TestExpandRelatives_Residents(t *testing.T) {
	root := graph.Person{
		Name:      "Jane Doe",
		Addresses: []string{"12 Oak St"},
		Residents: []graph.Resident{
			{Name: "Carl Ray", Address: "12  OAK st", Source: "property"},
			{Name: "Nobody Here", Address: "99 Elm St"},
		},
	}

	g, err := ExpandRelatives(root, 1)
	require.NoError(t, err)

	carl, ok := nodeByLabel(g, "Carl Ray")
	require.True(t, ok)
	_, ok = nodeByLabel(g, "Nobody Here")
	assert.False(t, ok)

	addr, ok := nodeByLabel(g, "12 Oak St")
	require.True(t, ok)
	e, ok := edgeBetween(g, carl.ID, addr.ID)
	require.True(t, ok)
	assert.Equal(t, graph.RelationLivesAt, e.Relation)
	assert.Equal(t, 1, g.Statistics.SharedAddresses)
}

func TestExpandRelatives_EnrichedRelativeSharesAddress(t *testing.T) {
	brother := &graph.Person{ID: "p-bob", Name: "Bob Doe", Addresses: []string{"12 OAK ST", "40 Pine Rd"}}
	cousin := &graph.Person{ID: "p-kim", Name: "Kim Lee", Addresses: []string{"7 Birch Ln"}}
	root := graph.Person{
		ID:        "p-root",
		Name:      "Jane Doe",
		Addresses: []string{"12 Oak St"},
		EnrichedRelatives: []graph.RelativeMatch{
			{Name: "Bob Doe", Match: brother},
			{Name: "Kim Lee", Match: cousin},
		},
	}

	g, err := ExpandRelatives(root, 1)
	require.NoError(t, err)

	addr, ok := nodeByLabel(g, "12 Oak St")
	require.True(t, ok)
	e, ok := edgeBetween(g, "p-bob", addr.ID)
	require.True(t, ok, "a relative listing a root address lives there too")
	assert.Equal(t, graph.RelationLivesAt, e.Relation)

	_, ok = edgeBetween(g, "p-kim", addr.ID)
	assert.False(t, ok)
	_, ok = nodeByLabel(g, "40 Pine Rd")
	assert.False(t, ok, "only root addresses become nodes")

	bob, ok := g.Node("p-bob")
	require.True(t, ok)
	assert.Equal(t, 85, bob.Confidence)
	assert.Equal(t, 1, g.Statistics.SharedAddresses)
	assert.Equal(t, 2, g.Statistics.RelationshipEdges)
}

func TestInferRelationship(t *testing.T) {
	tests := []struct {
		name   string
		person string
		rel    graph.RelativeMatch
		want   string
	}{
		{"hint wins", "Jane Doe", graph.RelativeMatch{Name: "Bob Roe", Relationship: "spouse"}, "spouse"},
		{"same surname", "Jane Doe", graph.RelativeMatch{Name: "Bob Doe"}, graph.RelationFamilySameSurname},
		{"different surname", "Jane Doe", graph.RelativeMatch{Name: "Bob Roe"}, graph.RelationFamilyDifferentSurname},
		{"single token", "Jane Doe", graph.RelativeMatch{Name: "Bob"}, graph.RelationRelative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRelationship(tt.person, tt.rel))
		})
	}
}

func TestRelationshipConfidence(t *testing.T) {
	person := &graph.Person{Name: "Jane Doe", Addresses: []string{"12 Oak St"}}

	assert.InDelta(t, 0.5, RelationshipConfidence(person, graph.RelativeMatch{Name: "Bob Doe"}), 1e-9)

	enriched := graph.RelativeMatch{Name: "Bob Doe", Match: &graph.Person{Name: "Bob Doe"}}
	assert.InDelta(t, 0.7, RelationshipConfidence(person, enriched), 1e-9)

	shared := graph.RelativeMatch{Name: "Bob Doe", Match: &graph.Person{Name: "Bob Doe", Addresses: []string{"12 oak st"}}}
	assert.InDelta(t, 0.85, RelationshipConfidence(person, shared), 1e-9)
}

func TestComputeStatistics(t *testing.T) {
	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "a", Type: graph.EntityTarget},
			{ID: "b", Type: graph.EntityRelative},
			{ID: "c", Type: graph.EntityAddress},
			{ID: "d", Type: graph.EntityPhone},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Relation: graph.RelationRelative, Strength: 0.6},
			{Source: "a", Target: "c", Relation: graph.RelationLivesAt, Strength: 0.9},
			{Source: "b", Target: "c", Relation: graph.RelationLivesAt, Strength: 0.9},
			{Source: "a", Target: "d", Relation: graph.RelationHasPhone, Strength: 0.9},
		},
	}

	stats := ComputeStatistics(g)
	assert.Equal(t, 4, stats.TotalNodes)
	assert.Equal(t, 2, stats.PersonNodes)
	assert.Equal(t, 1, stats.AddressNodes)
	assert.Equal(t, 1, stats.PhoneNodes)
	assert.Equal(t, 1, stats.RelationshipEdges)
	assert.InDelta(t, 0.6, stats.AverageConfidence, 1e-9)
	assert.Equal(t, 1, stats.SharedAddresses)
	assert.InDelta(t, 4.0/6.0, stats.Density, 1e-9)

	single := ComputeStatistics(&graph.Graph{Nodes: []graph.Node{{ID: "a", Type: graph.EntityTarget}}})
	assert.Equal(t, 0.0, single.Density)
}

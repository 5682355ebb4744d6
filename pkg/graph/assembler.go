package graph

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Assembler accumulates nodes and edges in insertion order and emits a Graph.
// Nodes are keyed by id; adding an id twice keeps the first node. Edges are
// keyed by EdgeID; a repeated edge keeps the stronger of the two strengths.
//
// Assembler is not safe for concurrent use. Builders create one per build.
type Assembler struct {
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	edgeIndex map[string]int
	logger    *logrus.Logger
}

// NewAssembler creates an empty assembler
func NewAssembler(logger *logrus.Logger) *Assembler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Assembler{
		nodes:     make([]Node, 0),
		nodeIndex: make(map[string]int),
		edges:     make([]Edge, 0),
		edgeIndex: make(map[string]int),
		logger:    logger,
	}
}

// HasNode reports whether a node with the id was already added
func (a *Assembler) HasNode(id string) bool {
	_, exists := a.nodeIndex[id]
	return exists
}

// AddNode adds a node and reports whether it was new. Confidence is clamped to [0,100].
func (a *Assembler) AddNode(node Node) bool {
	if _, exists := a.nodeIndex[node.ID]; exists {
		return false
	}

	node.Confidence = ClampConfidence(node.Confidence)
	if node.Attributes == nil {
		node.Attributes = make(map[string]interface{})
	}

	a.nodes = append(a.nodes, node)
	a.nodeIndex[node.ID] = len(a.nodes) - 1
	return true
}

// UpdateNode applies fn to the stored node with the given id
func (a *Assembler) UpdateNode(id string, fn func(*Node)) bool {
	idx, exists := a.nodeIndex[id]
	if !exists {
		return false
	}
	fn(&a.nodes[idx])
	a.nodes[idx].Confidence = ClampConfidence(a.nodes[idx].Confidence)
	return true
}

// AddEdge links two known nodes. Edges referencing unknown nodes are skipped.
func (a *Assembler) AddEdge(source, target, relation string, strength float64) (Edge, bool) {
	_, sourceExists := a.nodeIndex[source]
	_, targetExists := a.nodeIndex[target]
	if !sourceExists || !targetExists {
		a.logger.WithFields(logrus.Fields{
			"source":   source,
			"target":   target,
			"relation": relation,
		}).Warn("Skipping edge with unknown endpoints")
		return Edge{}, false
	}

	edgeID := EdgeID(source, relation, target)
	strength = ClampStrength(strength)

	if idx, exists := a.edgeIndex[edgeID]; exists {
		if strength > a.edges[idx].Strength {
			a.edges[idx].Strength = strength
		}
		return a.edges[idx], false
	}

	edge := Edge{
		ID:       edgeID,
		Source:   source,
		Target:   target,
		Strength: strength,
		Relation: relation,
	}
	a.edges = append(a.edges, edge)
	a.edgeIndex[edgeID] = len(a.edges) - 1
	return edge, true
}

// Nodes returns the nodes added so far, in insertion order
func (a *Assembler) Nodes() []Node {
	return a.nodes
}

// Edges returns the edges added so far, in insertion order
func (a *Assembler) Edges() []Edge {
	return a.edges
}

// Generate builds and returns the final graph
func (a *Assembler) Generate() *Graph {
	nodes := make([]Node, len(a.nodes))
	copy(nodes, a.nodes)

	edges := make([]Edge, len(a.edges))
	copy(edges, a.edges)

	return &Graph{
		Nodes:       nodes,
		Edges:       edges,
		GeneratedAt: time.Now(),
	}
}

// ClampConfidence bounds a confidence value to [0,100]
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampStrength bounds an edge strength to [0,1]
func ClampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

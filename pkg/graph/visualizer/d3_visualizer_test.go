package visualizer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *graph.Graph {
	g := graph.NewEmptyGraph()
	g.Nodes = []graph.Node{
		{ID: graph.TargetID, Type: graph.EntityTarget, Label: "Jane Doe", Confidence: 100},
		{ID: "p1", Type: graph.EntityPhone, Label: "(555) 234-5678", Confidence: 70,
			Attributes: map[string]interface{}{"verified": true, "confirmation": 0.7}},
	}
	g.Edges = []graph.Edge{{ID: "e1", Source: graph.TargetID, Target: "p1", Strength: 0.9, Relation: graph.RelationPhoneNumber}}
	return g
}

func TestRender(t *testing.T) {
	g := sample()
	sim := layout.NewSimulator(layout.WithSeed(1))
	frame := sim.Place(g, layout.StrategyRadial)

	var buf bytes.Buffer
	err := NewD3Visualizer("unused").WithTitle("Case 42").Render(&buf, g, frame, layout.StrategyRadial, sim.Canvas())
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<title>Case 42</title>")
	assert.Contains(t, html, "Nodes: 2, Edges: 1, Layout: radial")
	assert.Contains(t, html, `"label":"Jane Doe"`)
	assert.Contains(t, html, `"x":600`)
	assert.Contains(t, html, `"confirmation":0.7`)
	assert.NotContains(t, html, "No findings yet.")
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := NewD3Visualizer("unused").Render(&buf, graph.NewEmptyGraph(), nil, layout.StrategyForce, layout.DefaultCanvas())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No findings yet.")
}

func TestRenderEscapesLabels(t *testing.T) {
	g := sample()
	g.Nodes[1].Label = "</script><script>alert(1)</script>"

	var buf bytes.Buffer
	require.NoError(t, NewD3Visualizer("unused").Render(&buf, g, nil, layout.StrategyForce, layout.DefaultCanvas()))
	assert.Equal(t, 1, strings.Count(buf.String(), "<script>\n"), "label must not open a script element")
}

func TestVisualizeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "graph.html")
	require.NoError(t, NewD3Visualizer(path).Visualize(sample(), nil, layout.StrategyForce, layout.DefaultCanvas()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "d3.v7.min.js")
}

func TestConfirmation(t *testing.T) {
	assert.Equal(t, 0.7, Confirmation(graph.Node{Attributes: map[string]interface{}{"confirmation": 0.7}}))
	assert.Equal(t, 1.0, Confirmation(graph.Node{Attributes: map[string]interface{}{"confirmation": 3.0}}))
	assert.Equal(t, 0.55, Confirmation(graph.Node{Confidence: 55}))
	assert.Equal(t, 1.0, Confirmation(graph.Node{Confidence: 140}))
}

package visualizer

import (
	"bytes"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/layout"
	"github.com/pkg/errors"
)

// The HTML template for D3.js visualization
const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body {
            margin: 0;
            font-family: Arial, sans-serif;
        }
        #graph {
            width: 100%;
            height: 100vh;
            background-color: #f5f5f5;
        }
        .node {
            stroke: #fff;
            stroke-width: 1.5px;
            cursor: pointer;
        }
        .ring {
            fill: none;
            stroke: #2e7d32;
            stroke-width: 3px;
        }
        .link {
            stroke: #999;
            stroke-opacity: 0.6;
        }
        .node-label {
            font-size: 10px;
            pointer-events: none;
        }
        .controls {
            position: absolute;
            top: 10px;
            left: 10px;
            background-color: rgba(255,255,255,0.8);
            padding: 10px;
            border-radius: 5px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
    </style>
</head>
<body>
    <div id="graph"></div>
    <div class="controls">
        <h3>{{.Title}}</h3>
        {{if .Empty}}<p>No findings yet.</p>{{else}}<p>Nodes: {{.NodeCount}}, Edges: {{.EdgeCount}}, Layout: {{.Strategy}}</p>{{end}}
        <div>
            <label for="node-type-filter">Filter by node type:</label>
            <select id="node-type-filter">
                <option value="all">All Types</option>
            </select>
        </div>
    </div>

    <script>
        const graphData = {{.Data}};
        const byId = new Map(graphData.nodes.map(n => [n.id, n]));

        const svg = d3.select("#graph")
            .append("svg")
            .attr("viewBox", [0, 0, graphData.width, graphData.height])
            .attr("width", "100%")
            .attr("height", "100%")
            .call(d3.zoom().on("zoom", (event) => {
                g.attr("transform", event.transform);
            }));

        const g = svg.append("g");

        const nodeTypes = [...new Set(graphData.nodes.map(node => node.type))];
        const colorScale = d3.scaleOrdinal(d3.schemeCategory10).domain(nodeTypes);

        nodeTypes.forEach(type => {
            d3.select("#node-type-filter")
                .append("option")
                .attr("value", type)
                .text(type);
        });

        const link = g.append("g")
            .selectAll("line")
            .data(graphData.edges)
            .enter()
            .append("line")
            .attr("class", "link")
            .attr("stroke-width", d => Math.sqrt(d.strength) * 2)
            .attr("x1", d => byId.get(d.source).x)
            .attr("y1", d => byId.get(d.source).y)
            .attr("x2", d => byId.get(d.target).x)
            .attr("y2", d => byId.get(d.target).y);

        // confirmation ring: arc length follows the node's confirmation fraction
        const ring = g.append("g")
            .selectAll("circle")
            .data(graphData.nodes)
            .enter()
            .append("circle")
            .attr("class", "ring")
            .attr("r", d => d.radius + 4)
            .attr("cx", d => d.x)
            .attr("cy", d => d.y)
            .attr("stroke-dasharray", d => {
                const c = 2 * Math.PI * (d.radius + 4);
                return (c * d.confirmation) + " " + c;
            })
            .style("stroke", d => d.verified ? "#2e7d32" : "#f9a825");

        const node = g.append("g")
            .selectAll("circle")
            .data(graphData.nodes)
            .enter()
            .append("circle")
            .attr("class", "node")
            .attr("r", d => d.radius)
            .attr("cx", d => d.x)
            .attr("cy", d => d.y)
            .attr("fill", d => colorScale(d.type));

        const label = g.append("g")
            .selectAll("text")
            .data(graphData.nodes)
            .enter()
            .append("text")
            .attr("class", "node-label")
            .attr("x", d => d.x + d.radius + 6)
            .attr("y", d => d.y)
            .attr("dy", ".35em")
            .text(d => d.label);

        node.append("title")
            .text(d => d.label + " (" + d.type + ", " + d.confidence + "%)");

        link.append("title")
            .text(d => d.relation);

        d3.select("#node-type-filter").on("change", function() {
            const selectedType = this.value;

            if (selectedType === "all") {
                node.style("visibility", "visible");
                ring.style("visibility", "visible");
                link.style("visibility", "visible");
                label.style("visibility", "visible");
                return;
            }

            const visible = d => d.type === selectedType || d.type === "target";
            node.style("visibility", d => visible(d) ? "visible" : "hidden");
            ring.style("visibility", d => visible(d) ? "visible" : "hidden");
            label.style("visibility", d => visible(d) ? "visible" : "hidden");
            link.style("visibility", d => {
                return visible(byId.get(d.source)) && visible(byId.get(d.target)) ? "visible" : "hidden";
            });
        });
    </script>
</body>
</html>
`

// D3Visualizer renders an investigation graph at the positions of a layout
// frame as a standalone HTML page.
type D3Visualizer struct {
	outputPath string
	title      string
}

// NewD3Visualizer creates a new D3.js visualizer
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{
		outputPath: outputPath,
		title:      "Investigation Graph",
	}
}

// WithTitle sets the page title
func (v *D3Visualizer) WithTitle(title string) *D3Visualizer {
	v.title = title
	return v
}

type viewNode struct {
	ID           string           `json:"id"`
	Type         graph.EntityType `json:"type"`
	Label        string           `json:"label"`
	Confidence   int              `json:"confidence"`
	Confirmation float64          `json:"confirmation"`
	Verified     bool             `json:"verified"`
	X            float64          `json:"x"`
	Y            float64          `json:"y"`
	Radius       float64          `json:"radius"`
}

type viewData struct {
	Nodes  []viewNode   `json:"nodes"`
	Edges  []graph.Edge `json:"edges"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
}

type page struct {
	Title     string
	Empty     bool
	NodeCount int
	EdgeCount int
	Strategy  layout.Strategy
	Data      viewData
}

var pageTemplate = template.Must(template.New("d3").Parse(d3Template))

// Render writes the page for g laid out by frame. Nodes missing from the
// frame are drawn at the canvas centre.
func (v *D3Visualizer) Render(w io.Writer, g *graph.Graph, frame *layout.Frame, strategy layout.Strategy, canvas layout.Canvas) error {
	data := viewData{
		Nodes:  make([]viewNode, 0, len(g.Nodes)),
		Edges:  make([]graph.Edge, 0, len(g.Edges)),
		Width:  canvas.Width,
		Height: canvas.Height,
	}
	cx, cy := canvas.Center()
	physics := layout.DefaultPhysics()

	for _, n := range g.Nodes {
		vn := viewNode{
			ID:           n.ID,
			Type:         n.Type,
			Label:        n.Label,
			Confidence:   n.Confidence,
			Confirmation: Confirmation(n),
			X:            cx,
			Y:            cy,
			Radius:       physics.NodeRadius,
		}
		if n.Type == graph.EntityTarget {
			vn.Radius = physics.TargetRadius
		}
		vn.Verified, _ = n.Attributes["verified"].(bool)
		if b, ok := frame.Body(n.ID); ok {
			vn.X, vn.Y, vn.Radius = b.X, b.Y, b.Radius
		}
		data.Nodes = append(data.Nodes, vn)
	}
	data.Edges = append(data.Edges, g.Edges...)

	return errors.Wrap(pageTemplate.Execute(w, page{
		Title:     v.title,
		Empty:     g.IsEmpty(),
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
		Strategy:  strategy,
		Data:      data,
	}), "failed to render graph page")
}

// Visualize renders the page to the configured output path
func (v *D3Visualizer) Visualize(g *graph.Graph, frame *layout.Frame, strategy layout.Strategy, canvas layout.Canvas) error {
	dir := filepath.Dir(v.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	var buf bytes.Buffer
	if err := v.Render(&buf, g, frame, strategy, canvas); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(v.outputPath, buf.Bytes(), 0644), "failed to write %s", v.outputPath)
}

// Confirmation is the fraction of the confirmation ring to draw: the node's
// "confirmation" attribute when set, otherwise its confidence over 100.
func Confirmation(n graph.Node) float64 {
	if c, ok := n.Attributes["confirmation"].(float64); ok {
		return math.Max(0, math.Min(1, c))
	}
	return float64(graph.ClampConfidence(n.Confidence)) / 100
}

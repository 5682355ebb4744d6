// Package builder turns the finding history of an investigation into a
// star-shaped graph centred on the investigation target.
//
// Build is a pure function of its input: every call recomputes the whole
// graph from the complete finding list, and identical input yields identical
// node ids, labels and edges. Incremental rendering is the layout
// simulator's concern, which keeps motion state for ids that survive a rebuild.
package builder

import (
	"sort"
	"strconv"
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/crossref"
	"github.com/athapong/aio-osint/pkg/graph/metrics"
	"github.com/athapong/aio-osint/pkg/graph/processors"
	"github.com/athapong/aio-osint/pkg/graph/scoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultTargetLabel labels the target node when no subject name is known
const DefaultTargetLabel = "Target"

// kindByType selects the cross-reference family used to annotate a node type
var kindByType = map[graph.EntityType]crossref.Kind{
	graph.EntityPhone:    crossref.KindPhone,
	graph.EntityEmail:    crossref.KindEmail,
	graph.EntityAddress:  crossref.KindAddress,
	graph.EntityRelative: crossref.KindRelative,
}

// Builder builds investigation graphs
type Builder struct {
	normalizer *processors.Normalizer
	criteria   scoring.Criteria
	logger     *logrus.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithCriteria sets the investigator-supplied search criteria. The name
// labels the target node and is excluded from relative names; the full
// criteria score findings that arrive without a confidence score.
func WithCriteria(c scoring.Criteria) Option {
	return func(b *Builder) {
		b.criteria = c
	}
}

// WithLogger sets the builder's logger
func WithLogger(logger *logrus.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// New creates a builder
func New(opts ...Option) *Builder {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	b := &Builder{logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	b.normalizer = processors.NewNormalizer(b.logger)
	return b
}

// Build builds the graph for the given findings with a default builder
func Build(findings []graph.Finding) *graph.Graph {
	return New().Build(findings)
}

// Build returns the full graph for the finding history. An empty history
// yields a graph with no nodes; any other input yields exactly one target
// node, even when no finding is recognised.
func (b *Builder) Build(findings []graph.Finding) *graph.Graph {
	timer := prometheus.NewTimer(metrics.GraphBuildDuration.WithLabelValues("investigation"))
	defer timer.ObserveDuration()

	if len(findings) == 0 {
		b.logger.Debug("No findings, returning empty graph")
		return graph.NewEmptyGraph()
	}

	ordered := inCreationOrder(findings)
	asm := graph.NewAssembler(b.logger)
	asm.AddNode(b.targetNode())

	for i, f := range ordered {
		confidence, ok := f.Score()
		if !ok {
			confidence = scoring.ScoreFinding(b.criteria, f)
		}
		findingKey := f.ID
		if findingKey == "" {
			findingKey = "#" + strconv.Itoa(i)
		}
		agent := f.AgentType.Canonical()

		for j, x := range b.normalizer.Normalize(f) {
			id := graph.DeriveID(findingKey, string(agent), x.Platform, strconv.Itoa(j))
			if asm.HasNode(id) {
				// repeated finding ids; the position in the history disambiguates
				id = graph.DeriveID(findingKey, string(agent), x.Platform, strconv.Itoa(j), strconv.Itoa(i))
			}

			attrs := make(map[string]interface{}, len(x.Attributes)+3)
			for k, v := range x.Attributes {
				attrs[k] = v
			}
			attrs["agent_type"] = string(agent)
			attrs["confirmation"] = float64(graph.ClampConfidence(confidence)) / 100
			if f.ID != "" {
				attrs["finding_id"] = f.ID
			}
			if f.VerificationStatus != "" {
				attrs["verification_status"] = string(f.VerificationStatus)
			}

			asm.AddNode(graph.Node{
				ID:         id,
				Type:       x.Type,
				Label:      x.Label,
				Attributes: attrs,
				Confidence: confidence,
			})
			asm.AddEdge(graph.TargetID, id, x.Relation, x.Strength)
		}
	}

	b.annotateCrossReferences(asm, ordered)

	g := asm.Generate()
	b.logger.WithFields(logrus.Fields{
		"findings": len(findings),
		"nodes":    len(g.Nodes),
		"edges":    len(g.Edges),
	}).Debug("Built investigation graph")
	return g
}

func (b *Builder) targetNode() graph.Node {
	label := strings.TrimSpace(b.criteria.Name)
	attrs := map[string]interface{}{"confirmation": 1.0}
	if label == "" {
		label = DefaultTargetLabel
	} else {
		attrs["value"] = label
	}
	return graph.Node{
		ID:         graph.TargetID,
		Type:       graph.EntityTarget,
		Label:      label,
		Attributes: attrs,
		Confidence: 100,
	}
}

// annotateCrossReferences marks phone, email, address and relative nodes with
// the number of independent sources reporting the same normalized value.
func (b *Builder) annotateCrossReferences(asm *graph.Assembler, findings []graph.Finding) {
	resolver := crossref.NewResolver(crossref.WithSubject(b.criteria.Name), crossref.WithLogger(b.logger))
	index := crossref.Index(resolver.Resolve(crossref.Extract(findings)))

	for _, node := range asm.Nodes() {
		kind, ok := kindByType[node.Type]
		if !ok {
			continue
		}
		value, ok := node.Attributes["value"].(string)
		if !ok {
			continue
		}
		normalized, _, ok := crossref.Normalize(kind, value)
		if !ok {
			continue
		}
		rec, ok := index[crossref.RecordKey(kind, normalized)]
		if !ok {
			continue
		}
		asm.UpdateNode(node.ID, func(n *graph.Node) {
			n.Attributes["source_count"] = rec.SourceCount
			n.Attributes["verified"] = rec.Verified
			n.Attributes["sources"] = rec.Sources
		})
	}
}

// inCreationOrder returns a copy sorted by creation time; ties keep input order
func inCreationOrder(findings []graph.Finding) []graph.Finding {
	ordered := make([]graph.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

package builder

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/scoring"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func finding(id string, agent graph.AgentType, raw string, offset time.Duration) graph.Finding {
	return graph.Finding{
		ID:              id,
		AgentType:       agent,
		RawData:         json.RawMessage(raw),
		ConfidenceScore: graph.Scored(70),
		CreatedAt:       epoch.Add(offset),
	}
}

func newBuilder(opts ...Option) *Builder {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func scenario() []graph.Finding {
	return []graph.Finding{
		finding("f1", graph.AgentHolehe, `{"email":"jane@example.com","results":[
			{"platform":"twitter","exists":true},
			{"platform":"spotify","exists":true},
			{"platform":"tumblr","exists":false}]}`, 0),
		finding("f2", graph.AgentSherlock, `{"username":"jdoe","profiles":[{"platform":"GitHub","url":"https://github.com/jdoe"}]}`, time.Second),
		finding("f3", graph.AgentPhone, `{"phone":"(555) 234-5678"}`, 2*time.Second),
	}
}

func TestBuildScenario(t *testing.T) {
	g := newBuilder().Build(scenario())

	require.Len(t, g.Nodes, 5)
	require.Len(t, g.Edges, 4)
	assert.Equal(t, map[graph.EntityType]int{
		graph.EntityTarget:   1,
		graph.EntityEmail:    2,
		graph.EntityUsername: 1,
		graph.EntityPhone:    1,
	}, g.CountByType())

	for _, e := range g.Edges {
		assert.Equal(t, graph.TargetID, e.Source)
		_, ok := g.Node(e.Target)
		assert.True(t, ok, "edge %s points at a known node", e.ID)
	}

	target, ok := g.Node(graph.TargetID)
	require.True(t, ok)
	assert.Equal(t, DefaultTargetLabel, target.Label)
	assert.Equal(t, 100, target.Confidence)
}

func TestBuildHoleheEmitsOneEmailPerExistingAccount(t *testing.T) {
	results := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		results = append(results, fmt.Sprintf(`{"platform":"site%d","exists":true}`, i))
	}
	g := newBuilder().Build([]graph.Finding{
		finding("f1", graph.AgentHolehe, `{"email":"jane@example.com","results":[`+strings.Join(results, ",")+`]}`, 0),
	})

	assert.Equal(t, 4, g.CountByType()[graph.EntityEmail])
	require.Len(t, g.Edges, 4)
	for _, e := range g.Edges {
		assert.Equal(t, graph.RelationRegisteredOn, e.Relation)
		assert.Equal(t, 0.8, e.Strength)
	}
}

func TestBuildEmpty(t *testing.T) {
	g := newBuilder().Build(nil)
	assert.True(t, g.IsEmpty())
	assert.Empty(t, g.Edges)

	g = newBuilder().Build([]graph.Finding{finding("f1", graph.AgentType("Shodan"), `{}`, 0)})
	require.Len(t, g.Nodes, 1, "unrecognised findings still yield the target")
	assert.Equal(t, graph.EntityTarget, g.Nodes[0].Type)
	assert.Empty(t, g.Edges)
}

func TestBuildIsDeterministic(t *testing.T) {
	findings := scenario()
	a := newBuilder().Build(findings)

	// reversed input order is sorted back by creation time
	reversed := []graph.Finding{findings[2], findings[1], findings[0]}
	b := newBuilder().Build(reversed)

	assert.Equal(t, a.Nodes, b.Nodes)
	assert.Equal(t, a.Edges, b.Edges)
}

func TestBuildKeepsIDsAcrossRebuilds(t *testing.T) {
	findings := scenario()
	before := newBuilder().Build(findings[:2])
	after := newBuilder().Build(findings)

	for _, n := range before.Nodes {
		_, ok := after.Node(n.ID)
		assert.True(t, ok, "node %s survives the rebuild", n.Label)
	}
}

func TestBuildNodeAttributes(t *testing.T) {
	f := finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, 0)
	f.ConfidenceScore = nil
	f.VerificationStatus = graph.StatusVerified

	g := newBuilder(WithCriteria(scoring.Criteria{Name: "Jane Doe", Email: "jane@example.com"})).Build([]graph.Finding{f})
	require.Len(t, g.Nodes, 2)

	target := g.Nodes[0]
	assert.Equal(t, "Jane Doe", target.Label)
	assert.Equal(t, "Jane Doe", target.Attributes["value"])

	phone := g.Nodes[1]
	assert.Equal(t, 60, phone.Confidence, "missing scores are computed from the criteria")
	assert.Equal(t, 0.6, phone.Attributes["confirmation"])
	assert.Equal(t, "Phone", phone.Attributes["agent_type"])
	assert.Equal(t, "f1", phone.Attributes["finding_id"])
	assert.Equal(t, "verified", phone.Attributes["verification_status"])
}

func TestBuildAnnotatesCrossReferences(t *testing.T) {
	g := newBuilder().Build([]graph.Finding{
		finding("f1", graph.AgentPhone, `{"phone":"(555) 234-5678"}`, 0),
		finding("f2", graph.AgentPeopleSearch, `{"name":"Jane Doe","phones":["555.234.5678"],"relatives":["John Doe"]}`, time.Second),
	})

	var phone, relative graph.Node
	for _, n := range g.Nodes {
		switch n.Type {
		case graph.EntityPhone:
			phone = n
		case graph.EntityRelative:
			relative = n
		}
	}

	require.NotEmpty(t, phone.ID)
	assert.Equal(t, 2, phone.Attributes["source_count"])
	assert.Equal(t, true, phone.Attributes["verified"])
	assert.Equal(t, []string{"PeopleSearch", "Phone"}, phone.Attributes["sources"])

	require.NotEmpty(t, relative.ID)
	assert.Equal(t, 1, relative.Attributes["source_count"])
	assert.Equal(t, false, relative.Attributes["verified"])
}

func TestBuildDisambiguatesRepeatedFindingIDs(t *testing.T) {
	g := newBuilder().Build([]graph.Finding{
		finding("dup", graph.AgentPhone, `{"phone":"5552345678"}`, 0),
		finding("dup", graph.AgentPhone, `{"phone":"5558765432"}`, time.Second),
	})
	assert.Equal(t, 2, g.CountByType()[graph.EntityPhone])
	assert.Len(t, g.Edges, 2)
}

func TestBuildKeepsExplicitZeroScore(t *testing.T) {
	zero := finding("f1", graph.AgentPhone, `{"phone":"5552345678"}`, 0)
	zero.ConfidenceScore = graph.Scored(0)
	unscored := finding("f2", graph.AgentAddress, `{"address":"12 Oak St"}`, time.Second)
	unscored.ConfidenceScore = nil

	g := newBuilder(WithCriteria(scoring.Criteria{Name: "Jane Doe"})).Build([]graph.Finding{zero, unscored})
	require.Len(t, g.Nodes, 3)

	assert.Equal(t, 0, g.Nodes[1].Confidence, "an upstream score of 0 is kept")
	assert.Equal(t, 0.0, g.Nodes[1].Attributes["confirmation"])
	assert.Equal(t, scoring.BaseScore, g.Nodes[2].Confidence, "a missing score is computed")
}

func TestFindingScoreDecoding(t *testing.T) {
	var fs []graph.Finding
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","confidence_score":0},{"id":"b"}]`), &fs))

	score, ok := fs[0].Score()
	assert.True(t, ok)
	assert.Equal(t, 0, score)

	_, ok = fs[1].Score()
	assert.False(t, ok)
}

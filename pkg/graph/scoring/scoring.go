// Package scoring computes the 0-100 confidence value attached to findings
// and, downstream, to the entities derived from them.
package scoring

import (
	"math"
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tidwall/gjson"
)

const (
	BaseScore       = 50
	KeywordBoost    = 5
	MaxKeywordBoost = 15
	MaxResultBoost  = 0.3
)

// Criteria are the data points an investigator supplied when starting the search
type Criteria struct {
	Name     string   `json:"name,omitempty" yaml:"name"`
	Email    string   `json:"email,omitempty" yaml:"email"`
	Phone    string   `json:"phone,omitempty" yaml:"phone"`
	Username string   `json:"username,omitempty" yaml:"username"`
	Address  string   `json:"address,omitempty" yaml:"address"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`
}

// DataPoints counts the supplied fields. Free-text keywords count as one point.
func (c Criteria) DataPoints() int {
	points := 0
	for _, field := range []string{c.Name, c.Email, c.Phone, c.Username, c.Address} {
		if strings.TrimSpace(field) != "" {
			points++
		}
	}
	if len(c.keywords()) > 0 {
		points++
	}
	return points
}

func (c Criteria) keywords() []string {
	out := make([]string, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// richnessBoost rewards searches seeded with more data points
func richnessBoost(points int) int {
	switch {
	case points >= 5:
		return 35
	case points >= 4:
		return 25
	case points >= 3:
		return 15
	case points >= 2:
		return 10
	default:
		return 0
	}
}

// Score combines input richness, the upstream name+location co-occurrence
// boost (a 0.0-0.3 fraction) and keyword matches in the serialized payload.
// The result is always within [0,100].
func Score(c Criteria, confidenceBoost float64, payload []byte) int {
	score := float64(BaseScore + richnessBoost(c.DataPoints()))

	if !math.IsNaN(confidenceBoost) {
		score += math.Round(math.Max(0, math.Min(confidenceBoost, MaxResultBoost)) * 100)
	}

	score += float64(keywordBoost(c.keywords(), payload))

	return graph.ClampConfidence(int(score))
}

// keywordBoost counts keywords found verbatim, case included, in the payload
func keywordBoost(keywords []string, payload []byte) int {
	if len(keywords) == 0 || len(payload) == 0 {
		return 0
	}

	haystack := string(payload)
	matched := mapset.NewThreadUnsafeSet[string]()
	for _, k := range keywords {
		if strings.Contains(haystack, k) {
			matched.Add(k)
		}
	}

	boost := matched.Cardinality() * KeywordBoost
	if boost > MaxKeywordBoost {
		boost = MaxKeywordBoost
	}
	return boost
}

// ScoreFinding scores a finding, reading the per-result boost from the
// payload's "confidenceBoost" (or "confidence_boost") field.
func ScoreFinding(c Criteria, f graph.Finding) int {
	boost := 0.0
	if gjson.ValidBytes(f.RawData) {
		res := gjson.GetBytes(f.RawData, "confidenceBoost")
		if !res.Exists() {
			res = gjson.GetBytes(f.RawData, "confidence_boost")
		}
		boost = res.Float()
	}
	return Score(c, boost, f.RawData)
}

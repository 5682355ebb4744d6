// Package query filters built investigation graphs for the tool surface.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/pkg/errors"
)

// Operator compares a node field with a filter value
type Operator string

const (
	Eq       Operator = "eq"
	Neq      Operator = "neq"
	Gte      Operator = "gte"
	Lte      Operator = "lte"
	Contains Operator = "contains"
)

// Fields a filter can address
const (
	FieldType       = "type"
	FieldConfidence = "confidence"
	FieldVerified   = "verified"
	FieldLabel      = "label"
	FieldAgent      = "agent_type"
)

// operatorSymbols are tried longest first by ParseFilter
var operatorSymbols = []struct {
	symbol string
	op     Operator
}{
	{">=", Gte},
	{"<=", Lte},
	{"!=", Neq},
	{"~", Contains},
	{"=", Eq},
}

// Query selects nodes from a graph. All filters must hold. The target node
// is always kept so the result stays anchored on the investigation subject.
type Query struct {
	Filters []Filter `json:"filters"`
	Limit   int      `json:"limit"`
}

// Filter is one predicate on a node field
type Filter struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

func NewQuery() *Query {
	return &Query{
		Filters: make([]Filter, 0),
	}
}

func (q *Query) AddFilter(filter Filter) *Query {
	q.Filters = append(q.Filters, filter)
	return q
}

func (q *Query) SetLimit(limit int) *Query {
	q.Limit = limit
	return q
}

func (q *Query) String() string {
	bytes, _ := json.MarshalIndent(q, "", "  ")
	return fmt.Sprintf("%s", bytes)
}

// ParseFilter parses expressions such as "type=email", "confidence>=60",
// "verified=true" or "label~doe".
func ParseFilter(expr string) (Filter, error) {
	for _, candidate := range operatorSymbols {
		idx := strings.Index(expr, candidate.symbol)
		if idx <= 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(expr[:idx]))
		value := strings.TrimSpace(expr[idx+len(candidate.symbol):])
		f := Filter{Field: field, Operator: candidate.op, Value: value}
		return f, f.Validate()
	}
	return Filter{}, errors.Errorf("invalid filter expression %q", expr)
}

// Validate checks that the field and operator make sense together
func (f Filter) Validate() error {
	switch f.Field {
	case FieldConfidence:
		if f.Operator == Contains {
			return errors.Errorf("operator %s not supported on %s", f.Operator, f.Field)
		}
		if _, err := toFloat(f.Value); err != nil {
			return errors.Wrapf(err, "filter %s", f.Field)
		}
	case FieldVerified:
		if f.Operator != Eq && f.Operator != Neq {
			return errors.Errorf("operator %s not supported on %s", f.Operator, f.Field)
		}
		if _, err := toBool(f.Value); err != nil {
			return errors.Wrapf(err, "filter %s", f.Field)
		}
	case FieldType, FieldLabel, FieldAgent:
		if f.Operator == Gte || f.Operator == Lte {
			return errors.Errorf("operator %s not supported on %s", f.Operator, f.Field)
		}
	default:
		return errors.Errorf("unknown filter field %q", f.Field)
	}

	switch f.Operator {
	case Eq, Neq, Gte, Lte, Contains:
		return nil
	default:
		return errors.Errorf("unknown operator %q", f.Operator)
	}
}

// Match reports whether the node satisfies the filter
func (f Filter) Match(n graph.Node) bool {
	switch f.Field {
	case FieldConfidence:
		want, err := toFloat(f.Value)
		if err != nil {
			return false
		}
		return compareFloat(float64(n.Confidence), f.Operator, want)
	case FieldVerified:
		want, err := toBool(f.Value)
		if err != nil {
			return false
		}
		got, _ := n.Attributes["verified"].(bool)
		if f.Operator == Neq {
			return got != want
		}
		return got == want
	case FieldType:
		return compareString(string(n.Type), f.Operator, fmt.Sprint(f.Value))
	case FieldLabel:
		return compareString(n.Label, f.Operator, fmt.Sprint(f.Value))
	case FieldAgent:
		agent, _ := n.Attributes["agent_type"].(string)
		return compareString(agent, f.Operator, fmt.Sprint(f.Value))
	default:
		return false
	}
}

// Validate checks every filter
func (q *Query) Validate() error {
	for _, f := range q.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return errors.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Apply returns the subgraph of matching nodes, in graph order, and the
// edges whose endpoints both survive. Limit counts non-target nodes.
func (q *Query) Apply(g *graph.Graph) (*graph.Graph, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	out := graph.NewEmptyGraph()
	out.GeneratedAt = g.GeneratedAt
	kept := make(map[string]bool)
	matched := 0

	for _, n := range g.Nodes {
		if n.Type != graph.EntityTarget {
			if q.Limit > 0 && matched == q.Limit {
				continue
			}
			if !q.matches(n) {
				continue
			}
			matched++
		}
		kept[n.ID] = true
		out.Nodes = append(out.Nodes, n)
	}

	for _, e := range g.Edges {
		if kept[e.Source] && kept[e.Target] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out, nil
}

func (q *Query) matches(n graph.Node) bool {
	for _, f := range q.Filters {
		if !f.Match(n) {
			return false
		}
	}
	return true
}

func compareFloat(got float64, op Operator, want float64) bool {
	switch op {
	case Eq:
		return got == want
	case Neq:
		return got != want
	case Gte:
		return got >= want
	case Lte:
		return got <= want
	default:
		return false
	}
}

func compareString(got string, op Operator, want string) bool {
	switch op {
	case Eq:
		return strings.EqualFold(got, want)
	case Neq:
		return !strings.EqualFold(got, want)
	case Contains:
		return strings.Contains(strings.ToLower(got), strings.ToLower(want))
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, errors.Wrapf(err, "not a number: %q", x)
	default:
		return 0, errors.Errorf("not a number: %v", v)
	}
}

func toBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, errors.Wrapf(err, "not a boolean: %q", x)
	default:
		return false, errors.Errorf("not a boolean: %v", v)
	}
}

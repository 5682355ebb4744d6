package graph

import (
	"encoding/json"
	"strings"
	"time"
)

// AgentType identifies the lookup agent that produced a finding
type AgentType string

const (
	AgentHolehe       AgentType = "Holehe"
	AgentSherlock     AgentType = "Sherlock"
	AgentSocial       AgentType = "Social"
	AgentWeb          AgentType = "Web"
	AgentPhone        AgentType = "Phone"
	AgentAddress      AgentType = "Address"
	AgentPeopleSearch AgentType = "PeopleSearch"
	AgentUnknown      AgentType = "Unknown"
)

var agentAliases = map[string]AgentType{
	"holehe":         AgentHolehe,
	"sherlock":       AgentSherlock,
	"maigret":        AgentSherlock,
	"social":         AgentSocial,
	"socialprofile":  AgentSocial,
	"social_media":   AgentSocial,
	"web":            AgentWeb,
	"websearch":      AgentWeb,
	"web_search":     AgentWeb,
	"phone":          AgentPhone,
	"phonelookup":    AgentPhone,
	"phone_lookup":   AgentPhone,
	"address":        AgentAddress,
	"addresslookup":  AgentAddress,
	"address_lookup": AgentAddress,
	"peoplesearch":   AgentPeopleSearch,
	"people_search":  AgentPeopleSearch,
	"property":       AgentPeopleSearch,
}

// ParseAgentType maps a free-form agent tag onto the closed set of agent types.
// Tags outside the table resolve to AgentUnknown.
func ParseAgentType(tag string) AgentType {
	if t, ok := agentAliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return t
	}
	return AgentUnknown
}

// Canonical returns the table spelling of a recognised tag and the tag
// itself otherwise, so distinct unknown agents stay distinct sources.
func (t AgentType) Canonical() AgentType {
	if parsed := ParseAgentType(string(t)); parsed != AgentUnknown {
		return parsed
	}
	return t
}

// VerificationStatus is the analyst-facing review state of a finding
type VerificationStatus string

const (
	StatusNeedsReview VerificationStatus = "needs_review"
	StatusVerified    VerificationStatus = "verified"
	// StatusInaccurate is only ever set by an analyst override.
	StatusInaccurate VerificationStatus = "inaccurate"
)

// EntityType is the type of a graph vertex
type EntityType string

const (
	EntityTarget   EntityType = "target"
	EntityEmail    EntityType = "email"
	EntityUsername EntityType = "username"
	EntityPhone    EntityType = "phone"
	EntityAddress  EntityType = "address"
	EntitySocial   EntityType = "social"
	EntityWeb      EntityType = "web"
	EntityRelative EntityType = "relative"
)

// Relation labels used on edges
const (
	RelationRegisteredOn = "registered on"
	RelationUsernameOn   = "username on"
	RelationProfileOn    = "profile on"
	RelationMentionedIn  = "mentioned in"
	RelationPhoneNumber  = "phone number"
	RelationLocatedAt    = "located at"
	RelationRelatedTo    = "related to"

	RelationLivesAt  = "lives_at"
	RelationHasPhone = "has_phone"
	RelationHasEmail = "has_email"

	RelationRelative               = "relative"
	RelationFamilySameSurname      = "family_same_surname"
	RelationFamilyDifferentSurname = "family_different_surname"
)

// TargetID is the fixed identity of the investigation subject node
const TargetID = "target"

// Finding is a normalized result record produced by one lookup agent
type Finding struct {
	ID                 string             `json:"id"`
	InvestigationID    string             `json:"investigation_id"`
	AgentType          AgentType          `json:"agent_type"`
	RawData            json.RawMessage    `json:"raw_data"`
	ConfidenceScore    *int               `json:"confidence_score,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Score returns the upstream confidence score. A finding without one reports
// false and is scored locally; an explicit 0 is a real score.
func (f Finding) Score() (int, bool) {
	if f.ConfidenceScore == nil {
		return 0, false
	}
	return *f.ConfidenceScore, true
}

// Scored returns a confidence score for Finding.ConfidenceScore
func Scored(v int) *int {
	return &v
}

// Extraction is one child entity produced by normalizing a finding, together
// with the relation that links it to the target.
type Extraction struct {
	Type       EntityType
	Label      string
	Platform   string
	Value      string
	Attributes map[string]interface{}
	Relation   string
	Strength   float64
}

// Node is a typed vertex of an investigation graph
type Node struct {
	ID         string                 `json:"id"`
	Type       EntityType             `json:"type"`
	Label      string                 `json:"label"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Confidence int                    `json:"confidence"`
}

// Edge is a weighted relationship between two nodes
type Edge struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
	Relation string  `json:"relation"`
}

// Statistics summarises a relative graph
type Statistics struct {
	TotalNodes        int     `json:"total_nodes"`
	PersonNodes       int     `json:"person_nodes"`
	AddressNodes      int     `json:"address_nodes"`
	PhoneNodes        int     `json:"phone_nodes"`
	EmailNodes        int     `json:"email_nodes"`
	RelationshipEdges int     `json:"relationship_edges"`
	AverageConfidence float64 `json:"average_confidence"`
	SharedAddresses   int     `json:"shared_addresses"`
	Density           float64 `json:"density"`
}

// Graph is the {nodes, edges} handoff to rendering consumers
type Graph struct {
	Nodes       []Node      `json:"nodes"`
	Edges       []Edge      `json:"edges"`
	Statistics  *Statistics `json:"statistics,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// NewEmptyGraph returns a graph with no nodes and no edges.
func NewEmptyGraph() *Graph {
	return &Graph{
		Nodes:       make([]Node, 0),
		Edges:       make([]Edge, 0),
		GeneratedAt: time.Now(),
	}
}

// IsEmpty reports whether the graph should be rendered as the empty state.
func (g *Graph) IsEmpty() bool {
	return g == nil || len(g.Nodes) == 0
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// CountByType returns the number of nodes per entity type.
func (g *Graph) CountByType() map[EntityType]int {
	counts := make(map[EntityType]int)
	for _, n := range g.Nodes {
		counts[n.Type]++
	}
	return counts
}

// Person is a root or relative record used by the multi-hop relative graph
type Person struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Addresses          []string        `json:"addresses,omitempty"`
	Phones             []string        `json:"phones,omitempty"`
	Emails             []string        `json:"emails,omitempty"`
	Relatives          []string        `json:"relatives,omitempty"`
	EnrichedRelatives  []RelativeMatch `json:"enriched_relatives,omitempty"`
	PotentialRelatives []RelativeMatch `json:"potential_relatives,omitempty"`
	Residents          []Resident      `json:"residents,omitempty"`
}

// RelativeMatch is a relative name with an optional enriched candidate record
type RelativeMatch struct {
	Name         string   `json:"name"`
	Relationship string   `json:"relationship,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	Match        *Person  `json:"match,omitempty"`
}

// Resident is a co-resident of one of the root's addresses reported by an auxiliary source
type Resident struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Source  string `json:"source,omitempty"`
}

// PivotEvent seeds a new investigation from a searchable node
type PivotEvent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

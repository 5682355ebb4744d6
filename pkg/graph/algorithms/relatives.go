package algorithms

import (
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/crossref"
	"github.com/athapong/aio-osint/pkg/graph/metrics"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	baseRelationshipConfidence = 0.5
	enrichedMatchBoost         = 0.2
	sharedAddressBoost         = 0.15
	maxRelationshipConfidence  = 0.95

	// satelliteStrength is the strength of lives_at/has_phone/has_email edges
	satelliteStrength = 0.9
)

// adminRelations are satellite edges excluded from relationship statistics
var adminRelations = map[string]bool{
	graph.RelationLivesAt:  true,
	graph.RelationHasPhone: true,
	graph.RelationHasEmail: true,
}

// RelativeExpander builds the multi-hop relative graph around a root person
type RelativeExpander struct {
	logger *logrus.Logger
}

// NewRelativeExpander creates a relative expander
func NewRelativeExpander(logger *logrus.Logger) *RelativeExpander {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &RelativeExpander{logger: logger}
}

// ExpandRelatives expands root with a default expander
func ExpandRelatives(root graph.Person, maxDepth int) (*graph.Graph, error) {
	return NewRelativeExpander(nil).Expand(root, maxDepth)
}

type queued struct {
	person *graph.Person
	id     string
	depth  int
}

// Expand walks relatives breadth-first from root up to maxDepth hops. Person
// ids already visited are linked but never expanded again, so cycles in the
// relative data terminate. The returned graph carries Statistics.
func (e *RelativeExpander) Expand(root graph.Person, maxDepth int) (*graph.Graph, error) {
	if maxDepth < 1 {
		return nil, errors.Wrapf(graph.ErrInvalidDepth, "got %d", maxDepth)
	}

	timer := prometheus.NewTimer(metrics.GraphBuildDuration.WithLabelValues("relatives"))
	defer timer.ObserveDuration()

	asm := graph.NewAssembler(e.logger)
	rootID := PersonID(&root)
	asm.AddNode(graph.Node{
		ID:         rootID,
		Type:       graph.EntityTarget,
		Label:      displayName(root.Name),
		Attributes: map[string]interface{}{"value": displayName(root.Name), "depth": 0},
		Confidence: 100,
	})
	addressIDs := e.addSatellites(asm, rootID, &root)
	e.addResidents(asm, &root, addressIDs)

	visited := mapset.NewThreadUnsafeSet[string](rootID)
	known := make(map[string]string)
	if _, key, ok := crossref.NormalizeName(root.Name); ok {
		known[key] = rootID
	}
	linked := mapset.NewThreadUnsafeSet[string]()
	queue := []queued{{person: &root, id: rootID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// children would land at depth+1
		if current.depth+1 > maxDepth {
			continue
		}

		for _, rel := range relativesOf(current.person) {
			childID := relativeID(rel, known)
			if childID == current.id {
				continue
			}

			if !visited.Contains(childID) {
				visited.Add(childID)
				attrs := map[string]interface{}{
					"value": rel.Name,
					"depth": current.depth + 1,
				}
				if len(rel.Sources) > 0 {
					attrs["sources"] = rel.Sources
				}
				asm.AddNode(graph.Node{
					ID:         childID,
					Type:       graph.EntityRelative,
					Label:      rel.Name,
					Attributes: attrs,
					Confidence: int(RelationshipConfidence(current.person, rel) * 100),
				})
				if rel.Match != nil {
					e.linkSharedAddresses(asm, childID, rel.Match, addressIDs)
					queue = append(queue, queued{person: rel.Match, id: childID, depth: current.depth + 1})
				}
			}

			pair := pairKey(current.id, childID)
			if linked.Contains(pair) {
				continue
			}
			linked.Add(pair)
			asm.AddEdge(current.id, childID, InferRelationship(current.person.Name, rel), RelationshipConfidence(current.person, rel))
		}
	}

	g := asm.Generate()
	g.Statistics = ComputeStatistics(g)

	e.logger.WithFields(logrus.Fields{
		"root":      rootID,
		"max_depth": maxDepth,
		"nodes":     len(g.Nodes),
		"edges":     len(g.Edges),
	}).Info("Expanded relative graph")
	return g, nil
}

// addSatellites emits the root's addresses, phones and emails and returns the
// address node ids keyed by normalized address.
func (e *RelativeExpander) addSatellites(asm *graph.Assembler, rootID string, root *graph.Person) map[string]string {
	addressIDs := make(map[string]string)

	for _, raw := range root.Addresses {
		normalized, ok := crossref.NormalizeAddress(raw)
		if !ok {
			continue
		}
		id := graph.DeriveID("address", normalized)
		asm.AddNode(graph.Node{
			ID:         id,
			Type:       graph.EntityAddress,
			Label:      strings.Join(strings.Fields(raw), " "),
			Attributes: map[string]interface{}{"value": normalized},
			Confidence: 100,
		})
		asm.AddEdge(rootID, id, graph.RelationLivesAt, satelliteStrength)
		addressIDs[normalized] = id
	}

	for _, raw := range root.Phones {
		digits, ok := crossref.NormalizePhone(raw)
		if !ok {
			continue
		}
		id := graph.DeriveID("phone", digits)
		asm.AddNode(graph.Node{
			ID:         id,
			Type:       graph.EntityPhone,
			Label:      crossref.FormatPhone(digits),
			Attributes: map[string]interface{}{"value": digits},
			Confidence: 100,
		})
		asm.AddEdge(rootID, id, graph.RelationHasPhone, satelliteStrength)
	}

	for _, raw := range root.Emails {
		email, ok := crossref.NormalizeEmail(raw)
		if !ok {
			continue
		}
		id := graph.DeriveID("email", email)
		asm.AddNode(graph.Node{
			ID:         id,
			Type:       graph.EntityEmail,
			Label:      email,
			Attributes: map[string]interface{}{"value": email},
			Confidence: 100,
		})
		asm.AddEdge(rootID, id, graph.RelationHasEmail, satelliteStrength)
	}

	return addressIDs
}

// addResidents links co-residents reported by auxiliary sources to the
// root address they share.
func (e *RelativeExpander) addResidents(asm *graph.Assembler, root *graph.Person, addressIDs map[string]string) {
	_, rootKey, _ := crossref.NormalizeName(root.Name)

	for _, r := range root.Residents {
		normalized, ok := crossref.NormalizeAddress(r.Address)
		if !ok {
			continue
		}
		addressID, ok := addressIDs[normalized]
		if !ok {
			e.logger.WithField("address", normalized).Debug("Resident address not recorded for root")
			continue
		}
		name, key, ok := crossref.NormalizeName(r.Name)
		if !ok || key == rootKey {
			continue
		}

		id := graph.DeriveID("person", key)
		attrs := map[string]interface{}{"value": name, "role": "resident"}
		if r.Source != "" {
			attrs["source"] = r.Source
		}
		asm.AddNode(graph.Node{
			ID:         id,
			Type:       graph.EntityRelative,
			Label:      name,
			Attributes: attrs,
			Confidence: int(baseRelationshipConfidence * 100),
		})
		asm.AddEdge(id, addressID, graph.RelationLivesAt, satelliteStrength)
	}
}

// linkSharedAddresses links an enriched relative to every root address its
// record also lists.
func (e *RelativeExpander) linkSharedAddresses(asm *graph.Assembler, personID string, match *graph.Person, addressIDs map[string]string) {
	for _, raw := range match.Addresses {
		normalized, ok := crossref.NormalizeAddress(raw)
		if !ok {
			continue
		}
		if addressID, ok := addressIDs[normalized]; ok {
			asm.AddEdge(personID, addressID, graph.RelationLivesAt, satelliteStrength)
		}
	}
}

// relativesOf merges plain, enriched and potential relatives of a person,
// dropping blanks, the person's own name and case-insensitive repeats.
// Enriched entries win over plain names for the same person.
func relativesOf(p *graph.Person) []graph.RelativeMatch {
	_, selfKey, _ := crossref.NormalizeName(p.Name)
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]graph.RelativeMatch, 0)

	add := func(rel graph.RelativeMatch) {
		name, key, ok := crossref.NormalizeName(rel.Name)
		if !ok && rel.Match != nil {
			name, key, ok = crossref.NormalizeName(rel.Match.Name)
		}
		if !ok || key == selfKey || seen.Contains(key) {
			return
		}
		seen.Add(key)
		rel.Name = name
		out = append(out, rel)
	}

	for _, rel := range p.EnrichedRelatives {
		add(rel)
	}
	for _, rel := range p.PotentialRelatives {
		add(rel)
	}
	for _, name := range p.Relatives {
		add(graph.RelativeMatch{Name: name})
	}
	return out
}

// PersonID returns the record id, or an id derived from the normalized name
func PersonID(p *graph.Person) string {
	if p.ID != "" {
		return p.ID
	}
	_, key, _ := crossref.NormalizeName(p.Name)
	return graph.DeriveID("person", key)
}

// relativeID resolves a relative to a person id. Names already seen in this
// expansion map back to their first id so back-references close the cycle
// instead of spawning duplicates.
func relativeID(rel graph.RelativeMatch, known map[string]string) string {
	_, key, _ := crossref.NormalizeName(rel.Name)
	if id, ok := known[key]; ok {
		return id
	}
	id := graph.DeriveID("person", key)
	if rel.Match != nil && rel.Match.ID != "" {
		id = rel.Match.ID
	}
	known[key] = id
	return id
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func displayName(name string) string {
	if n, _, ok := crossref.NormalizeName(name); ok {
		return n
	}
	return "Unknown"
}

// InferRelationship labels the edge from a person to one of their relatives.
// An explicit hint wins; otherwise surnames decide, and single-token names
// fall back to the generic "relative".
func InferRelationship(personName string, rel graph.RelativeMatch) string {
	if hint := strings.TrimSpace(rel.Relationship); hint != "" {
		return hint
	}

	a, b := lastName(personName), lastName(rel.Name)
	if a == "" || b == "" {
		return graph.RelationRelative
	}
	if a == b {
		return graph.RelationFamilySameSurname
	}
	return graph.RelationFamilyDifferentSurname
}

func lastName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) < 2 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ".,")
}

// RelationshipConfidence scores an inferred relationship: 0.5, +0.2 when an
// enriched match record exists, +0.15 when the two share a recorded address,
// capped at 0.95.
func RelationshipConfidence(person *graph.Person, rel graph.RelativeMatch) float64 {
	confidence := baseRelationshipConfidence
	if rel.Match != nil {
		confidence += enrichedMatchBoost
		if sharesAddress(person.Addresses, rel.Match.Addresses) {
			confidence += sharedAddressBoost
		}
	}
	if confidence > maxRelationshipConfidence {
		confidence = maxRelationshipConfidence
	}
	return confidence
}

func sharesAddress(a, b []string) bool {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, raw := range a {
		if normalized, ok := crossref.NormalizeAddress(raw); ok {
			set.Add(normalized)
		}
	}
	for _, raw := range b {
		if normalized, ok := crossref.NormalizeAddress(raw); ok && set.Contains(normalized) {
			return true
		}
	}
	return false
}

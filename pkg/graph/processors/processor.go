package processors

import (
	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/metrics"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Default relation strengths per agent family
const (
	AccountStrength  = 0.8
	WebStrength      = 0.6
	ContactStrength  = 0.9
	RelativeStrength = 0.7

	// MaxWebResults caps the web nodes a single finding can contribute.
	MaxWebResults = 5
)

// Extractor turns one agent payload into child entity descriptors. Extractors
// must not panic on unexpected shapes; they return nothing instead.
type Extractor func(payload gjson.Result) []graph.Extraction

// Normalizer maps a finding onto canonical child entities through a fixed
// dispatch table keyed by agent type.
type Normalizer struct {
	extractors map[graph.AgentType]Extractor
	logger     *logrus.Logger
}

// NewNormalizer creates a normalizer with the built-in agent table
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	n := &Normalizer{logger: logger}
	n.extractors = map[graph.AgentType]Extractor{
		graph.AgentHolehe:       extractHolehe,
		graph.AgentSherlock:     extractSherlock,
		graph.AgentSocial:       extractSocial,
		graph.AgentWeb:          extractWeb,
		graph.AgentPhone:        extractPhone,
		graph.AgentAddress:      extractAddress,
		graph.AgentPeopleSearch: n.extractPeople,
	}
	return n
}

// SupportedTypes returns the agent types with an extraction arm
func (n *Normalizer) SupportedTypes() []graph.AgentType {
	return []graph.AgentType{
		graph.AgentHolehe,
		graph.AgentSherlock,
		graph.AgentSocial,
		graph.AgentWeb,
		graph.AgentPhone,
		graph.AgentAddress,
		graph.AgentPeopleSearch,
	}
}

// Normalize returns the ordered child extractions for a finding. Unknown agent
// types and malformed payloads yield no extractions; neither is an error.
func (n *Normalizer) Normalize(f graph.Finding) []graph.Extraction {
	agent := graph.ParseAgentType(string(f.AgentType))
	extract, ok := n.extractors[agent]
	if !ok {
		n.logger.WithFields(logrus.Fields{
			"agent_type": f.AgentType,
			"finding_id": f.ID,
		}).Debug("No extractor for agent type")
		metrics.FindingsNormalized.WithLabelValues(string(graph.AgentUnknown), "unknown").Inc()
		return nil
	}

	if !gjson.ValidBytes(f.RawData) {
		n.logger.WithFields(logrus.Fields{
			"agent_type": agent,
			"finding_id": f.ID,
		}).Debug("Malformed finding payload")
		metrics.FindingsNormalized.WithLabelValues(string(agent), "malformed").Inc()
		return nil
	}

	extractions := extract(gjson.ParseBytes(f.RawData))
	outcome := "extracted"
	if len(extractions) == 0 {
		outcome = "empty"
	}
	metrics.FindingsNormalized.WithLabelValues(string(agent), outcome).Inc()

	return extractions
}

// results returns the payload's result list: the "results" array, the named
// fallback array, or the payload itself when it is a bare array.
func results(payload gjson.Result, fallback string) []gjson.Result {
	if res := payload.Get("results"); res.IsArray() {
		return res.Array()
	}
	if fallback != "" {
		if res := payload.Get(fallback); res.IsArray() {
			return res.Array()
		}
	}
	if payload.IsArray() {
		return payload.Array()
	}
	return nil
}

// firstString returns the first non-empty string among the given keys
func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := item.Get(key); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

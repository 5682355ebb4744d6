package crossref

import (
	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/tidwall/gjson"
)

// fieldKinds lists the payload keys that carry cross-referenceable values.
// Each key may hold a string, an array of strings, or an array of objects
// with a "value", "number", "address" or "name" field.
var fieldKinds = []struct {
	path string
	kind Kind
}{
	{"phone", KindPhone},
	{"phones", KindPhone},
	{"phone_number", KindPhone},
	{"phone_numbers", KindPhone},
	{"email", KindEmail},
	{"emails", KindEmail},
	{"address", KindAddress},
	{"addresses", KindAddress},
	{"formatted_address", KindAddress},
	{"relatives", KindRelative},
	{"associates", KindRelative},
}

var objectValueKeys = []string{"value", "number", "address", "email", "name", "full_name"}

// SourceOf returns the source identifier of a finding: the payload's "source"
// field when present, otherwise the agent type.
func SourceOf(f graph.Finding) string {
	if gjson.ValidBytes(f.RawData) {
		if src := gjson.GetBytes(f.RawData, "source"); src.Type == gjson.String && src.String() != "" {
			return src.String()
		}
	}
	return string(f.AgentType.Canonical())
}

// Extract collects raw phone, email, address and relative values from every
// finding payload, tagged with the finding's source. Malformed payloads
// contribute nothing.
func Extract(findings []graph.Finding) []Observation {
	observations := make([]Observation, 0)

	for _, f := range findings {
		if !gjson.ValidBytes(f.RawData) {
			continue
		}
		source := SourceOf(f)
		root := gjson.ParseBytes(f.RawData)

		for _, field := range fieldKinds {
			for _, value := range stringValues(root.Get(field.path)) {
				observations = append(observations, Observation{
					Kind:   field.kind,
					Value:  value,
					Source: source,
				})
			}
		}
	}

	return observations
}

func stringValues(res gjson.Result) []string {
	if !res.Exists() {
		return nil
	}

	var out []string
	collect := func(item gjson.Result) {
		switch {
		case item.Type == gjson.String:
			out = append(out, item.String())
		case item.IsObject():
			for _, key := range objectValueKeys {
				if v := item.Get(key); v.Type == gjson.String {
					out = append(out, v.String())
					return
				}
			}
		}
	}

	if res.IsArray() {
		res.ForEach(func(_, item gjson.Result) bool {
			collect(item)
			return true
		})
	} else {
		collect(res)
	}
	return out
}

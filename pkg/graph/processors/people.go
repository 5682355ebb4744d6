package processors

import (
	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/crossref"
	"github.com/jdkato/prose/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// freeTextKeys hold unstructured associate descriptions scraped from
// people-search and property pages.
var freeTextKeys = []string{"associates_text", "notes", "summary"}

// extractPeople handles people-search and property-record results:
//
//	{"name": "John Doe", "relatives": ["Jane Doe", {"name": "Bob Doe"}],
//	 "associates_text": "Known associates include Mary Smith."}
//
// Names are deduplicated case-insensitively and the record's own name is
// dropped. Each remaining name becomes a relative node.
func (n *Normalizer) extractPeople(payload gjson.Result) []graph.Extraction {
	subject := firstString(payload, "name", "full_name")

	names := make([]string, 0)
	for _, key := range []string{"relatives", "associates"} {
		payload.Get(key).ForEach(func(_, item gjson.Result) bool {
			switch {
			case item.Type == gjson.String:
				names = append(names, item.String())
			case item.IsObject():
				if name := firstString(item, "name", "full_name"); name != "" {
					names = append(names, name)
				}
			}
			return true
		})
	}
	for _, key := range freeTextKeys {
		if text := firstString(payload, key); text != "" {
			names = append(names, n.personNames(text)...)
		}
	}

	out := make([]graph.Extraction, 0)
	for _, name := range crossref.RelativeNames(names, subject) {
		out = append(out, graph.Extraction{
			Type:       graph.EntityRelative,
			Label:      name,
			Platform:   "people",
			Value:      name,
			Attributes: map[string]interface{}{"value": name},
			Relation:   graph.RelationRelatedTo,
			Strength:   RelativeStrength,
		})
	}
	return out
}

// personNames runs named-entity recognition over free text and returns PERSON spans
func (n *Normalizer) personNames(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		n.logger.WithError(err).Debug("Failed to create prose document")
		return nil
	}

	names := make([]string, 0)
	for _, ent := range doc.Entities() {
		if ent.Label == "PERSON" {
			names = append(names, ent.Text)
		}
	}

	n.logger.WithFields(logrus.Fields{
		"text_length": len(text),
		"names_count": len(names),
	}).Debug("Extracted names from free text")
	return names
}

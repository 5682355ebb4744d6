package processors

import (
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/crossref"
	"github.com/tidwall/gjson"
)

// extractPhone handles phone lookups and yields a single phone node:
//
//	{"phone": "+1 (212) 555-1234", "carrier": "Verizon", "line_type": "mobile"}
//
// Numbers that fail validation yield nothing.
func extractPhone(payload gjson.Result) []graph.Extraction {
	raw := firstString(payload, "phone", "phone_number")
	digits, ok := crossref.NormalizePhone(raw)
	if !ok {
		return nil
	}

	attrs := map[string]interface{}{"value": digits}
	for _, key := range []string{"carrier", "line_type", "location", "country"} {
		if v := firstString(payload, key); v != "" {
			attrs[key] = v
		}
	}
	if valid := payload.Get("valid"); valid.Exists() {
		attrs["carrier_valid"] = valid.Bool()
	}

	return []graph.Extraction{{
		Type:       graph.EntityPhone,
		Label:      crossref.FormatPhone(digits),
		Platform:   "phone",
		Value:      digits,
		Attributes: attrs,
		Relation:   graph.RelationPhoneNumber,
		Strength:   ContactStrength,
	}}
}

// extractAddress handles address lookups and yields a single address node:
//
//	{"address": "12 Main St, Springfield, IL", "lat": 39.8, "lng": -89.6}
func extractAddress(payload gjson.Result) []graph.Extraction {
	raw := firstString(payload, "address", "formatted_address")
	normalized, ok := crossref.NormalizeAddress(raw)
	if !ok {
		return nil
	}

	attrs := map[string]interface{}{"value": normalized}
	for _, key := range []string{"city", "state", "zip", "country", "owner"} {
		if v := firstString(payload, key); v != "" {
			attrs[key] = v
		}
	}
	if lat, lng := payload.Get("lat"), payload.Get("lng"); lat.Exists() && lng.Exists() {
		attrs["lat"] = lat.Float()
		attrs["lng"] = lng.Float()
	}

	return []graph.Extraction{{
		Type:       graph.EntityAddress,
		Label:      strings.Join(strings.Fields(raw), " "),
		Platform:   "address",
		Value:      normalized,
		Attributes: attrs,
		Relation:   graph.RelationLocatedAt,
		Strength:   ContactStrength,
	}}
}

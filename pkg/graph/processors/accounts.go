package processors

import (
	"net/url"
	"strings"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/athapong/aio-osint/pkg/graph/crossref"
	"github.com/tidwall/gjson"
)

// extractHolehe handles account-existence results for an email address:
//
//	{"email": "jdoe@example.com", "results": [{"platform": "twitter", "exists": true}]}
//
// Every result with exists=true becomes an email node labeled by platform.
func extractHolehe(payload gjson.Result) []graph.Extraction {
	email := firstString(payload, "email", "target")
	out := make([]graph.Extraction, 0)

	for _, item := range results(payload, "accounts") {
		if !item.Get("exists").Bool() {
			continue
		}
		platform := platformName(item)

		value := email
		if own := firstString(item, "email"); own != "" {
			value = own
		}
		attrs := map[string]interface{}{"platform": platform}
		if normalized, ok := crossref.NormalizeEmail(value); ok {
			value = normalized
			attrs["value"] = normalized
		} else {
			value = ""
		}
		if recovery := firstString(item, "emailrecovery", "email_recovery"); recovery != "" {
			attrs["recovery_email"] = recovery
		}
		if phone := firstString(item, "phoneNumber", "phone_number"); phone != "" {
			attrs["recovery_phone"] = phone
		}

		out = append(out, graph.Extraction{
			Type:       graph.EntityEmail,
			Label:      platform,
			Platform:   platform,
			Value:      value,
			Attributes: attrs,
			Relation:   graph.RelationRegisteredOn,
			Strength:   AccountStrength,
		})
	}
	return out
}

// extractSherlock handles username enumeration results:
//
//	{"username": "jdoe", "profiles": [{"platform": "GitHub", "url": "https://github.com/jdoe"}]}
//
// Entries without a profile link are skipped.
func extractSherlock(payload gjson.Result) []graph.Extraction {
	username := firstString(payload, "username", "target")
	out := make([]graph.Extraction, 0)

	for _, item := range results(payload, "profiles") {
		link := firstString(item, "url", "url_user", "link")
		if link == "" {
			continue
		}
		if item.Get("exists").Exists() && !item.Get("exists").Bool() {
			continue
		}
		platform := firstString(item, "platform", "site", "name")
		if platform == "" {
			platform = hostOf(link)
		}

		value := username
		if own := firstString(item, "username"); own != "" {
			value = own
		}

		label := platform
		if value != "" {
			label = platform + ": " + value
		}

		attrs := map[string]interface{}{
			"platform": platform,
			"url":      link,
		}
		if value != "" {
			attrs["value"] = value
		}

		out = append(out, graph.Extraction{
			Type:       graph.EntityUsername,
			Label:      label,
			Platform:   platform,
			Value:      value,
			Attributes: attrs,
			Relation:   graph.RelationUsernameOn,
			Strength:   AccountStrength,
		})
	}
	return out
}

// extractSocial handles social-profile checks:
//
//	{"results": [{"platform": "Instagram", "exists": true, "url": "...", "username": "..."}]}
func extractSocial(payload gjson.Result) []graph.Extraction {
	out := make([]graph.Extraction, 0)

	for _, item := range results(payload, "profiles") {
		if !item.Get("exists").Bool() {
			continue
		}
		platform := platformName(item)
		attrs := map[string]interface{}{"platform": platform}
		if link := firstString(item, "url", "link"); link != "" {
			attrs["url"] = link
		}
		if handle := firstString(item, "username", "handle"); handle != "" {
			attrs["username"] = handle
		}
		if followers := item.Get("followers"); followers.Exists() {
			attrs["followers"] = followers.Int()
		}

		out = append(out, graph.Extraction{
			Type:       graph.EntitySocial,
			Label:      platform,
			Platform:   platform,
			Attributes: attrs,
			Relation:   graph.RelationProfileOn,
			Strength:   AccountStrength,
		})
	}
	return out
}

func platformName(item gjson.Result) string {
	if name := firstString(item, "platform", "name", "site"); name != "" {
		return name
	}
	if domain := firstString(item, "domain"); domain != "" {
		return domain
	}
	if link := firstString(item, "url"); link != "" {
		return hostOf(link)
	}
	return "unknown"
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	return strings.TrimPrefix(u.Host, "www.")
}

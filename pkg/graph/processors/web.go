package processors

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/tidwall/gjson"
)

// extractWeb handles search-engine mentions. Titles and snippets may carry
// HTML markup from the search provider:
//
//	{"results": [{"title": "<b>John</b> Doe", "url": "https://...", "snippet": "..."}]}
//
// At most MaxWebResults nodes are emitted per finding.
func extractWeb(payload gjson.Result) []graph.Extraction {
	out := make([]graph.Extraction, 0, MaxWebResults)

	for _, item := range results(payload, "items") {
		if len(out) == MaxWebResults {
			break
		}
		link := firstString(item, "url", "link")
		title := htmlText(firstString(item, "title", "name"))
		if link == "" && title == "" {
			continue
		}
		if title == "" {
			title = hostOf(link)
		}

		attrs := map[string]interface{}{}
		if link != "" {
			attrs["url"] = link
			attrs["domain"] = hostOf(link)
		}
		if snippet := firstString(item, "snippet", "description", "content"); snippet != "" {
			attrs["snippet"] = htmlText(snippet)
			if summary := htmlMarkdown(snippet); summary != "" {
				attrs["summary"] = summary
			}
		}

		out = append(out, graph.Extraction{
			Type:       graph.EntityWeb,
			Label:      title,
			Platform:   hostOf(link),
			Attributes: attrs,
			Relation:   graph.RelationMentionedIn,
			Strength:   WebStrength,
		})
	}
	return out
}

// htmlText reduces an HTML fragment to its trimmed text content
func htmlText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// htmlMarkdown converts an HTML fragment to markdown, keeping links and emphasis
func htmlMarkdown(fragment string) string {
	md, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

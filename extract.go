package main

import (
	"encoding/json"
	"fmt"
	gohtml "html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// maxItems caps how many article items any single extraction strategy
// will produce.
const maxItems = 60

// newsItem is one article link in a feed response. Identity for
// de-duplication is the normalized URL, not the id.
type newsItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
	Image  string `json:"image,omitempty"`

	// Sponsored is set by the classifier. With omitempty it only appears
	// on the wire in mark mode, where flagged items carry it as true;
	// dropped items never leak it.
	Sponsored bool `json:"_sponsored,omitempty"`

	// explicitSponsor records an upstream-provided sponsor flag from the
	// structured JSON feed. Never serialized.
	explicitSponsor bool
}

type newsSection struct {
	Title string     `json:"title"`
	Items []newsItem `json:"items"`
}

// Upstream JSON shapes. The feed schema is not under our control, so the
// decode is permissive: ids may be numbers or strings, images may arrive
// under "image" or "imageUrl", and sponsor flags under several names.
type upstreamFeed struct {
	Sections []upstreamSection `json:"sections"`
}

type upstreamSection struct {
	Title string         `json:"title"`
	Items []upstreamItem `json:"items"`
}

type upstreamItem struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Source      string          `json:"source"`
	Image       string          `json:"image"`
	ImageURL    string          `json:"imageUrl"`
	Sponsored   bool            `json:"sponsored"`
	IsSponsor   bool            `json:"isSponsor"`
	IsSponsored bool            `json:"is_sponsored"`
}

func (u upstreamItem) idString(idx int) string {
	var s string
	if len(u.ID) > 0 {
		if json.Unmarshal(u.ID, &s) == nil && s != "" {
			return s
		}
		var n json.Number
		if json.Unmarshal(u.ID, &n) == nil {
			return n.String()
		}
	}
	return fmt.Sprintf("item-%d", idx)
}

// parseFeed turns a raw upstream response into sections of items, trying
// strategies in priority order until one yields results:
//
//  1. structured JSON with a "sections" array (trusted as-is)
//  2. parsed-DOM anchor walk over the HTML
//  3. regex anchor scan over the raw markup
//  4. hydration-payload scrape (escaped JSON inside script tags)
//
// A JSON response without a usable "sections" key is passed through
// verbatim via the second return value.
func parseFeed(body []byte, contentType, selfHost string, newsletters []string, h heuristics) ([]newsSection, []byte) {
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		var feed upstreamFeed
		var probe map[string]json.RawMessage
		if json.Unmarshal(body, &probe) != nil || probe["sections"] == nil ||
			json.Unmarshal(body, &feed) != nil {
			// Unexpected JSON shape; hand the body back untouched.
			return nil, body
		}
		return convertUpstreamSections(feed.Sections), nil
	}

	items := extractDOMItems(body, selfHost)
	if len(items) == 0 {
		items = extractRegexItems(body, selfHost)
	}
	if len(items) == 0 {
		items = extractHydrationItems(body, selfHost, newsletters, h)
	}
	return []newsSection{{Title: "Latest", Items: items}}, nil
}

func convertUpstreamSections(in []upstreamSection) []newsSection {
	out := make([]newsSection, 0, len(in))
	for _, s := range in {
		sec := newsSection{Title: s.Title, Items: make([]newsItem, 0, len(s.Items))}
		for i, it := range s.Items {
			sec.Items = append(sec.Items, newsItem{
				ID:              it.idString(i),
				Title:           it.Title,
				URL:             it.URL,
				Source:          it.Source,
				Image:           firstNonEmpty(it.Image, it.ImageURL),
				explicitSponsor: it.Sponsored || it.IsSponsor || it.IsSponsored,
			})
		}
		out = append(out, sec)
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// extractDOMItems collects outbound anchors from parsed HTML. Anchors
// back to the upstream's own domain are navigation, not articles, and
// anchors with very short text are icons and social buttons. Titles with
// an explicit "(Sponsor)" marker are kept: sponsor detection is the
// classifier's job, extraction stays sponsor-agnostic.
func extractDOMItems(body []byte, selfHost string) []newsItem {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var items []newsItem
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(items) >= maxItems {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := strings.TrimSpace(dom.GetAttributeOr(n, "href", ""))
			if isOutboundHref(href, selfHost) && !seen[href] {
				seen[href] = true
				title := squashWhitespace(collectText(n))
				if len([]rune(title)) >= 4 {
					items = append(items, newsItem{
						ID:     fmt.Sprintf("ext-%d", len(items)),
						Title:  title,
						URL:    href,
						Source: hostToSource(href),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return items
}

var (
	anchorRe   = regexp.MustCompile(`(?is)<a[^>]+href=["'](https?://[^"']+)["'][^>]*>(.*?)</a>`)
	innerTagRe = regexp.MustCompile(`<[^>]+>`)
)

// extractRegexItems is the fallback for markup too broken for the DOM
// parser. Same filtering rules, pattern matching instead of a tree.
func extractRegexItems(body []byte, selfHost string) []newsItem {
	var items []newsItem
	seen := make(map[string]bool)

	for _, m := range anchorRe.FindAllSubmatch(body, -1) {
		if len(items) >= maxItems {
			break
		}
		href := strings.TrimSpace(string(m[1]))
		if !isOutboundHref(href, selfHost) || seen[href] {
			continue
		}
		seen[href] = true

		text := innerTagRe.ReplaceAllString(string(m[2]), "")
		text = squashWhitespace(gohtml.UnescapeString(text))
		if len([]rune(text)) < 4 {
			continue
		}
		items = append(items, newsItem{
			ID:     fmt.Sprintf("rx-%d", len(items)),
			Title:  text,
			URL:    href,
			Source: hostToSource(href),
		})
	}
	return items
}

// Hydration-payload patterns: article tuples embedded in script tags as
// escaped JSON (\"url\":\"...\"), plus the unescaped form just in case.
// This is string scraping of a third-party payload and inherently
// fragile, which is why it sits last in the ladder.
var (
	escapedArticleRe   = regexp.MustCompile(`\\"url\\":\s*\\"(https?://[^"\\]+)\\"[^}]*\\"newsletter\\":\s*\\"([^"\\]+)\\"[^}]*\\"title\\":\s*\\"([^"\\]+)\\"`)
	escapedImageRe     = regexp.MustCompile(`\\"imageUrl\\":\s*\\"([^"\\]+)\\"`)
	unescapedArticleRe = regexp.MustCompile(`"url":\s*"(https?://[^"]+)"[^}]*"newsletter":\s*"([^"]+)"[^}]*"title":\s*"([^"]+)"`)
	unescapedImageRe   = regexp.MustCompile(`"imageUrl":\s*"([^"]+)"`)
)

func extractHydrationItems(body []byte, selfHost string, newsletters []string, h heuristics) []newsItem {
	var items []newsItem
	seen := make(map[string]bool)

	scan := func(articleRe, imageRe *regexp.Regexp) {
		for _, m := range articleRe.FindAllSubmatch(body, -1) {
			if len(items) >= maxItems {
				return
			}
			rawURL, newsletter, title := string(m[1]), string(m[2]), string(m[3])
			if strings.Contains(rawURL, selfHost) || seen[rawURL] {
				continue
			}
			if len([]rune(title)) < 10 {
				continue
			}
			if !containsString(newsletters, newsletter) {
				continue
			}
			seen[rawURL] = true

			image := ""
			if im := imageRe.FindSubmatch(m[0]); im != nil {
				image = decodeJSONString(string(im[1]))
			}
			items = append(items, newsItem{
				ID:     fmt.Sprintf("%s-%d", newsletter, len(items)),
				Title:  decodeJSONString(title),
				URL:    normalizeURL(decodeJSONString(rawURL), h),
				Source: hostToSource(rawURL),
				Image:  image,
			})
		}
	}
	scan(escapedArticleRe, escapedImageRe)
	scan(unescapedArticleRe, unescapedImageRe)
	return items
}

var jsonEscapeReplacer = strings.NewReplacer(
	`\u0026`, "&",
	`\u003c`, "<",
	`\u003e`, ">",
	`\"`, `"`,
	`\\`, `\`,
)

func decodeJSONString(s string) string {
	return jsonEscapeReplacer.Replace(s)
}

func isOutboundHref(href, selfHost string) bool {
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return false
	}
	return selfHost == "" || !strings.Contains(href, selfHost)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collectText concatenates all text descendants of a node.
func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// sniffSponsorSeeds fetches the newsletter's human-facing page (as
// opposed to the API feed) and tries to locate the sponsored block's
// outbound URLs. The label text "Sponsored" only exists on the rendered
// page, so this is the one signal the feed itself cannot provide.
//
// Results are cached per vertical for ten minutes. An empty result means
// "no seeds available", never an error: this is a best-effort signal.
func sniffSponsorSeeds(ctx context.Context, f *fetcher, cache *blobCache, pageURL, selfHost, vertical string, h heuristics) []string {
	key := "sponsor_sniff_" + vertical
	var cached []string
	if cache.getJSON(nsSponsorSniff, key, sniffTTL, &cached) {
		return cached
	}

	seeds := sniffPage(ctx, f, pageURL, selfHost, h)
	cache.set(nsSponsorSniff, key, seeds)
	return seeds
}

func sniffPage(ctx context.Context, f *fetcher, pageURL, selfHost string, h heuristics) []string {
	status, ctype, body := f.get(ctx, pageURL, false)
	if status < 200 || status >= 400 || len(body) == 0 ||
		!strings.Contains(strings.ToLower(ctype), "text/html") {
		return []string{}
	}

	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return []string{}
	}

	label := findSponsorLabel(root)
	if label == nil {
		return []string{}
	}

	// The label is usually a small caption; the sponsored links live in
	// an enclosing card. Walk up a few ancestors until one contains
	// outbound anchors.
	var out []string
	container := label
	for up := 0; up < 3 && container != nil; up++ {
		anchors := outboundAnchors(container, selfHost, 4)
		if len(anchors) > 0 {
			out = anchors
			break
		}
		container = container.Parent
	}

	// Fallback: the first outbound anchors after the label in document
	// order, when no enclosing container matched.
	if len(out) == 0 {
		out = anchorsFollowing(root, label, selfHost, 3)
	}

	seen := make(map[string]bool, len(out))
	seeds := make([]string, 0, len(out))
	for _, href := range out {
		n := normalizeURL(href, h)
		if !seen[n] {
			seen[n] = true
			seeds = append(seeds, n)
		}
	}
	fmt.Fprintf(logOut, "sniffed %d sponsor seed(s) from %s\n", len(seeds), pageURL)
	return seeds
}

// findSponsorLabel returns the parent element of the first text node
// containing the word "sponsor" (case-insensitive), in document order.
func findSponsorLabel(root *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.TextNode && strings.Contains(strings.ToLower(n.Data), "sponsor") {
			found = n.Parent
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// outboundAnchors collects up to limit absolute non-self anchor hrefs
// within the subtree rooted at n.
func outboundAnchors(n *html.Node, selfHost string, limit int) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hrefs) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := strings.TrimSpace(dom.GetAttributeOr(n, "href", ""))
			if isOutboundHref(href, selfHost) {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return hrefs
}

// anchorsFollowing collects up to limit outbound anchors that appear
// after the label node in document order.
func anchorsFollowing(root, label *html.Node, selfHost string, limit int) []string {
	var hrefs []string
	past := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hrefs) >= limit {
			return
		}
		if n == label {
			past = true
		}
		if past && n.Type == html.ElementNode && n.Data == "a" {
			href := strings.TrimSpace(dom.GetAttributeOr(n, "href", ""))
			if isOutboundHref(href, selfHost) {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return hrefs
}

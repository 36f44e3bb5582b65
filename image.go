package main

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability"
	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// imageResolver finds a representative image for an article URL via a
// prioritized fallback chain: page meta tags, readability's lead image,
// well-known icon paths, and finally a favicon-by-domain service. Every
// result is cached so repeated feeds don't re-fetch article pages.
type imageResolver struct {
	f     *fetcher
	cache *blobCache
	h     heuristics
}

type cachedImage struct {
	Image    string `json:"image"`
	Degraded bool   `json:"degraded,omitempty"`
}

func newImageResolver(f *fetcher, cache *blobCache, h heuristics) *imageResolver {
	return &imageResolver{f: f, cache: cache, h: h}
}

// resolveImage returns the best image URL for an article and whether the
// result is degraded (the article page itself was unreachable, so only
// the favicon fallback was available). The empty string is returned only
// when no hostname can be parsed from the article URL at all.
func (r *imageResolver) resolveImage(ctx context.Context, articleURL string) (string, bool) {
	host := hostToSource(articleURL)
	if host == "" {
		return "", false
	}

	var cached cachedImage
	if r.cache.getJSON(nsCardImage, articleURL, imageTTL, &cached) && cached.Image != "" {
		// Degraded entries expire sooner so a transient outage doesn't
		// pin a favicon for twelve hours.
		if !cached.Degraded {
			return cached.Image, false
		}
		if r.cache.getJSON(nsCardImage, articleURL, imageDegradedTTL, &cached) && cached.Image != "" {
			return cached.Image, true
		}
	}

	image, degraded := r.lookupImage(ctx, articleURL)
	r.cache.set(nsCardImage, articleURL, cachedImage{Image: image, Degraded: degraded})
	return image, degraded
}

func (r *imageResolver) lookupImage(ctx context.Context, articleURL string) (string, bool) {
	status, _, body := r.f.get(ctx, articleURL, false)
	degraded := status == 0

	if status >= 200 && status < 400 && len(body) > 0 {
		if img := pickMetaImage(body, articleURL); img != "" {
			return img, false
		}
		if img := leadImage(body, articleURL); img != "" {
			return img, false
		}
	}

	if origin := domainOrigin(articleURL); origin != "" {
		for _, candidate := range []string{origin + "/apple-touch-icon.png", origin + "/favicon.ico"} {
			if r.f.headOK(ctx, candidate) {
				return candidate, false
			}
		}
	}

	return faviconForHost(hostToSource(articleURL)), degraded
}

// pickMetaImage scans a page for social-card metadata. Priority order:
// og:image (property then name), twitter:image (name then property),
// then <link rel="image_src">. Values resolve against the page URL so
// relative and protocol-relative forms come back absolute.
func pickMetaImage(body []byte, pageURL string) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	// First value seen for each slot, filled during a single walk.
	var ogProp, ogName, twName, twProp, linkImg string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				content := strings.TrimSpace(dom.GetAttributeOr(n, "content", ""))
				if content != "" {
					prop := strings.ToLower(dom.GetAttributeOr(n, "property", ""))
					name := strings.ToLower(dom.GetAttributeOr(n, "name", ""))
					switch {
					case prop == "og:image" && ogProp == "":
						ogProp = content
					case name == "og:image" && ogName == "":
						ogName = content
					case name == "twitter:image" && twName == "":
						twName = content
					case prop == "twitter:image" && twProp == "":
						twProp = content
					}
				}
			case "link":
				if strings.EqualFold(dom.GetAttributeOr(n, "rel", ""), "image_src") && linkImg == "" {
					linkImg = strings.TrimSpace(dom.GetAttributeOr(n, "href", ""))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, val := range []string{ogProp, ogName, twName, twProp, linkImg} {
		if val != "" {
			return absoluteURL(pageURL, val)
		}
	}
	return ""
}

// leadImage asks readability for the page's representative image. It
// covers pages without social-card metadata but with an obvious hero
// image in the content.
func leadImage(body []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil || article.Image == "" {
		return ""
	}
	return absoluteURL(pageURL, article.Image)
}

// enrichSections fills in missing item images in parallel, bounded by
// workers. Each item falls through its own chain independently; a slow
// or failing article never aborts its siblings, and when ctx runs out
// the remaining items are simply returned without an image.
func (r *imageResolver) enrichSections(ctx context.Context, sections []newsSection, workers int) {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for si := range sections {
		for ii := range sections[si].Items {
			it := &sections[si].Items[ii]
			if it.Image != "" {
				continue
			}
			if it.URL == "" {
				if it.Source != "" {
					it.Image = faviconForHost(it.Source)
				}
				continue
			}
			if it.Source == "" {
				it.Source = hostToSource(it.URL)
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				it.Image, _ = r.resolveImage(ctx, it.URL)
				return nil
			})
		}
	}
	g.Wait()
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verticals the proxy will serve, and the upstream newsletter names each
// one maps to (the upstream uses "infosec" where we say "security", and
// webdev content is split across two newsletters).
var allowedVerticals = []string{
	"webdev", "tech", "ai", "product", "data",
	"devops", "security", "design", "crypto", "founders",
}

var verticalNewsletters = map[string][]string{
	"webdev":   {"dev", "webdev"},
	"tech":     {"tech"},
	"ai":       {"ai"},
	"product":  {"product"},
	"data":     {"data"},
	"devops":   {"devops"},
	"security": {"infosec"},
	"design":   {"design"},
	"crypto":   {"crypto"},
	"founders": {"founders"},
}

func validVertical(v string) bool {
	return containsString(allowedVerticals, v)
}

// server wires the pipeline together: fetch adapter, cache, classifier
// and image resolver are constructed once and passed in, never reached
// for as ambient state.
type server struct {
	f      *fetcher
	cache  *blobCache
	cls    *classifier
	images *imageResolver
	h      heuristics

	upstream *url.URL
	selfHost string

	imageWorkers  int
	requestBudget time.Duration
}

func newServer(f *fetcher, cache *blobCache, h heuristics, upstream *url.URL, imageWorkers int, budget time.Duration) *server {
	return &server{
		f:             f,
		cache:         cache,
		cls:           newClassifier(h),
		images:        newImageResolver(f, cache, h),
		h:             h,
		upstream:      upstream,
		selfHost:      strings.TrimPrefix(strings.ToLower(upstream.Hostname()), "www."),
		imageWorkers:  imageWorkers,
		requestBudget: budget,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/news", s.handleNews)
	mux.HandleFunc("/resolve-image", s.handleResolveImage)
	mux.HandleFunc("/placeholder", s.handlePlaceholder)
	return mux
}

// corsPreamble applies the shared CORS policy. Returns false when the
// request was fully handled (preflight or rejected method).
func corsPreamble(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type newsResponse struct {
	Sections []newsSection `json:"sections"`
	Error    string        `json:"error,omitempty"`
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	if !corsPreamble(w, r) {
		return
	}

	q := r.URL.Query()
	vertical := q.Get("vertical")
	if vertical == "" {
		vertical = "webdev"
	}
	if !validVertical(vertical) {
		writeJSON(w, http.StatusBadRequest, newsResponse{
			Sections: []newsSection{},
			Error:    "Invalid vertical",
		})
		return
	}

	// Legacy clients sent keepSponsored=1 before modes existed.
	mode := q.Get("mode")
	if mode == "" {
		if q.Get("keepSponsored") == "1" {
			mode = modeMark
		} else {
			mode = modeDrop
		}
	}
	if !validMode(mode) {
		mode = modeDrop
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestBudget)
	defer cancel()

	// Sponsor-seed sniffing only matters when we will classify.
	var sniffedSeeds []string
	if mode != modeRaw {
		pageURL := s.upstream.JoinPath(vertical).String()
		sniffedSeeds = sniffSponsorSeeds(ctx, s.f, s.cache, pageURL, s.selfHost, vertical, s.h)
	}

	feedURL := s.upstream.JoinPath("api", "latest", vertical).String()
	fmt.Fprintf(logOut, "fetching %s (vertical=%s mode=%s)\n", feedURL, vertical, mode)

	status, ctype, body := s.f.get(ctx, feedURL, true)
	if status < 200 || status >= 300 || len(body) == 0 {
		// Second chance without the JSON Accept header; some edges serve
		// HTML or reject unexpected Accept values.
		status, ctype, body = s.f.get(ctx, feedURL, false)
	}
	if status < 200 || status >= 300 || len(body) == 0 {
		writeJSON(w, http.StatusBadGateway, newsResponse{
			Sections: []newsSection{},
			Error:    "Upstream failed",
		})
		return
	}

	sections, passthrough := parseFeed(body, ctype, s.selfHost, verticalNewsletters[vertical], s.h)
	if passthrough != nil {
		// Unexpected JSON shape from upstream: hand it through verbatim.
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		s.setFeedCacheControl(w)
		w.WriteHeader(http.StatusOK)
		w.Write(passthrough)
		return
	}

	if mode != modeRaw {
		sections = s.cls.filterSections(sections, sniffedSeeds, mode == modeDrop)
	}
	s.images.enrichSections(ctx, sections, s.imageWorkers)

	if sections == nil {
		sections = []newsSection{}
	}
	s.setFeedCacheControl(w)
	writeJSON(w, http.StatusOK, newsResponse{Sections: sections})
}

func (s *server) setFeedCacheControl(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "public, s-maxage=300, stale-while-revalidate=600")
}

func (s *server) handleResolveImage(w http.ResponseWriter, r *http.Request) {
	if !corsPreamble(w, r) {
		return
	}

	articleURL := r.URL.Query().Get("url")
	if articleURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing url parameter"})
		return
	}
	u, err := url.Parse(articleURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid URL"})
		return
	}

	image, degraded := s.images.resolveImage(r.Context(), articleURL)

	// Degraded answers (favicon because the page was unreachable) get a
	// shorter client cache so a recovered page is retried sooner.
	if degraded {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}

	var img *string
	if image != "" {
		img = &image
	}
	writeJSON(w, http.StatusOK, map[string]any{"image": img})
}

func (s *server) handlePlaceholder(w http.ResponseWriter, r *http.Request) {
	if !corsPreamble(w, r) {
		return
	}

	raw := r.URL.Query().Get("host")
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	host := hostToSource(raw)
	card, err := renderPlaceholder(host)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Placeholder rendering failed"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=604800")
	w.Write(card)
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPickMetaImagePriority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"og property wins",
			`<head>
				<meta name="twitter:image" content="https://cdn.example/tw.png">
				<meta property="og:image" content="https://cdn.example/og.png">
			</head>`,
			"https://cdn.example/og.png",
		},
		{
			"og via name attribute",
			`<head><meta name="og:image" content="https://cdn.example/og2.png"></head>`,
			"https://cdn.example/og2.png",
		},
		{
			"twitter fallback",
			`<head><meta name="twitter:image" content="https://cdn.example/tw.png"></head>`,
			"https://cdn.example/tw.png",
		},
		{
			"link image_src last",
			`<head><link rel="image_src" href="https://cdn.example/link.png"></head>`,
			"https://cdn.example/link.png",
		},
		{
			"relative resolves against page",
			`<head><meta property="og:image" content="/img/x.png"></head>`,
			"https://site.com/img/x.png",
		},
		{
			"protocol relative",
			`<head><meta property="og:image" content="//cdn.example/p.png"></head>`,
			"https://cdn.example/p.png",
		},
		{
			"empty content ignored",
			`<head><meta property="og:image" content="">
				<meta name="twitter:image" content="https://cdn.example/tw.png"></head>`,
			"https://cdn.example/tw.png",
		},
		{
			"nothing",
			`<head><title>plain</title></head>`,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickMetaImage([]byte(tt.body), "https://site.com/post")
			if got != tt.want {
				t.Errorf("pickMetaImage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveImageFromMetaTag(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><meta property="og:image" content="/img/x.png"></head><body>post</body></html>`))
	}))
	defer srv.Close()

	r := newImageResolver(newFetcher(""), testCache(t), defaultHeuristics())
	img, degraded := r.resolveImage(context.Background(), srv.URL+"/post")
	if img != srv.URL+"/img/x.png" {
		t.Errorf("image = %q, want %q", img, srv.URL+"/img/x.png")
	}
	if degraded {
		t.Error("meta-tag result reported as degraded")
	}
}

func TestResolveImageIconProbe(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/apple-touch-icon.png" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path == "/post" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><body><p>short page, no imagery</p></body></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := newImageResolver(newFetcher(""), testCache(t), defaultHeuristics())
	img, degraded := r.resolveImage(context.Background(), srv.URL+"/post")
	if img != srv.URL+"/apple-touch-icon.png" {
		t.Errorf("image = %q, want icon probe result", img)
	}
	if degraded {
		t.Error("icon result reported as degraded")
	}
}

func TestResolveImageUnreachableFallsBackToFavicon(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL + "/post"
	srv.Close()

	r := newImageResolver(newFetcher(""), testCache(t), defaultHeuristics())
	img, degraded := r.resolveImage(context.Background(), deadURL)
	if img == "" {
		t.Fatal("image must never be empty for a URL with a hostname")
	}
	if !strings.Contains(img, "favicons") {
		t.Errorf("image = %q, want favicon service URL", img)
	}
	if !degraded {
		t.Error("unreachable page should be degraded")
	}
}

func TestResolveImageNoHostname(t *testing.T) {
	r := newImageResolver(newFetcher(""), testCache(t), defaultHeuristics())
	img, degraded := r.resolveImage(context.Background(), ":::")
	if img != "" || degraded {
		t.Errorf("got (%q, %v), want empty non-degraded", img, degraded)
	}
}

func TestResolveImageCaches(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><meta property="og:image" content="https://cdn.example/i.png"></head></html>`))
	}))
	defer srv.Close()

	r := newImageResolver(newFetcher(""), testCache(t), defaultHeuristics())
	first, _ := r.resolveImage(context.Background(), srv.URL+"/post")
	second, _ := r.resolveImage(context.Background(), srv.URL+"/post")

	if hits != 1 {
		t.Errorf("page fetched %d times, want 1", hits)
	}
	if first != second || first != "https://cdn.example/i.png" {
		t.Errorf("cached result mismatch: %q vs %q", first, second)
	}
}

func TestEnrichSections(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><meta property="og:image" content="https://cdn.example/i.png"></head></html>`))
	}))
	defer srv.Close()

	r := newImageResolver(newFetcher(""), testCache(t), defaultHeuristics())
	sections := []newsSection{{
		Title: "News",
		Items: []newsItem{
			{Title: "Has Image", URL: srv.URL + "/a", Image: "https://already.example/set.png"},
			{Title: "Needs Image", URL: srv.URL + "/b"},
			{Title: "No URL", Source: "known.example"},
		},
	}}

	r.enrichSections(context.Background(), sections, 4)

	its := sections[0].Items
	if its[0].Image != "https://already.example/set.png" {
		t.Errorf("existing image overwritten: %q", its[0].Image)
	}
	if its[1].Image != "https://cdn.example/i.png" {
		t.Errorf("item image = %q", its[1].Image)
	}
	if its[1].Source == "" {
		t.Error("source not backfilled from URL")
	}
	if its[2].Image != faviconForHost("known.example") {
		t.Errorf("no-URL item image = %q", its[2].Image)
	}
}

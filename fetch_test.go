package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetcherGet(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	f := newFetcher("")
	status, ctype, body := f.get(context.Background(), srv.URL, true)

	if status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
	if ctype != "application/json" {
		t.Errorf("content type = %q", ctype)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("body = %q", body)
	}
	if gotUA != defaultUA {
		t.Errorf("user agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
}

func TestFetcherGetHTMLAccept(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	f := newFetcher("custom-agent/1.0")
	f.get(context.Background(), srv.URL, false)

	if gotAccept == "application/json" || gotAccept == "" {
		t.Errorf("accept = %q, want browser-style header", gotAccept)
	}
	if f.userAgent != "custom-agent/1.0" {
		t.Errorf("userAgent = %q", f.userAgent)
	}
}

func TestFetcherGetTransportFailure(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	f := newFetcher("")
	status, ctype, body := f.get(context.Background(), dead, false)
	if status != 0 || ctype != "" || body != nil {
		t.Errorf("got (%d, %q, %v), want zero values", status, ctype, body)
	}
}

func TestFetcherGetReportsErrorStatus(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newFetcher("")
	status, _, body := f.get(context.Background(), srv.URL, false)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if len(body) == 0 {
		t.Error("error body discarded")
	}
}

func TestHeadOK(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/exists" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newFetcher("")
	if !f.headOK(context.Background(), srv.URL+"/exists") {
		t.Error("headOK false for 200")
	}
	if f.headOK(context.Background(), srv.URL+"/missing") {
		t.Error("headOK true for 404")
	}

	dead := srv.URL
	srv.Close()
	if f.headOK(context.Background(), dead+"/exists") {
		t.Error("headOK true for dead server")
	}
}

func TestInsecureFetcherTLS(t *testing.T) {
	t.Setenv("NEWSPROXY_ALLOW_LOCAL", "1")

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer srv.Close()

	f := insecureFetcher("")
	status, _, body := f.get(context.Background(), srv.URL, false)
	if status != http.StatusOK || string(body) != "secure" {
		t.Errorf("got (%d, %q)", status, body)
	}
}

func TestHasPort(t *testing.T) {
	if !hasPort("example.com:443") {
		t.Error("hasPort(example.com:443) = false")
	}
	if hasPort("example.com") {
		t.Error("hasPort(example.com) = true")
	}
}

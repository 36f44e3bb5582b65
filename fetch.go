package main

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"

const (
	connectTimeout = 5 * time.Second
	fetchTimeout   = 12 * time.Second
	headTimeout    = 6 * time.Second
)

// maxResponseBytes caps how much of any response body is read. Feed and
// article pages beyond this are truncated rather than rejected; the
// parsers all tolerate a cut-off tail.
const maxResponseBytes int64 = 8 * 1024 * 1024

// fetcher performs all outbound HTTP for the pipeline. Its get method
// never returns an error: transport failures map to status 0 so callers
// can fall through their own ladders.
type fetcher struct {
	userAgent string
	browser   *http.Client // utls fingerprint, https only
	plain     *http.Client
}

func newFetcher(userAgent string) *fetcher {
	if userAgent == "" {
		userAgent = defaultUA
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &fetcher{
		userAgent: userAgent,
		browser: &http.Client{
			Transport: &browserTransport{
				dialer: dialer,
				h1:     &http.Transport{DialContext: safeDialContext(dialer)},
				h2:     &http2.Transport{},
			},
		},
		plain: &http.Client{
			Transport: &http.Transport{DialContext: safeDialContext(dialer)},
		},
	}
}

func (f *fetcher) client(scheme string) *http.Client {
	if scheme == "https" {
		return f.browser
	}
	return f.plain
}

// get performs a redirect-following GET and returns status, content type
// and body. Any transport error yields (0, "", nil); non-2xx statuses are
// reported as-is with whatever body came back.
func (f *fetcher) get(ctx context.Context, rawURL string, acceptJSON bool) (int, string, []byte) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", nil
	}
	req.Header.Set("User-Agent", f.userAgent)
	if acceptJSON {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client(req.URL.Scheme).Do(req)
	if err != nil {
		return 0, "", nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// Keep whatever arrived before the cut; a partial page still
		// parses for anchors and meta tags.
		if len(body) == 0 {
			return 0, "", nil
		}
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body
}

// headOK issues a lightweight existence check. True iff the final status
// after redirects is in [200,400).
func (f *fetcher) headOK(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, headTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client(req.URL.Scheme).Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// utlsConn wraps a utls.UConn and satisfies net.Conn + the
// ConnectionState interface that net/http2 needs.
type utlsConn struct {
	*utls.UConn
}

func (c *utlsConn) ConnectionState() tls.ConnectionState {
	cs := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:                    cs.Version,
		HandshakeComplete:          cs.HandshakeComplete,
		CipherSuite:                cs.CipherSuite,
		NegotiatedProtocol:         cs.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: cs.NegotiatedProtocolIsMutual,
		ServerName:                 cs.ServerName,
		PeerCertificates:           cs.PeerCertificates,
		VerifiedChains:             cs.VerifiedChains,
		OCSPResponse:               cs.OCSPResponse,
		TLSUnique:                  cs.TLSUnique,
	}
}

// browserTransport dials https with a real browser's TLS fingerprint and
// routes to HTTP/1.1 or HTTP/2 based on ALPN negotiation. Some upstream
// sites fingerprint the Go TLS stack and serve bot pages otherwise.
type browserTransport struct {
	dialer *net.Dialer
	h1     *http.Transport
	h2     *http2.Transport
}

func (bt *browserTransport) dialUTLS(ctx context.Context, network, addr string) (net.Conn, string, error) {
	conn, err := safeDialContext(bt.dialer)(ctx, network, addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
	}, utls.HelloFirefox_120)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}

	alpn := tlsConn.ConnectionState().NegotiatedProtocol
	return &utlsConn{tlsConn}, alpn, nil
}

func (bt *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return bt.h1.RoundTrip(req)
	}

	addr := req.URL.Host
	if !hasPort(addr) {
		addr = addr + ":443"
	}

	conn, alpn, err := bt.dialUTLS(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	if alpn == "h2" {
		h2conn, err := bt.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2conn.RoundTrip(req)
	}

	// For HTTP/1.1, inject the TLS conn into a one-shot transport.
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
	}
	return transport.RoundTrip(req)
}

func hasPort(host string) bool {
	_, _, err := net.SplitHostPort(host)
	return err == nil
}

// insecureFetcher returns a fetcher that skips TLS verification.
// Used only for tests with httptest TLS servers.
func insecureFetcher(userAgent string) *fetcher {
	f := newFetcher(userAgent)
	insecure := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	f.browser = insecure
	return f
}

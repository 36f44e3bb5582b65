package main

import (
	"net/url"
	"strings"
)

// normalizeURL strips tracking parameters so URL comparisons are
// reliable. Remaining parameters keep their original relative order and
// encoding; the fragment is dropped. Unparseable input passes through
// unchanged, which makes the function idempotent over its whole domain.
func normalizeURL(raw string, h heuristics) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var kept []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if isTrackingParam(key, h) {
			continue
		}
		kept = append(kept, pair)
	}

	out := u.Scheme + "://" + u.Host + path
	if len(kept) > 0 {
		out += "?" + strings.Join(kept, "&")
	}
	return out
}

func isTrackingParam(key string, h heuristics) bool {
	key = strings.ToLower(key)
	for _, p := range h.TrackingPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	for _, name := range h.TrackingParams {
		if key == name {
			return true
		}
	}
	return false
}

// registrableDomain returns the domain an organization would actually
// register: example.com for www.example.com, example.co.uk for
// www.example.co.uk. Hosts with two or fewer labels are returned as-is.
// Unparseable input yields "".
func registrableDomain(raw string, h heuristics) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return registrableDomainFromHost(u.Hostname(), h)
}

func registrableDomainFromHost(host string, h heuristics) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	lastTwo := labels[len(labels)-2] + "." + labels[len(labels)-1]
	for _, suffix := range h.TwoLevelTLDs {
		if lastTwo == suffix {
			return labels[len(labels)-3] + "." + lastTwo
		}
	}
	return lastTwo
}

// brandToken derives a comparison token from a registrable domain:
// the first label, lowercased, non-alphanumerics stripped
// (my-brand.com -> mybrand).
func brandToken(regDomain string) string {
	label, _, _ := strings.Cut(regDomain, ".")
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hostToSource extracts a display source from a URL: bare hostname,
// lowercased, leading "www." removed. "" when no host can be parsed.
func hostToSource(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// faviconForHost returns the favicon-by-domain service URL, or "" for an
// empty host. This is the resolver's fallback of last resort.
func faviconForHost(host string) string {
	if host == "" {
		return ""
	}
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(host) + "&sz=256"
}

// domainOrigin returns scheme://host[:port] for a URL, or "" when the
// URL has no usable scheme/host.
func domainOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// absoluteURL resolves ref against base. Handles absolute, protocol-
// relative (//host/x), root-relative (/x) and path-relative forms.
// Returns "" for an empty ref and ref unchanged when base is unusable.
func absoluteURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil || b.Scheme == "" || b.Host == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

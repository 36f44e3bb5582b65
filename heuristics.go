package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// heuristics holds the hand-maintained word lists the classifier and
// normalizer consult. They are data, not logic: the lists ship with
// defaults mirroring the proxy they replace and can be extended from a
// JSON file without touching any control flow.
type heuristics struct {
	// Tracking query parameters stripped by normalizeURL.
	TrackingPrefixes []string `json:"trackingPrefixes"`
	TrackingParams   []string `json:"trackingParams"`

	// Two-level public suffixes (co.uk, com.au, ...) for registrable
	// domain computation. Deliberately an allow-list, not the full PSL.
	TwoLevelTLDs []string `json:"twoLevelTLDs"`

	// Call-to-action phrases typical of advertising copy.
	CTAPhrases []string `json:"ctaPhrases"`
}

func defaultHeuristics() heuristics {
	return heuristics{
		TrackingPrefixes: []string{"utm_", "mc_", "ref_"},
		TrackingParams: []string{
			"gclid", "fbclid", "ref", "campaign", "source", "medium", "content",
		},
		TwoLevelTLDs: []string{
			"co.uk", "ac.uk", "gov.uk", "org.uk", "ltd.uk", "plc.uk",
			"com.au", "net.au", "org.au", "com.br", "com.mx", "com.ar", "com.tr", "com.pl",
			"com.cn", "com.hk", "com.sg", "com.tw", "co.jp", "ne.jp", "or.jp", "co.kr",
			"com.sa", "co.in", "com.co", "com.ng", "com.ph", "com.my", "com.vn", "com.pe",
		},
		CTAPhrases: []string{
			"learn more", "get started", "sign up", "try it", "try now", "start free",
			"book a demo", "book demo", "free trial", "download", "read more", "limited time",
			"register now", "join now", "subscribe", "claim your", "get your",
		},
	}
}

// loadHeuristics reads a JSON override file. Lists present in the file
// replace the defaults wholesale; absent lists keep their defaults.
func loadHeuristics(path string) (heuristics, error) {
	h := defaultHeuristics()
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return h, fmt.Errorf("reading heuristics file: %w", err)
	}
	var override heuristics
	if err := json.Unmarshal(data, &override); err != nil {
		return h, fmt.Errorf("parsing heuristics file: %w", err)
	}
	if override.TrackingPrefixes != nil {
		h.TrackingPrefixes = override.TrackingPrefixes
	}
	if override.TrackingParams != nil {
		h.TrackingParams = override.TrackingParams
	}
	if override.TwoLevelTLDs != nil {
		h.TwoLevelTLDs = override.TwoLevelTLDs
	}
	if override.CTAPhrases != nil {
		h.CTAPhrases = override.CTAPhrases
	}
	return h, nil
}

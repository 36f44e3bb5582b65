package main

import (
	"regexp"
	"strings"
)

// Output modes for the classifier.
const (
	modeDrop = "drop" // sponsored items removed
	modeMark = "mark" // sponsored items kept, flagged
	modeRaw  = "raw"  // classifier bypassed entirely
)

func validMode(m string) bool {
	return m == modeDrop || m == modeMark || m == modeRaw
}

var (
	sponsorParenRe   = regexp.MustCompile(`(?i)\(\s*sponsor\s*\)`)
	sponsorSectionRe = regexp.MustCompile(`(?i)\b(sponsor|sponsored|advert(isement)?|ad)\b`)
)

// classifier marks sponsored content inside feed sections. It combines
// several independent signals because no single one is reliable: explicit
// markers, seed URLs sniffed from the live page, domain/brand/CTA
// matching around seeds, structural head clusters, and URL duplication.
type classifier struct {
	h heuristics
}

func newClassifier(h heuristics) *classifier {
	return &classifier{h: h}
}

// filterSections applies sponsor classification to every section and
// returns the filtered result. In drop mode, sections whose own title
// signals sponsorship are removed wholesale and sponsored items are
// stripped from the rest; in mark mode everything is kept and flagged.
// Sections emptied by dropping are still returned.
func (c *classifier) filterSections(sections []newsSection, sniffedSeeds []string, drop bool) []newsSection {
	out := make([]newsSection, 0, len(sections))
	for _, section := range sections {
		if drop && section.Title != "" && sponsorSectionRe.MatchString(section.Title) {
			continue
		}

		c.markSponsorBlocks(&section, sniffedSeeds)

		if drop {
			kept := section.Items[:0]
			for _, it := range section.Items {
				if !it.Sponsored {
					kept = append(kept, it)
				}
			}
			section.Items = kept
		}
		out = append(out, section)
	}
	return out
}

// markSponsorBlocks runs the per-section state machine:
//
//	pass 1: seed discovery from explicit markers and sniffed URLs
//	pass 2: tail extension around each seed (domain / brand / CTA)
//	fallback: leading same-domain cluster when no seed was found
//	always: duplicate normalized URLs marked everywhere
func (c *classifier) markSponsorBlocks(section *newsSection, sniffedSeeds []string) {
	items := section.Items
	n := len(items)
	if n == 0 {
		return
	}

	var seedIdx []int

	// Explicit markers: a "(Sponsor)" parenthetical or an upstream flag.
	for i := range items {
		if sponsorParenRe.MatchString(items[i].Title) || items[i].explicitSponsor {
			items[i].Sponsored = true
			seedIdx = append(seedIdx, i)
		}
	}

	// Seeds sniffed from the live page, matched on normalized URLs.
	if len(sniffedSeeds) > 0 {
		seedSet := make(map[string]bool, len(sniffedSeeds))
		for _, u := range sniffedSeeds {
			seedSet[normalizeURL(u, c.h)] = true
		}
		for i := range items {
			u := normalizeURL(items[i].URL, c.h)
			if u != "" && seedSet[u] {
				if !items[i].Sponsored {
					items[i].Sponsored = true
					seedIdx = append(seedIdx, i)
				}
			}
		}
	}

	if len(seedIdx) > 0 {
		for _, s := range seedIdx {
			c.extendSeed(items, s)
		}
	} else {
		c.markHeadCluster(items)
	}

	// Duplicates of the same normalized URL are sponsored repeats: the
	// first occurrence is kept, every later one marked.
	seen := make(map[string]bool, n)
	for i := range items {
		nurl := normalizeURL(items[i].URL, c.h)
		if nurl == "" {
			continue
		}
		if seen[nurl] {
			items[i].Sponsored = true
		} else {
			seen[nurl] = true
		}
	}
}

// extendSeed marks items following a seed that look like part of the same
// sponsored block: same registrable domain, the seed's brand named in the
// title, or advertising call-to-action copy. A seed at the head of the
// section always claims its immediate follower, but with no other signal
// the extension stops right there. The first item matching nothing ends
// the scan.
func (c *classifier) extendSeed(items []newsItem, s int) {
	seedReg := registrableDomain(items[s].URL, c.h)
	seedBrand := brandToken(seedReg)

	var brandRe *regexp.Regexp
	if seedBrand != "" {
		brandRe = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(seedBrand) + `\b`)
	}

	budget := 5
	for i := s + 1; i < len(items) && budget > 0; i++ {
		budget--
		itReg := registrableDomain(items[i].URL, c.h)

		matchReg := seedReg != "" && itReg != "" && itReg == seedReg
		matchBrand := brandRe != nil && brandRe.MatchString(items[i].Title)
		matchCTA := c.looksLikeCTA(items[i].Title)
		forceNextWhenHead := s == 0 && i == s+1

		if !(matchReg || matchBrand || matchCTA || forceNextWhenHead) {
			break
		}
		items[i].Sponsored = true
		if forceNextWhenHead && !(matchReg || matchBrand || matchCTA) {
			break
		}
	}
}

// markHeadCluster handles sponsor blocks with no marker and no sniffable
// seed: a section opening with two or more consecutive items on the same
// registrable domain is presumed to be a sponsor header run.
func (c *classifier) markHeadCluster(items []newsItem) {
	if len(items) < 2 {
		return
	}
	headReg := registrableDomain(items[0].URL, c.h)
	if headReg == "" {
		return
	}
	run := 1
	for j := 1; j < len(items); j++ {
		if registrableDomain(items[j].URL, c.h) != headReg {
			break
		}
		run++
	}
	if run >= 2 {
		for k := 0; k < run; k++ {
			items[k].Sponsored = true
		}
	}
}

func (c *classifier) looksLikeCTA(title string) bool {
	t := strings.ToLower(title)
	for _, phrase := range c.h.CTAPhrases {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}

package usecase

import (
	"net/url"
	"regexp"
	"strings"

	"MarketScanner/internal/canonical"
)

var (
	titleSeparators = regexp.MustCompile(`\s+[-|–—:·]\s+`)
	versusSplit     = regexp.MustCompile(`(?i)\s+(?:vs\.?|versus)\s+`)
	trailingPhrase  = regexp.MustCompile(`(?i)\s+(?:pricing|prices|plans?(?:\s*&\s*pricing)?|guide|review|reviews|features|overview|homepage|home|official site|blog|docs|documentation|help center|vs\.?)$`)
)

// brandStopPhrases mark listicles and comparison pages, never vendor names.
var brandStopPhrases = []string{
	" top 10 ", " top 5 ", " top ten ", " best ", " alternatives ", " alternative to ", " vs ", " vs. ",
	" roundup ", " comparison ", " compared ", " review of ", " list of ", " how to ", " what is ",
}

// genericTitleWords are page names that appear as title segments.
var genericTitleWords = map[string]struct{}{
	"pricing": {}, "plans": {}, "home": {}, "features": {}, "blog": {}, "docs": {}, "login": {},
	"sign in": {}, "about": {}, "about us": {}, "product": {}, "products": {}, "contact": {},
}

var aggregatorDomains = map[string]struct{}{
	"medium.com": {}, "g2.com": {}, "capterra.com": {}, "getapp.com": {}, "trustradius.com": {},
	"softwareadvice.com": {}, "producthunt.com": {}, "reddit.com": {}, "quora.com": {},
	"linkedin.com": {}, "twitter.com": {}, "x.com": {}, "facebook.com": {}, "instagram.com": {},
	"youtube.com": {}, "tiktok.com": {}, "wikipedia.org": {}, "forbes.com": {}, "techcrunch.com": {},
	"substack.com": {}, "news.google.com": {}, "github.com": {}, "crunchbase.com": {},
}

var nonBrandLabels = map[string]struct{}{
	"www": {}, "blog": {}, "docs": {}, "doc": {}, "support": {}, "help": {}, "app": {},
	"www2": {}, "m": {}, "en": {}, "status": {}, "community": {}, "developer": {}, "developers": {},
	"api": {}, "info": {}, "go": {}, "get": {}, "try": {},
}

var secondLevelSuffixes = map[string]struct{}{
	"co.uk": {}, "org.uk": {}, "ac.uk": {}, "com.au": {}, "net.au": {}, "co.nz": {}, "co.jp": {},
	"co.in": {}, "com.br": {}, "com.mx": {}, "co.za": {}, "com.sg": {}, "com.tr": {}, "co.kr": {},
}

const maxBrandWords = 4

// resolveBrand derives a competitor name and website from a page, preferring
// the title. ok is false for aggregator domains and listicle-style candidates.
func resolveBrand(title, rawURL string) (name, website string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(u.Hostname())
	registrable := registrableDomain(host)
	if isAggregator(host, registrable) {
		return "", "", false
	}
	website = u.Scheme + "://" + host

	if candidate := brandFromTitle(title); acceptableBrand(candidate) {
		return candidate, website, true
	}
	if candidate := brandFromDomain(host); acceptableBrand(candidate) {
		return candidate, website, true
	}
	return "", "", false
}

func brandFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	for _, part := range titleSeparators.Split(title, -1) {
		candidate := trimTitleSegment(part)
		if _, generic := genericTitleWords[strings.ToLower(candidate)]; generic {
			continue
		}
		if acceptableBrand(candidate) {
			return candidate
		}
	}
	return ""
}

func trimTitleSegment(part string) string {
	part = strings.TrimSpace(part)
	if pieces := versusSplit.Split(part, 2); len(pieces) > 0 {
		part = strings.TrimSpace(pieces[0])
	}
	for {
		trimmed := strings.TrimSpace(trailingPhrase.ReplaceAllString(part, ""))
		if trimmed == part || trimmed == "" {
			return part
		}
		part = trimmed
	}
}

func brandFromDomain(host string) string {
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) < 2 {
		return ""
	}
	suffixLen := 1
	if len(labels) >= 3 {
		if _, ok := secondLevelSuffixes[strings.Join(labels[len(labels)-2:], ".")]; ok {
			suffixLen = 2
		}
	}
	labels = labels[:len(labels)-suffixLen]

	// The label right before the public suffix names the brand; leading
	// service labels (blog., docs.) are skipped.
	for i := len(labels) - 1; i >= 0; i-- {
		if _, skip := nonBrandLabels[labels[i]]; skip {
			continue
		}
		return canonical.Canonicalize(labels[i])
	}
	return ""
}

func acceptableBrand(candidate string) bool {
	if candidate == "" || len([]rune(candidate)) < 2 {
		return false
	}
	if len(strings.Fields(candidate)) > maxBrandWords {
		return false
	}
	lower := " " + strings.Join(strings.Fields(strings.ToLower(candidate)), " ") + " "
	for _, stop := range brandStopPhrases {
		if strings.Contains(lower, stop) {
			return false
		}
	}
	return true
}

func registrableDomain(host string) string {
	host = strings.TrimPrefix(host, "www.")
	labels := strings.Split(host, ".")
	n := 2
	if len(labels) >= 3 {
		if _, ok := secondLevelSuffixes[strings.Join(labels[len(labels)-2:], ".")]; ok {
			n = 3
		}
	}
	if len(labels) <= n {
		return host
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

func isAggregator(host, registrable string) bool {
	if _, ok := aggregatorDomains[strings.TrimPrefix(host, "www.")]; ok {
		return true
	}
	_, ok := aggregatorDomains[registrable]
	return ok
}

package canonical

import (
	"strings"
	"unicode"
)

var capabilityStopWords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "a": {}, "an": {}, "&": {}, "with": {}, "for": {},
}

// singularExceptions are plural-looking tokens kept verbatim.
var singularExceptions = map[string]struct{}{
	"analytics": {}, "access": {}, "business": {}, "status": {}, "sales": {}, "news": {},
	"series": {}, "kubernetes": {}, "windows": {}, "macos": {}, "saas": {}, "paas": {},
	"iaas": {}, "https": {}, "ops": {}, "devops": {}, "aws": {}, "payments": {}, "jobs": {},
}

// CanonicalCapability returns the display name and normalized key of a raw
// capability mention. Synonym groups win; short all-caps mentions are kept as
// acronyms; everything else falls back to Canonicalize.
func CanonicalCapability(raw string) (name, normalized string) {
	raw = strings.TrimSpace(raw)
	key := capabilityKey(raw)
	if key == "" {
		return "", ""
	}

	if display, ok := synonymTable[key]; ok {
		return display, Normalize(display)
	}

	if isAcronym(raw) {
		return raw, Normalize(raw)
	}

	return Canonicalize(raw), key
}

// CapabilityKey exposes the stop-word-stripped, singularized lookup key.
func CapabilityKey(raw string) string {
	return capabilityKey(raw)
}

func capabilityKey(raw string) string {
	tokens := strings.Fields(Normalize(raw))
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := capabilityStopWords[tok]; stop {
			continue
		}
		kept = append(kept, singularize(tok))
	}
	return strings.Join(kept, " ")
}

func singularize(tok string) string {
	if len(tok) <= 3 {
		return tok
	}
	if _, ok := singularExceptions[tok]; ok {
		return tok
	}
	switch {
	case strings.HasSuffix(tok, "ies"):
		return strings.TrimSuffix(tok, "ies") + "y"
	case strings.HasSuffix(tok, "xes"), strings.HasSuffix(tok, "ses"),
		strings.HasSuffix(tok, "ches"), strings.HasSuffix(tok, "shes"):
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "ss"):
		return tok
	case strings.HasSuffix(tok, "s"):
		return tok[:len(tok)-1]
	default:
		return tok
	}
}

func isAcronym(raw string) bool {
	if raw == "" || len([]rune(raw)) > 6 {
		return false
	}
	hasLetter := false
	for _, r := range raw {
		switch {
		case unicode.IsUpper(r):
			hasLetter = true
		case unicode.IsDigit(r):
		default:
			return false
		}
	}
	return hasLetter
}

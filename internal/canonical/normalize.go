// Package canonical collapses lexical variants of feature and capability names
// into stable lookup keys and display forms.
package canonical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases raw, strips diacritics, replaces every rune other than
// letters, digits and '+' with a space, and collapses whitespace.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	// transform.Chain keeps state, so it is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(raw))
	if err != nil {
		folded = strings.ToLower(raw)
	}

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)

	return strings.Join(strings.Fields(mapped), " ")
}

// Canonicalize title-cases each token of Normalize(raw).
func Canonicalize(raw string) string {
	tokens := strings.Fields(Normalize(raw))
	for i, tok := range tokens {
		tokens[i] = titleToken(tok)
	}
	return strings.Join(tokens, " ")
}

func titleToken(tok string) string {
	r := []rune(tok)
	if len(r) == 0 {
		return tok
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Package llmjson decodes JSON that language models wrap in prose or code fences.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFence     = regexp.MustCompile("(?s)```(?:json|javascript|js)?\\s*\\n?(.*?)\\n?```")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ErrEmpty is returned for blank model output.
var ErrEmpty = errors.New("empty model output")

// Parse tries, in order: the raw text, the first fenced block, the text with
// trailing commas removed, and finally the outermost {...} or [...] span.
func Parse[T any](raw string) (T, error) {
	var zero T

	text := strings.TrimSpace(raw)
	if text == "" {
		return zero, ErrEmpty
	}

	candidates := []string{text}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	for _, c := range candidates {
		candidates = append(candidates, trailingComma.ReplaceAllString(c, "$1"))
	}
	for _, c := range candidates {
		if span := outermost(c); span != "" && span != c {
			candidates = append(candidates, span)
		}
	}

	var lastErr error
	for _, c := range candidates {
		var v T
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}
	return zero, fmt.Errorf("parse model json: %w", lastErr)
}

// outermost returns the widest span starting at the first '{' or '[' and ending
// at its matching closer type.
func outermost(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

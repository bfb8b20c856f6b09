// Package recommend turns free-form LLM text into enriched, variety-aware
// movie recommendations.
package recommend

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"

	"cinemood/models"
)

const maxTitleLen = 80

// placeholderFragments disqualify a candidate title outright: they are what
// models emit when they have nothing real to say.
var placeholderFragments = []string{
	"movie title", "title here", "insert", "example", "placeholder",
	"untitled", "unknown", "n/a", "tbd", "your favorite",
}

const disallowedTitleChars = "<>{}|\\`"

var (
	fenceOpenRe = regexp.MustCompile("^```[a-zA-Z0-9]*\\s*")
	bulletRe    = regexp.MustCompile(`^(?:\d+[.)]\s+|[-*•]\s+)`)
	yearTailRe  = regexp.MustCompile(`\((\d{4})\)\s*$`)
	letterRe    = regexp.MustCompile(`[a-zA-Z]`)
)

// ParseCandidates extracts a summary reply and an ordered candidate list from
// raw model text. JSON is preferred (tolerating markdown fences and a common
// bad apostrophe escape); bullet-line parsing is the fallback. Zero candidates
// is a valid outcome, not an error.
func ParseCandidates(text string) (string, []models.Candidate) {
	cleaned := stripFences(text)

	if blob, ok := extractJSONBlob(cleaned); ok {
		reply, cands := fromStructured(blob)
		if len(cands) > 0 {
			return reply, cands
		}
	}
	return "", fromLines(cleaned)
}

// stripFences removes a leading ```lang marker and a trailing ``` if present.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = fenceOpenRe.ReplaceAllString(s, "")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// extractJSONBlob finds the first balanced JSON object or array in text and
// returns its decoded value. Position 0 is tried first when the text starts
// with an opener; parse failures retry once with the common `\'` artifact
// replaced by a literal apostrophe.
func extractJSONBlob(text string) (any, bool) {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '{' && c != '[' {
			continue
		}
		sub, ok := balancedFrom(text, i)
		if !ok {
			continue
		}
		if v, ok := decodeLenient(sub); ok {
			return v, true
		}
	}
	return nil, false
}

// balancedFrom scans forward from an opening brace or bracket, tracking
// nesting depth and skipping string contents, and returns the balanced
// substring.
func balancedFrom(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeLenient(sub string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(sub), &v); err == nil {
		return v, true
	}
	repaired := strings.ReplaceAll(sub, `\'`, `'`)
	if err := json.Unmarshal([]byte(repaired), &v); err == nil {
		return v, true
	}
	return nil, false
}

// fromStructured accepts a mapping with a "picks" or "movies" list, or a bare
// list. Entries without a usable title are dropped silently.
func fromStructured(blob any) (string, []models.Candidate) {
	var reply string
	var entries []any

	switch v := blob.(type) {
	case map[string]any:
		for _, field := range []string{"reply", "summary", "message"} {
			if s, ok := v[field].(string); ok && s != "" {
				reply = s
				break
			}
		}
		for _, field := range []string{"picks", "movies"} {
			if list, ok := v[field].([]any); ok {
				entries = list
				break
			}
		}
	case []any:
		entries = v
	}

	var cands []models.Candidate
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		title, _ := m["title"].(string)
		title = strings.TrimSpace(title)
		if !PlausibleTitle(title) {
			continue
		}
		cand := models.Candidate{Title: title}
		if year := coerceYear(m["year"]); year != nil {
			cand.Year = year
		}
		if reason, ok := m["reason"].(string); ok {
			cand.Reason = strings.TrimSpace(reason)
		}
		cands = append(cands, cand)
	}
	return reply, cands
}

// coerceYear accepts a JSON number or a numeric string.
func coerceYear(v any) *int {
	switch y := v.(type) {
	case float64:
		year := int(y)
		return &year
	case string:
		if year, err := strconv.Atoi(strings.TrimSpace(y)); err == nil {
			return &year
		}
	}
	return nil
}

// fromLines parses bullet-style text: one candidate per trimmed non-empty
// line, with an optional ordinal/bullet prefix, an optional trailing
// parenthesized 4-digit year, and any dash/colon explanation tail discarded.
func fromLines(text string) []models.Candidate {
	var cands []models.Candidate
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = bulletRe.ReplaceAllString(line, "")

		var year *int
		if m := yearTailRe.FindStringSubmatch(line); m != nil {
			if y, err := strconv.Atoi(m[1]); err == nil {
				year = &y
			}
			line = strings.TrimSpace(line[:len(line)-len(m[0])])
		} else if i := explanationIndex(line); i > 0 {
			line = strings.TrimSpace(line[:i])
			if m := yearTailRe.FindStringSubmatch(line); m != nil {
				if y, err := strconv.Atoi(m[1]); err == nil {
					year = &y
				}
				line = strings.TrimSpace(line[:len(line)-len(m[0])])
			}
		}

		title := strings.Trim(line, `"'“” `)
		if !PlausibleTitle(title) {
			continue
		}
		cands = append(cands, models.Candidate{Title: title, Year: year})
	}
	return cands
}

// explanationIndex finds the start of a trailing explanation clause
// (" - reason" or ": reason"). Separators need surrounding context so titles
// like "Spider-Man: Homecoming" survive only when no spaced separator exists.
func explanationIndex(line string) int {
	for _, sep := range []string{" - ", " – ", " — ", ": "} {
		if i := strings.Index(line, sep); i > 0 {
			return i
		}
	}
	return -1
}

// PlausibleTitle rejects empty, oversized, letterless, or placeholder-like
// strings before any search is attempted.
func PlausibleTitle(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLen {
		return false
	}
	if strings.ContainsAny(title, disallowedTitleChars) {
		return false
	}
	folded := strings.ToLower(unidecode.Unidecode(title))
	if !letterRe.MatchString(folded) {
		return false
	}
	for _, frag := range placeholderFragments {
		if strings.Contains(folded, frag) {
			return false
		}
	}
	return true
}

// Package mood maps free-text mood input to genre rules and runs the
// multi-strategy discovery fallback against the metadata service.
package mood

import (
	"errors"
	"fmt"
	"strings"
)

// TMDB genre ids used by the rule table.
const (
	genreAction    = 28
	genreAdventure = 12
	genreAnimation = 16
	genreComedy    = 35
	genreDrama     = 18
	genreFamily    = 10751
	genreFantasy   = 14
	genreHorror    = 27
	genreMystery   = 9648
	genreRomance   = 10749
	genreSciFi     = 878
	genreThriller  = 53
)

var (
	// ErrMissingMood is returned for empty input, ErrUnknownMood when input
	// survives alias resolution but matches no canonical mood.
	ErrMissingMood = errors.New("missing mood")
	ErrUnknownMood = errors.New("unknown mood")
)

// Rule is an immutable mood-to-genre mapping loaded at process start.
type Rule struct {
	Canonical      string
	BoostGenres    []int64
	SuppressGenres []int64
}

// The ten canonical moods, keyed by canonical name.
var rules = map[string]Rule{
	"happy":     {Canonical: "happy", BoostGenres: []int64{genreComedy, genreFamily, genreRomance}, SuppressGenres: []int64{genreHorror}},
	"family":    {Canonical: "family", BoostGenres: []int64{genreFamily, genreAnimation, genreComedy}},
	"comedy":    {Canonical: "comedy", BoostGenres: []int64{genreComedy}},
	"action":    {Canonical: "action", BoostGenres: []int64{genreAction, genreThriller}},
	"adventure": {Canonical: "adventure", BoostGenres: []int64{genreAdventure, genreFantasy, genreAction}},
	"drama":     {Canonical: "drama", BoostGenres: []int64{genreDrama}},
	"thriller":  {Canonical: "thriller", BoostGenres: []int64{genreThriller, genreMystery}},
	"horror":    {Canonical: "horror", BoostGenres: []int64{genreHorror, genreThriller}},
	"sci-fi":    {Canonical: "sci-fi", BoostGenres: []int64{genreSciFi, genreAdventure, genreAction}},
	"animated":  {Canonical: "animated", BoostGenres: []int64{genreAnimation, genreFamily}},
}

// aliases map common free-text input to canonical names.
var aliases = map[string]string{
	"sci fi":    "sci-fi",
	"scifi":     "sci-fi",
	"animation": "animated",
	"kids":      "family",
	"funny":     "comedy",
	"exciting":  "action",
	"spooky":    "horror",
	"scary":     "horror",
}

// Supported returns the canonical moods in fixed display order for hints.
func Supported() []string {
	return []string{"happy", "family", "comedy", "action", "adventure", "drama", "thriller", "horror", "sci-fi", "animated"}
}

// Resolve maps mood input to its Rule. Lookup is case-insensitive, trims
// whitespace, and applies aliases before matching canonical names.
func Resolve(input string) (Rule, error) {
	m := strings.ToLower(strings.TrimSpace(input))
	if m == "" {
		return Rule{}, ErrMissingMood
	}
	if canon, ok := aliases[m]; ok {
		m = canon
	}
	rule, ok := rules[m]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownMood, input)
	}
	return rule, nil
}

// joinGenres renders genre ids as a TMDB with_genres value.
func joinGenres(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ",")
}

package recommend

import (
	"strings"

	"github.com/mozillazg/go-unidecode"

	"cinemood/models"
)

// Profile describes one topic the pipeline can specialize for. Detection is a
// keyword heuristic over the user's text; retention keeps pool items that
// carry the topic's genre tag or whose title/overview matches a hint.
type Profile struct {
	Name     string
	Keywords []string
	GenreID  int64
	Hints    []string
	// Seeds are searched verbatim as a last resort when every other stage
	// yields nothing on-topic.
	Seeds []string
}

// musicProfile covers hip-hop and music requests, the one profile the
// original behavior ships with. Additional profiles register as data.
var musicProfile = Profile{
	Name: "music",
	Keywords: []string{
		"hip-hop", "hip hop", "hiphop", "rap", "rapper", "music", "musician",
		"dj", "band", "singer", "concert",
	},
	GenreID: 10402,
	Hints: []string{
		"rap", "hip-hop", "hip hop", "music", "singer", "band", "dj",
		"concert", "musician", "mc ",
	},
	Seeds: []string{
		"8 Mile",
		"Straight Outta Compton",
		"Notorious",
		"Hustle & Flow",
		"Get Rich or Die Tryin'",
		"All Eyez on Me",
	},
}

// DefaultProfiles returns the built-in topic set.
func DefaultProfiles() []Profile {
	return []Profile{musicProfile}
}

// DetectTopic returns the first profile whose keywords match text, or nil.
func DetectTopic(profiles []Profile, text string) *Profile {
	folded := foldText(text)
	if folded == "" {
		return nil
	}
	for i := range profiles {
		for _, kw := range profiles[i].Keywords {
			if strings.Contains(folded, kw) {
				return &profiles[i]
			}
		}
	}
	return nil
}

// Allows reports whether a movie stays in the pool under this profile: it
// must carry the topic genre or match a hint in its title or overview.
func (p *Profile) Allows(m models.Movie) bool {
	for _, id := range m.GenreIDs {
		if id == p.GenreID {
			return true
		}
	}
	text := foldText(m.Title + " " + m.Overview + " " + strings.Join(m.Genres, " "))
	for _, hint := range p.Hints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}

func foldText(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

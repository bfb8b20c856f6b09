package mood

import (
	"context"
	"errors"
	"log"

	"cinemood/models"
	"cinemood/services/metadata"
)

// Discoverer is the slice of the metadata service the resolver needs.
type Discoverer interface {
	Discover(ctx context.Context, q metadata.DiscoverQuery) (*models.PagedMovies, error)
}

// Query is one mood-discovery request.
type Query struct {
	Rule     Rule
	Region   string
	Language string
	Page     int
}

// strategies builds the ordered parameter sets of decreasing specificity:
// region-and-vote-constrained, then without the region constraint, then
// without the vote floor.
func strategies(q Query) []metadata.DiscoverQuery {
	genres := joinGenres(q.Rule.BoostGenres)
	return []metadata.DiscoverQuery{
		{WithGenres: genres, Page: q.Page, Language: q.Language, Region: q.Region, WatchRegion: q.Region, MinVoteCount: 50},
		{WithGenres: genres, Page: q.Page, Language: q.Language, MinVoteCount: 50},
		{WithGenres: genres, Page: q.Page, Language: q.Language},
	}
}

// Discover tries each strategy in order until one yields at least one
// poster-bearing result. Upstream 5xx failures are fatal and abort the
// sequence; other failures and empty pages advance to the next strategy. When
// every strategy fails softly, strategy one runs once more and its outcome,
// empty or not, is returned.
func Discover(ctx context.Context, d Discoverer, q Query) (*models.MoodDiscoverResponse, error) {
	attempts := strategies(q)

	for i, attempt := range attempts {
		page, err := d.Discover(ctx, attempt)
		if err != nil {
			if errors.Is(err, metadata.ErrUpstream) {
				return nil, err
			}
			log.Printf("[mood] discover strategy %d failed mood=%s err=%v; trying next", i+1, q.Rule.Canonical, err)
			continue
		}
		if len(page.Results) == 0 {
			continue
		}
		return respond(q, page), nil
	}

	// Final attempt with the strictest parameters; whatever it yields wins.
	page, err := d.Discover(ctx, attempts[0])
	if err != nil {
		return nil, err
	}
	return respond(q, page), nil
}

func respond(q Query, page *models.PagedMovies) *models.MoodDiscoverResponse {
	return &models.MoodDiscoverResponse{
		Mood:        q.Rule.Canonical,
		Region:      q.Region,
		PagedMovies: *page,
	}
}

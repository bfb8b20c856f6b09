package mood

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cinemood/models"
	"cinemood/services/metadata"
)

func TestResolveCanonicalAndAliases(t *testing.T) {
	for _, name := range Supported() {
		rule, err := Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if rule.Canonical != name {
			t.Fatalf("Resolve(%q) = %q", name, rule.Canonical)
		}
	}

	aliasCases := map[string]string{
		"scary":     "horror",
		"spooky":    "horror",
		"SCI FI":    "sci-fi",
		"  Funny  ": "comedy",
		"kids":      "family",
		"animation": "animated",
		"exciting":  "action",
	}
	for input, want := range aliasCases {
		rule, err := Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", input, err)
		}
		if rule.Canonical != want {
			t.Fatalf("Resolve(%q) = %q, want %q", input, rule.Canonical, want)
		}
		canonical, _ := Resolve(want)
		if fmt.Sprint(rule.BoostGenres) != fmt.Sprint(canonical.BoostGenres) {
			t.Fatalf("alias %q must resolve to the same rule as %q", input, want)
		}
	}
}

func TestResolveScaryHasHorrorThrillerBoost(t *testing.T) {
	rule, err := Resolve("scary")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(rule.BoostGenres) != 2 || rule.BoostGenres[0] != genreHorror || rule.BoostGenres[1] != genreThriller {
		t.Fatalf("unexpected boost genres: %v", rule.BoostGenres)
	}
}

func TestResolveErrors(t *testing.T) {
	if _, err := Resolve("grumpy"); !errors.Is(err, ErrUnknownMood) {
		t.Fatalf("expected ErrUnknownMood, got %v", err)
	}
	if _, err := Resolve("   "); !errors.Is(err, ErrMissingMood) {
		t.Fatalf("expected ErrMissingMood, got %v", err)
	}
}

type fakeDiscoverer struct {
	responses []func(metadata.DiscoverQuery) (*models.PagedMovies, error)
	calls     []metadata.DiscoverQuery
}

func (f *fakeDiscoverer) Discover(_ context.Context, q metadata.DiscoverQuery) (*models.PagedMovies, error) {
	f.calls = append(f.calls, q)
	next := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return next(q)
}

func moviePage(ids ...int64) *models.PagedMovies {
	page := &models.PagedMovies{Page: 1, TotalPages: 1, TotalResults: len(ids)}
	for _, id := range ids {
		page.Results = append(page.Results, models.Movie{ID: id, Title: "t", PosterPath: "/p.png"})
	}
	return page
}

func okPage(ids ...int64) func(metadata.DiscoverQuery) (*models.PagedMovies, error) {
	return func(metadata.DiscoverQuery) (*models.PagedMovies, error) { return moviePage(ids...), nil }
}

func failWith(err error) func(metadata.DiscoverQuery) (*models.PagedMovies, error) {
	return func(metadata.DiscoverQuery) (*models.PagedMovies, error) { return nil, err }
}

func testQuery() Query {
	rule, _ := Resolve("horror")
	return Query{Rule: rule, Region: "FR", Language: "fr-FR", Page: 2}
}

func TestDiscoverStopsAtFirstWinningStrategy(t *testing.T) {
	d := &fakeDiscoverer{responses: []func(metadata.DiscoverQuery) (*models.PagedMovies, error){okPage(1)}}

	resp, err := Discover(context.Background(), d, testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(d.calls) != 1 {
		t.Fatalf("strategy 2 must not run after strategy 1 succeeds, got %d calls", len(d.calls))
	}
	if resp.Mood != "horror" || resp.Region != "FR" {
		t.Fatalf("unexpected response meta: %+v", resp)
	}
	first := d.calls[0]
	if first.Region != "FR" || first.WatchRegion != "FR" || first.MinVoteCount != 50 {
		t.Fatalf("strategy 1 must carry region and vote constraints: %+v", first)
	}
}

func TestDiscoverLoosensConstraintsInOrder(t *testing.T) {
	d := &fakeDiscoverer{responses: []func(metadata.DiscoverQuery) (*models.PagedMovies, error){
		okPage(), // empty: try next
		failWith(&metadata.StatusError{Code: 404}), // soft: try next
		okPage(7),
	}}

	resp, err := Discover(context.Background(), d, testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(d.calls) != 3 {
		t.Fatalf("expected 3 strategy attempts, got %d", len(d.calls))
	}
	if d.calls[1].Region != "" || d.calls[1].MinVoteCount != 50 {
		t.Fatalf("strategy 2 drops region only: %+v", d.calls[1])
	}
	if d.calls[2].Region != "" || d.calls[2].MinVoteCount != 0 {
		t.Fatalf("strategy 3 drops the vote floor: %+v", d.calls[2])
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 7 {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestDiscoverAbortsOnUpstreamFailure(t *testing.T) {
	d := &fakeDiscoverer{responses: []func(metadata.DiscoverQuery) (*models.PagedMovies, error){
		failWith(fmt.Errorf("%w: status 503", metadata.ErrUpstream)),
	}}

	_, err := Discover(context.Background(), d, testQuery())
	if !errors.Is(err, metadata.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if len(d.calls) != 1 {
		t.Fatalf("5xx must abort without further strategies, got %d calls", len(d.calls))
	}
}

func TestDiscoverReissuesStrategyOneAsLastResort(t *testing.T) {
	d := &fakeDiscoverer{responses: []func(metadata.DiscoverQuery) (*models.PagedMovies, error){
		okPage(), okPage(), okPage(), // all strategies empty
		okPage(), // final re-issue of strategy 1, still empty
	}}

	resp, err := Discover(context.Background(), d, testQuery())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(d.calls) != 4 {
		t.Fatalf("expected 3 strategies plus a final retry, got %d", len(d.calls))
	}
	last := d.calls[3]
	if last.Region != "FR" || last.MinVoteCount != 50 {
		t.Fatalf("final retry must reuse strategy 1 parameters: %+v", last)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("empty final result is returned as-is: %+v", resp.Results)
	}
}

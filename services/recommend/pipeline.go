package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"cinemood/models"
	"cinemood/services/metadata"
)

// Stage limits for one mood-analysis request.
const (
	maxResolved      = 6
	maxExpandSeeds   = 3
	maxSeedPool      = 20
	similarTopUpAt   = 12
	freshnessFloor   = 10
	maxSelected      = 10
	backfillFloor    = 5
	lastResortTarget = 5
)

var (
	// ErrNoMatch signals that every enrichment stage yielded zero usable
	// records; callers suggest rephrasing.
	ErrNoMatch = errors.New("no matching movies found")
	// ErrLLM wraps failures of the mood-analysis model call.
	ErrLLM = errors.New("llm dependency failed")
)

// moodSystemPrompt is the fixed prompt contract for the mood-analysis call.
const moodSystemPrompt = `You are a movie recommendation assistant. The user will describe a mood, ` +
	`feeling, or theme. Respond with ONLY a JSON object, no other text, shaped exactly like: ` +
	`{"reply": "one friendly sentence about the picks", "picks": [{"title": "Movie Title", "year": 1999, "reason": "short reason"}]}. ` +
	`Recommend 5 to 8 real, well-known movies that fit. Use exact release titles.`

// Metadata is the slice of the metadata service the pipeline consumes.
type Metadata interface {
	BestMatch(ctx context.Context, title string, year *int) (*models.Movie, error)
	RecommendationsFeed(ctx context.Context, id int64) ([]models.Movie, error)
	SimilarFeed(ctx context.Context, id int64) ([]models.Movie, error)
	Discover(ctx context.Context, q metadata.DiscoverQuery) (*models.PagedMovies, error)
}

// Completer is the single LLM operation the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (map[string]any, error)
}

// TextExtractor matches llm.ExtractText; injected so tests can fix the shape.
type TextExtractor func(map[string]any) string

type Pipeline struct {
	meta     Metadata
	llm      Completer
	extract  TextExtractor
	recency  *RecencyWindow
	profiles []Profile
	shuffle  func([]models.Movie)
}

func NewPipeline(meta Metadata, completer Completer, extract TextExtractor, recency *RecencyWindow) *Pipeline {
	if recency == nil {
		recency = NewRecencyWindow(0, 0)
	}
	return &Pipeline{
		meta:     meta,
		llm:      completer,
		extract:  extract,
		recency:  recency,
		profiles: DefaultProfiles(),
		shuffle: func(items []models.Movie) {
			rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		},
	}
}

// Analyze runs the full mood-analysis flow: model call, candidate parsing,
// enrichment. Model failures surface as ErrLLM; an exhausted pipeline is
// ErrNoMatch; anything unexpected inside enrichment degrades to a static
// fallback payload instead of failing the request.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*models.AnalyzeResponse, error) {
	resp, err := p.llm.Complete(ctx, moodSystemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLM, err)
	}
	reply, cands := ParseCandidates(p.extract(resp))
	topic := DetectTopic(p.profiles, text)

	selected, err := p.enrichSafe(ctx, cands, topic)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, err
		}
		traceID := uuid.NewString()
		log.Printf("[recommend] pipeline failed trace_id=%s err=%v; serving static fallback", traceID, err)
		return fallbackResponse(reply), nil
	}

	ids := make([]int64, 0, len(selected))
	for _, m := range selected {
		ids = append(ids, m.ID)
	}
	p.recency.Record(ids...)

	return &models.AnalyzeResponse{Reply: reply, Results: selected}, nil
}

// enrichSafe converts panics inside the enrichment stages into errors so one
// defective request can never take the process down.
func (p *Pipeline) enrichSafe(ctx context.Context, cands []models.Candidate, topic *Profile) (selected []models.Movie, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panic: %v", r)
		}
	}()
	return p.enrich(ctx, cands, topic)
}

func (p *Pipeline) enrich(ctx context.Context, cands []models.Candidate, topic *Profile) ([]models.Movie, error) {
	// Resolve: map textual candidates to canonical poster-bearing records.
	resolved, err := p.resolve(ctx, cands, topic)
	if err != nil {
		return nil, err
	}

	// Expand: grow the pool from the recommendation feeds of the first seeds.
	moviePool := p.expand(ctx, resolved, topic)

	// Freshness: drop recently served items unless that starves the pool.
	fresh := make([]models.Movie, 0, len(moviePool))
	for _, m := range moviePool {
		if !p.recency.Seen(m.ID) {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) >= freshnessFloor {
		moviePool = fresh
	}

	p.shuffle(moviePool)

	seen := make(map[int64]bool)
	selected := make([]models.Movie, 0, maxSelected)
	appendMovies(&selected, seen, moviePool, maxSelected)

	// Backfill from generic popularity-sorted discovery.
	if len(selected) < backfillFloor {
		q := metadata.DiscoverQuery{Page: 1}
		if topic != nil {
			q.WithGenres = fmt.Sprintf("%d", topic.GenreID)
		}
		page, err := p.meta.Discover(ctx, q)
		if err != nil {
			log.Printf("[recommend] backfill discover failed: %v", err)
		} else {
			extra := append([]models.Movie(nil), page.Results...)
			p.shuffle(extra)
			appendMovies(&selected, seen, extra, maxSelected)
		}
	}

	// Last resort: strict searches for the topic's static seed titles.
	if topic != nil && len(selected) == 0 {
		for _, title := range topic.Seeds {
			m, err := p.meta.BestMatch(ctx, title, nil)
			if err != nil {
				log.Printf("[recommend] last-resort search %q failed: %v", title, err)
				continue
			}
			if m == nil || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			selected = append(selected, *m)
			if len(selected) >= lastResortTarget {
				break
			}
		}
	}

	if len(selected) == 0 {
		return nil, ErrNoMatch
	}
	return selected, nil
}

// resolve searches each plausible candidate, in order, until six distinct
// poster-bearing matches are accepted.
func (p *Pipeline) resolve(ctx context.Context, cands []models.Candidate, topic *Profile) ([]models.Movie, error) {
	seen := make(map[int64]bool)
	resolved := make([]models.Movie, 0, maxResolved)
	for _, cand := range cands {
		if len(resolved) >= maxResolved {
			break
		}
		if !PlausibleTitle(cand.Title) {
			continue
		}
		m, err := p.meta.BestMatch(ctx, cand.Title, cand.Year)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", cand.Title, err)
		}
		if m == nil || m.ID == 0 || m.PosterPath == "" || seen[m.ID] {
			continue
		}
		if topic != nil && !topic.Allows(*m) {
			continue
		}
		seen[m.ID] = true
		resolved = append(resolved, *m)
	}
	return resolved, nil
}

// expand fetches a bounded pool per seed (first three resolved matches),
// concurrently, topping recommendations up with the similar feed when thin.
// Feed failures are soft: the seed just contributes nothing.
func (p *Pipeline) expand(ctx context.Context, resolved []models.Movie, topic *Profile) []models.Movie {
	seeds := resolved
	if len(seeds) > maxExpandSeeds {
		seeds = seeds[:maxExpandSeeds]
	}

	pools := make([][]models.Movie, len(seeds))
	pl := pool.New().WithMaxGoroutines(maxExpandSeeds)
	for i, seed := range seeds {
		pl.Go(func() {
			pools[i] = p.expandSeed(ctx, seed.ID)
		})
	}
	pl.Wait()

	seen := make(map[int64]bool)
	merged := make([]models.Movie, 0, len(resolved)+len(seeds)*maxSeedPool)
	add := func(items []models.Movie) {
		for _, m := range items {
			if m.ID == 0 || m.PosterPath == "" || seen[m.ID] {
				continue
			}
			if topic != nil && !topic.Allows(m) {
				continue
			}
			seen[m.ID] = true
			merged = append(merged, m)
		}
	}
	add(resolved)
	for _, seedPool := range pools {
		add(seedPool)
	}
	return merged
}

func (p *Pipeline) expandSeed(ctx context.Context, id int64) []models.Movie {
	items, err := p.meta.RecommendationsFeed(ctx, id)
	if err != nil {
		log.Printf("[recommend] recommendations feed for %d failed: %v", id, err)
		items = nil
	}
	if len(items) < similarTopUpAt {
		similar, err := p.meta.SimilarFeed(ctx, id)
		if err != nil {
			log.Printf("[recommend] similar feed for %d failed: %v", id, err)
		} else {
			items = append(items, similar...)
		}
	}
	if len(items) > maxSeedPool {
		items = items[:maxSeedPool]
	}
	return items
}

func appendMovies(selected *[]models.Movie, seen map[int64]bool, items []models.Movie, limit int) {
	for _, m := range items {
		if len(*selected) >= limit {
			return
		}
		if m.ID == 0 || m.Title == "" || m.PosterPath == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		*selected = append(*selected, m)
	}
}

// fallbackMovies are the degraded-mode placeholders: deliberately id-less and
// poster-less so clients can tell them apart from real results.
func fallbackResponse(reply string) *models.AnalyzeResponse {
	if reply == "" {
		reply = "Here are a few crowd-pleasers while we sort things out."
	}
	titles := []string{
		"The Shawshank Redemption",
		"Inception",
		"Spirited Away",
		"The Dark Knight",
		"Forrest Gump",
	}
	results := make([]models.Movie, 0, len(titles))
	for _, t := range titles {
		results = append(results, models.Movie{Title: t})
	}
	return &models.AnalyzeResponse{Reply: reply, Results: results, Fallback: true}
}

// Package metadata proxies the TMDB API behind a normalizing service layer.
// Endpoint responses are cached at the HTTP layer; the service itself caches
// only the operations the recommendation pipeline reuses internally.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"

	"cinemood/internal/cache"
	"cinemood/models"
)

// Per-operation cache TTLs. The endpoint-facing ones are applied by the HTTP
// response cache; the service layer itself only caches the operations reused
// internally (feeds, discover, genres).
const (
	SearchTTL    = 10 * time.Minute
	DetailsTTL   = time.Hour
	RecommendTTL = 30 * time.Minute
	ProvidersTTL = 6 * time.Hour
	DiscoverTTL  = 15 * time.Minute
	TrendingTTL  = 10 * time.Minute
	PopularTTL   = 15 * time.Minute
	GenresTTL    = 24 * time.Hour
)

// ErrInvalidRegion is returned when a region code is not on the allow-list.
var ErrInvalidRegion = errors.New("invalid region")

// allowedRegions is the ISO-3166-1 alpha-2 allow-list for provider and
// discovery lookups.
var allowedRegions = map[string]bool{
	"US": true, "GB": true, "DE": true, "FR": true, "IN": true, "JP": true,
	"BR": true, "CA": true, "AU": true, "ES": true, "IT": true, "MX": true,
	"NL": true, "SE": true,
}

// AllowedRegions returns the region allow-list in hint order.
func AllowedRegions() []string {
	return []string{"US", "GB", "DE", "FR", "IN", "JP", "BR", "CA", "AU", "ES", "IT", "MX", "NL", "SE"}
}

// ValidateRegion uppercases and checks input against the allow-list, falling
// back to def when input is empty.
func ValidateRegion(input, def string) (string, error) {
	region := strings.ToUpper(strings.TrimSpace(input))
	if region == "" {
		region = strings.ToUpper(strings.TrimSpace(def))
	}
	if !allowedRegions[region] {
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	return region, nil
}

// ClampPage keeps a page number inside TMDB's supported range.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > 500 {
		return 500
	}
	return page
}

// Options configures a Service.
type Options struct {
	BaseURL         string
	Bearer          string
	APIKey          string
	DefaultLanguage string
	HTTPClient      *http.Client
}

type Service struct {
	tmdb  *tmdbClient
	cache *cache.Store
	lang  string
}

func NewService(opts Options, store *cache.Store) *Service {
	lang := opts.DefaultLanguage
	if lang == "" {
		lang = "en-US"
	}
	if store == nil {
		store = cache.New(0)
	}
	s := &Service{
		tmdb:  newTMDBClient(opts.BaseURL, opts.Bearer, opts.APIKey, opts.HTTPClient),
		cache: store,
		lang:  lang,
	}
	if !s.tmdb.isConfigured() {
		log.Printf("[metadata] WARNING: tmdb credentials missing, set TMDB_BEARER or TMDB_API_KEY")
	}
	return s
}

func (s *Service) language(language string) string {
	if strings.TrimSpace(language) == "" {
		return s.lang
	}
	return language
}

// Search returns a normalized page of search results. Poster-less records are
// kept here; display-only paths filter them downstream. Caching happens at
// the HTTP layer.
func (s *Service) Search(ctx context.Context, q string, page int, language string) (*models.PagedMovies, error) {
	language = s.language(language)
	page = ClampPage(page)

	raw, err := s.tmdb.searchMovies(ctx, q, page, language, 0)
	if err != nil {
		return nil, err
	}
	out := s.normalizePage(ctx, raw, page, false)
	return &out, nil
}

// Details returns one movie with its top-billed cast.
func (s *Service) Details(ctx context.Context, id int64, language string) (*models.DetailsResponse, error) {
	language = s.language(language)

	raw, err := s.tmdb.movieDetails(ctx, id, language)
	if err != nil {
		return nil, err
	}

	out := models.DetailsResponse{
		Movie: models.MovieDetails{
			Movie:               s.normalizeMovie(ctx, raw),
			Runtime:             raw.Runtime,
			VoteAverage:         raw.VoteAverage,
			BackdropPath:        raw.BackdropPath,
			SpokenLanguages:     raw.SpokenLanguages,
			ProductionCountries: raw.ProductionCountries,
		},
		Cast: []models.CastMember{},
	}
	if raw.Credits != nil {
		for _, c := range raw.Credits.Cast {
			if c.Name == "" {
				continue
			}
			out.Cast = append(out.Cast, models.CastMember{
				ID:          c.ID,
				Name:        c.Name,
				Character:   c.Character,
				ProfilePath: c.ProfilePath,
			})
			if len(out.Cast) >= 12 {
				break
			}
		}
	}
	return &out, nil
}

// Recommend returns poster-bearing recommendations for a seed movie, falling
// back to the similar feed when the recommendations feed is empty.
func (s *Service) Recommend(ctx context.Context, id int64, page int, language string) (*models.RecommendResponse, error) {
	language = s.language(language)
	page = ClampPage(page)

	raw, err := s.tmdb.recommendations(ctx, id, page, language)
	source := "recommendations"
	if err != nil || len(raw.Results) == 0 {
		if err != nil && errors.Is(err, ErrUpstream) {
			return nil, err
		}
		raw, err = s.tmdb.similar(ctx, id, page, language)
		source = "similar"
		if err != nil {
			return nil, err
		}
	}

	out := models.RecommendResponse{
		Source:      source,
		PagedMovies: s.normalizePage(ctx, raw, page, true),
	}
	out.TotalResults = len(out.Results)
	return &out, nil
}

// RecommendationsFeed returns poster-bearing recommendations for one seed
// movie, without the similar-feed fallback. Used by the enrichment pipeline,
// which controls its own augmentation policy.
func (s *Service) RecommendationsFeed(ctx context.Context, id int64) ([]models.Movie, error) {
	key := cache.Key("tmdb:recfeed", strconv.FormatInt(id, 10), s.lang)

	var cached []models.Movie
	if s.cache.Get(key, &cached) {
		return cached, nil
	}

	raw, err := s.tmdb.recommendations(ctx, id, 1, s.lang)
	if err != nil {
		return nil, err
	}
	out := s.normalizePage(ctx, raw, 1, true).Results
	s.cache.Put(key, out, RecommendTTL)
	return out, nil
}

// SimilarFeed returns poster-bearing entries from the similar feed.
func (s *Service) SimilarFeed(ctx context.Context, id int64) ([]models.Movie, error) {
	key := cache.Key("tmdb:simfeed", strconv.FormatInt(id, 10), s.lang)

	var cached []models.Movie
	if s.cache.Get(key, &cached) {
		return cached, nil
	}

	raw, err := s.tmdb.similar(ctx, id, 1, s.lang)
	if err != nil {
		return nil, err
	}
	out := s.normalizePage(ctx, raw, 1, true).Results
	s.cache.Put(key, out, RecommendTTL)
	return out, nil
}

// Providers returns the watch-provider groups for one movie in one region.
// The region must already be validated.
func (s *Service) Providers(ctx context.Context, id int64, region string) (*models.ProvidersResponse, error) {
	raw, err := s.tmdb.watchProviders(ctx, id)
	if err != nil {
		return nil, err
	}

	block := raw.Results[region]
	out := models.ProvidersResponse{
		ID:       id,
		Region:   region,
		Link:     block.Link,
		Flatrate: normalizeProviders(block.Flatrate),
		Rent:     normalizeProviders(block.Rent),
		Buy:      normalizeProviders(block.Buy),
		Ads:      normalizeProviders(block.Ads),
		Free:     normalizeProviders(block.Free),
	}
	return &out, nil
}

// Trending returns the day or week trending feed.
func (s *Service) Trending(ctx context.Context, window string, page int, language string) (*models.PagedMovies, error) {
	window = strings.ToLower(strings.TrimSpace(window))
	if window != "week" {
		window = "day"
	}
	language = s.language(language)
	page = ClampPage(page)

	raw, err := s.tmdb.trending(ctx, window, page, language)
	if err != nil {
		return nil, err
	}
	out := s.normalizePage(ctx, raw, page, true)
	return &out, nil
}

// Popular returns the popularity feed.
func (s *Service) Popular(ctx context.Context, page int, language string) (*models.PagedMovies, error) {
	language = s.language(language)
	page = ClampPage(page)

	raw, err := s.tmdb.popular(ctx, page, language)
	if err != nil {
		return nil, err
	}
	out := s.normalizePage(ctx, raw, page, true)
	return &out, nil
}

// Discover runs one /discover/movie query and normalizes poster-bearing
// results. Strategy sequencing lives in the mood package; this is a single
// attempt.
func (s *Service) Discover(ctx context.Context, q DiscoverQuery) (*models.PagedMovies, error) {
	q.Language = s.language(q.Language)
	q.Page = ClampPage(q.Page)
	key := cache.Key("tmdb:discover",
		q.WithGenres, strconv.Itoa(q.Page), q.Language, q.Region, q.WatchRegion,
		strconv.Itoa(q.MinVoteCount), q.SortBy)

	var cached models.PagedMovies
	if s.cache.Get(key, &cached) {
		return &cached, nil
	}

	raw, err := s.tmdb.discover(ctx, q)
	if err != nil {
		return nil, err
	}
	out := s.normalizePage(ctx, raw, q.Page, true)
	s.cache.Put(key, out, DiscoverTTL)
	return &out, nil
}

// Genres returns the TMDB genre table.
func (s *Service) Genres(ctx context.Context) ([]models.Genre, error) {
	key := cache.Key("tmdb:genres", s.lang)

	var cached []models.Genre
	if s.cache.Get(key, &cached) {
		return cached, nil
	}

	raw, err := s.tmdb.genres(ctx, s.lang)
	if err != nil {
		return nil, err
	}
	out := make([]models.Genre, 0, len(raw.Genres))
	for _, g := range raw.Genres {
		out = append(out, models.Genre{ID: g.ID, Name: g.Name})
	}
	s.cache.Put(key, out, GenresTTL)
	return out, nil
}

// ResolveGenre accepts a numeric genre id or a case-insensitive genre name.
func (s *Service) ResolveGenre(ctx context.Context, input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("empty genre")
	}
	if id, err := strconv.ParseInt(input, 10, 64); err == nil {
		return id, nil
	}
	genres, err := s.Genres(ctx)
	if err != nil {
		return 0, err
	}
	for _, g := range genres {
		if strings.EqualFold(g.Name, input) {
			return g.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown genre %q", input)
}

// BestMatch resolves a free-text title (and optional year) to a single
// poster-bearing movie. A year-constrained search runs first; when it yields
// nothing usable the search is retried without the year. Returns nil when no
// usable match exists.
func (s *Service) BestMatch(ctx context.Context, title string, year *int) (*models.Movie, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	y := 0
	if year != nil {
		y = *year
	}

	raw, err := s.tmdb.searchMovies(ctx, title, 1, s.lang, y)
	if err != nil {
		return nil, err
	}
	if m := s.pickBestMatch(ctx, raw.Results, title); m != nil {
		return m, nil
	}
	if y == 0 {
		return nil, nil
	}
	raw, err = s.tmdb.searchMovies(ctx, title, 1, s.lang, 0)
	if err != nil {
		return nil, err
	}
	return s.pickBestMatch(ctx, raw.Results, title), nil
}

func (s *Service) pickBestMatch(ctx context.Context, results []tmdbMovie, want string) *models.Movie {
	folded := foldTitle(want)
	var first *models.Movie
	for _, raw := range results {
		if raw.ID == 0 || raw.PosterPath == "" {
			continue
		}
		m := s.normalizeMovie(ctx, raw)
		if foldTitle(m.Title) == folded {
			return &m
		}
		if first == nil {
			first = &m
		}
	}
	return first
}

// foldTitle lowercases and ASCII-folds a title for accent-insensitive
// comparison.
func foldTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(title)))
}

// ---------- normalization ----------

func (s *Service) normalizeMovie(ctx context.Context, raw tmdbMovie) models.Movie {
	title := raw.Title
	if title == "" {
		title = raw.Name
	}
	if title == "" {
		title = "Untitled"
	}
	m := models.Movie{
		ID:          raw.ID,
		Title:       title,
		Year:        parseYear(raw.ReleaseDate),
		Overview:    raw.Overview,
		PosterPath:  raw.PosterPath,
		ReleaseDate: raw.ReleaseDate,
		GenreIDs:    raw.GenreIDs,
	}
	if len(raw.Genres) > 0 {
		m.GenreIDs = nil
		for _, g := range raw.Genres {
			m.Genres = append(m.Genres, g.Name)
			m.GenreIDs = append(m.GenreIDs, g.ID)
		}
	} else if len(raw.GenreIDs) > 0 {
		m.Genres = s.genreNames(ctx, raw.GenreIDs)
	}
	return m
}

// genreNames maps genre ids to display names using the cached genre table.
// Best-effort: an unavailable table just yields no names.
func (s *Service) genreNames(ctx context.Context, ids []int64) []string {
	genres, err := s.Genres(ctx)
	if err != nil {
		return nil
	}
	byID := make(map[int64]string, len(genres))
	for _, g := range genres {
		byID[g.ID] = g.Name
	}
	var names []string
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

// normalizePage converts a raw TMDB page, optionally dropping poster-less
// records. Paging metadata is preserved, defaulting to the requested page and
// zero totals when absent.
func (s *Service) normalizePage(ctx context.Context, raw tmdbPage, requestedPage int, requirePoster bool) models.PagedMovies {
	out := models.PagedMovies{
		Page:         raw.Page,
		TotalPages:   raw.TotalPages,
		TotalResults: raw.TotalResults,
		Results:      []models.Movie{},
	}
	if out.Page == 0 {
		out.Page = requestedPage
	}
	for _, item := range raw.Results {
		if requirePoster && (item.PosterPath == "" || item.ID == 0) {
			continue
		}
		out.Results = append(out.Results, s.normalizeMovie(ctx, item))
	}
	return out
}

func normalizeProviders(items []tmdbProviderItem) []models.Provider {
	out := make([]models.Provider, 0, len(items))
	for _, p := range items {
		out = append(out, models.Provider{
			ProviderID:   p.ProviderID,
			ProviderName: p.ProviderName,
			LogoPath:     p.LogoPath,
		})
	}
	return out
}

// parseYear maps the first 4 characters of a release date to a year, nil when
// absent or non-numeric.
func parseYear(releaseDate string) *int {
	if len(releaseDate) < 4 {
		return nil
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return nil
	}
	return &year
}

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const defaultTMDBBaseURL = "https://api.themoviedb.org/3"

// ErrUpstream marks TMDB 5xx responses and exhausted transport failures.
// Handlers translate it into a bad_gateway envelope and multi-strategy
// callers treat it as fatal.
var ErrUpstream = errors.New("tmdb upstream error")

// StatusError is a non-2xx, non-5xx TMDB response. Soft by default: strategy
// runners skip to the next attempt, handlers map known codes (404) directly.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb request failed (%d)", e.Code)
}

// StatusCode returns the TMDB HTTP status behind err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

type tmdbClient struct {
	baseURL string
	bearer  string
	apiKey  string
	httpc   *http.Client
}

func newTMDBClient(baseURL, bearer, apiKey string, httpc *http.Client) *tmdbClient {
	if baseURL == "" {
		baseURL = defaultTMDBBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 8 * time.Second}
	}
	return &tmdbClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		bearer:  strings.TrimSpace(bearer),
		apiKey:  strings.TrimSpace(apiKey),
		httpc:   httpc,
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c.bearer != "" || c.apiKey != ""
}

// get issues a GET with transport-level retries: 3 attempts, exponential
// backoff, retrying on network errors, 429 and 5xx. Any other status stops
// immediately.
func (c *tmdbClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if !c.isConfigured() {
		return fmt.Errorf("tmdb credentials missing: set TMDB_BEARER or TMDB_API_KEY")
	}
	if params == nil {
		params = url.Values{}
	}
	if c.bearer == "" {
		params.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			if c.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+c.bearer)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
			case resp.StatusCode >= 400:
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
				return retry.Unrecoverable(&StatusError{Code: resp.StatusCode, Body: string(body)})
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tmdb response: %w", err))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) || StatusCode(err) != 0 {
		return err
	}
	// Transport failure after all attempts counts as an upstream outage.
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// ---------- raw response shapes ----------

type tmdbMovie struct {
	ID                  int64            `json:"id"`
	Title               string           `json:"title"`
	Name                string           `json:"name"`
	Overview            string           `json:"overview"`
	PosterPath          string           `json:"poster_path"`
	BackdropPath        string           `json:"backdrop_path"`
	ReleaseDate         string           `json:"release_date"`
	Runtime             int              `json:"runtime"`
	VoteAverage         float64          `json:"vote_average"`
	GenreIDs            []int64          `json:"genre_ids"`
	Genres              []tmdbGenre      `json:"genres"`
	SpokenLanguages     []map[string]any `json:"spoken_languages"`
	ProductionCountries []map[string]any `json:"production_countries"`
	Credits             *tmdbCredits     `json:"credits"`
}

type tmdbGenre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tmdbCredits struct {
	Cast []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Character   string `json:"character"`
		ProfilePath string `json:"profile_path"`
	} `json:"cast"`
}

type tmdbPage struct {
	Page         int         `json:"page"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
	Results      []tmdbMovie `json:"results"`
}

type tmdbProviders struct {
	ID      int64                         `json:"id"`
	Results map[string]tmdbProviderRegion `json:"results"`
}

type tmdbProviderRegion struct {
	Link     string             `json:"link"`
	Flatrate []tmdbProviderItem `json:"flatrate"`
	Rent     []tmdbProviderItem `json:"rent"`
	Buy      []tmdbProviderItem `json:"buy"`
	Ads      []tmdbProviderItem `json:"ads"`
	Free     []tmdbProviderItem `json:"free"`
}

type tmdbProviderItem struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

type tmdbGenreList struct {
	Genres []tmdbGenre `json:"genres"`
}

// ---------- operations ----------

func (c *tmdbClient) searchMovies(ctx context.Context, q string, page int, language string, year int) (tmdbPage, error) {
	params := url.Values{}
	params.Set("query", q)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")
	params.Set("language", language)
	if year > 0 {
		params.Set("primary_release_year", strconv.Itoa(year))
	}
	var out tmdbPage
	err := c.get(ctx, "/search/movie", params, &out)
	return out, err
}

func (c *tmdbClient) movieDetails(ctx context.Context, id int64, language string) (tmdbMovie, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits")
	params.Set("language", language)
	var out tmdbMovie
	err := c.get(ctx, fmt.Sprintf("/movie/%d", id), params, &out)
	return out, err
}

func (c *tmdbClient) recommendations(ctx context.Context, id int64, page int, language string) (tmdbPage, error) {
	var out tmdbPage
	err := c.get(ctx, fmt.Sprintf("/movie/%d/recommendations", id), pageParams(page, language), &out)
	return out, err
}

func (c *tmdbClient) similar(ctx context.Context, id int64, page int, language string) (tmdbPage, error) {
	var out tmdbPage
	err := c.get(ctx, fmt.Sprintf("/movie/%d/similar", id), pageParams(page, language), &out)
	return out, err
}

func (c *tmdbClient) watchProviders(ctx context.Context, id int64) (tmdbProviders, error) {
	var out tmdbProviders
	err := c.get(ctx, fmt.Sprintf("/movie/%d/watch/providers", id), nil, &out)
	return out, err
}

func (c *tmdbClient) trending(ctx context.Context, window string, page int, language string) (tmdbPage, error) {
	var out tmdbPage
	err := c.get(ctx, "/trending/movie/"+window, pageParams(page, language), &out)
	return out, err
}

func (c *tmdbClient) popular(ctx context.Context, page int, language string) (tmdbPage, error) {
	var out tmdbPage
	err := c.get(ctx, "/movie/popular", pageParams(page, language), &out)
	return out, err
}

func (c *tmdbClient) genres(ctx context.Context, language string) (tmdbGenreList, error) {
	params := url.Values{}
	params.Set("language", language)
	var out tmdbGenreList
	err := c.get(ctx, "/genre/movie/list", params, &out)
	return out, err
}

// DiscoverQuery carries the /discover/movie parameter set one strategy uses.
type DiscoverQuery struct {
	WithGenres   string
	Page         int
	Language     string
	Region       string
	WatchRegion  string
	MinVoteCount int
	SortBy       string
}

func (c *tmdbClient) discover(ctx context.Context, q DiscoverQuery) (tmdbPage, error) {
	params := url.Values{}
	params.Set("include_adult", "false")
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("language", q.Language)
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "popularity.desc"
	}
	params.Set("sort_by", sortBy)
	if q.WithGenres != "" {
		params.Set("with_genres", q.WithGenres)
	}
	if q.MinVoteCount > 0 {
		params.Set("vote_count.gte", strconv.Itoa(q.MinVoteCount))
	}
	if q.Region != "" {
		params.Set("region", q.Region)
	}
	if q.WatchRegion != "" {
		params.Set("watch_region", q.WatchRegion)
	}
	var out tmdbPage
	err := c.get(ctx, "/discover/movie", params, &out)
	return out, err
}

func pageParams(page int, language string) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("language", language)
	return params
}

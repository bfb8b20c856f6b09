package models

// Movie is the normalized movie shape served to the frontend.
type Movie struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Year        *int     `json:"year"`
	Overview    string   `json:"overview,omitempty"`
	PosterPath  string   `json:"poster_path,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	GenreIDs    []int64  `json:"genre_ids,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
}

// CastMember is a single top-billed cast entry on the details endpoint.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

// MovieDetails bundles a movie with extra fields only the details endpoint exposes.
type MovieDetails struct {
	Movie
	Runtime             int              `json:"runtime,omitempty"`
	VoteAverage         float64          `json:"vote_average,omitempty"`
	BackdropPath        string           `json:"backdrop_path,omitempty"`
	SpokenLanguages     []map[string]any `json:"spoken_languages,omitempty"`
	ProductionCountries []map[string]any `json:"production_countries,omitempty"`
}

// DetailsResponse is the /api/details/{id} payload.
type DetailsResponse struct {
	Movie MovieDetails `json:"movie"`
	Cast  []CastMember `json:"cast"`
}

// PagedMovies is a page of normalized movies with TMDB paging metadata.
type PagedMovies struct {
	Page         int     `json:"page"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
	Results      []Movie `json:"results"`
}

// RecommendResponse is a paged result that also reports which TMDB feed
// ("recommendations" or "similar") produced it.
type RecommendResponse struct {
	Source string `json:"source"`
	PagedMovies
}

// MoodDiscoverResponse is the /api/recommend/mood payload.
type MoodDiscoverResponse struct {
	Mood   string `json:"mood"`
	Region string `json:"region"`
	PagedMovies
}

// Provider is a single watch provider entry.
type Provider struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path,omitempty"`
}

// ProvidersResponse groups watch providers for one movie in one region.
type ProvidersResponse struct {
	ID       int64      `json:"id"`
	Region   string     `json:"region"`
	Link     string     `json:"link,omitempty"`
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
	Ads      []Provider `json:"ads"`
	Free     []Provider `json:"free"`
}

// Genre is one entry from the TMDB genre table.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Candidate is a movie suggestion extracted from free-form LLM text. It is
// never persisted; the enrichment pipeline resolves it against TMDB.
type Candidate struct {
	Title  string `json:"title"`
	Year   *int   `json:"year,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// AnalyzeResponse is the /api/analyze payload. Fallback is set when the
// pipeline degraded to static placeholder recommendations.
type AnalyzeResponse struct {
	Reply    string  `json:"reply"`
	Results  []Movie `json:"results"`
	Fallback bool    `json:"fallback,omitempty"`
}

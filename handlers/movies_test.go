package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"cinemood/api"
	"cinemood/internal/cache"
	"cinemood/models"
	"cinemood/services/metadata"
)

type fakeMovieService struct {
	searchResp    *models.PagedMovies
	searchErr     error
	detailsResp   *models.DetailsResponse
	detailsErr    error
	recommendResp *models.RecommendResponse
	recommendErr  error
	providersResp *models.ProvidersResponse
	providersErr  error
	trendingResp  *models.PagedMovies
	trendingErr   error
	popularResp   *models.PagedMovies
	popularErr    error
	genresResp    []models.Genre
	genresErr     error

	searchCalls int

	lastQuery    string
	lastPage     int
	lastLanguage string
	lastID       int64
	lastRegion   string
	lastWindow   string
}

func (f *fakeMovieService) Search(_ context.Context, q string, page int, language string) (*models.PagedMovies, error) {
	f.searchCalls++
	f.lastQuery, f.lastPage, f.lastLanguage = q, page, language
	return f.searchResp, f.searchErr
}

func (f *fakeMovieService) Details(_ context.Context, id int64, language string) (*models.DetailsResponse, error) {
	f.lastID, f.lastLanguage = id, language
	return f.detailsResp, f.detailsErr
}

func (f *fakeMovieService) Recommend(_ context.Context, id int64, page int, language string) (*models.RecommendResponse, error) {
	f.lastID, f.lastPage, f.lastLanguage = id, page, language
	return f.recommendResp, f.recommendErr
}

func (f *fakeMovieService) Providers(_ context.Context, id int64, region string) (*models.ProvidersResponse, error) {
	f.lastID, f.lastRegion = id, region
	return f.providersResp, f.providersErr
}

func (f *fakeMovieService) Trending(_ context.Context, window string, page int, language string) (*models.PagedMovies, error) {
	f.lastWindow, f.lastPage, f.lastLanguage = window, page, language
	return f.trendingResp, f.trendingErr
}

func (f *fakeMovieService) Popular(_ context.Context, page int, language string) (*models.PagedMovies, error) {
	f.lastPage, f.lastLanguage = page, language
	return f.popularResp, f.popularErr
}

func (f *fakeMovieService) Genres(context.Context) ([]models.Genre, error) {
	return f.genresResp, f.genresErr
}

func newMovieRouter(svc *fakeMovieService) *mux.Router {
	h := NewMovieHandler(svc, "US")
	r := mux.NewRouter()
	r.HandleFunc("/api/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/api/details/{id}", h.Details).Methods(http.MethodGet)
	r.HandleFunc("/api/recommend/{id}", h.Recommend).Methods(http.MethodGet)
	r.HandleFunc("/api/providers/{id}", h.Providers).Methods(http.MethodGet)
	r.HandleFunc("/api/trending", h.Trending).Methods(http.MethodGet)
	r.HandleFunc("/api/popular", h.Popular).Methods(http.MethodGet)
	r.HandleFunc("/api/genres", h.Genres).Methods(http.MethodGet)
	r.HandleFunc("/api/regions", h.Regions).Methods(http.MethodGet)
	return r
}

func doRequest(t *testing.T, router *mux.Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var apiErr models.APIError
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return apiErr
}

func TestSearchRepeatServedFromResponseCache(t *testing.T) {
	svc := &fakeMovieService{searchResp: &models.PagedMovies{
		Page: 1, TotalPages: 1, TotalResults: 1,
		Results: []models.Movie{{ID: 268, Title: "Batman"}},
	}}
	h := NewMovieHandler(svc, "US")
	r := mux.NewRouter()
	r.Handle("/api/search",
		api.CacheResponses(cache.New(16), "http:search", time.Minute, "q", "page", "language")(
			http.HandlerFunc(h.Search))).Methods(http.MethodGet)

	for i, want := range []string{"miss", "hit"} {
		rec := doRequest(t, r, http.MethodGet, "/api/search?q=batman&page=1")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-Cache"); got != want {
			t.Fatalf("request %d: X-Cache = %q, want %q", i, got, want)
		}
	}
	if svc.searchCalls != 1 {
		t.Fatalf("service searched %d times, want 1", svc.searchCalls)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	router := newMovieRouter(&fakeMovieService{})
	rec := doRequest(t, router, http.MethodGet, "/api/search")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if apiErr := decodeAPIError(t, rec); apiErr.Code != http.StatusBadRequest {
		t.Fatalf("envelope = %+v", apiErr)
	}
}

func TestSearchPassesParamsAndClampsPage(t *testing.T) {
	svc := &fakeMovieService{searchResp: &models.PagedMovies{Page: 1, Results: []models.Movie{}}}
	router := newMovieRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/search?q=heat&page=900&language=fr-FR")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuery != "heat" || svc.lastPage != 500 || svc.lastLanguage != "fr-FR" {
		t.Fatalf("service saw q=%q page=%d lang=%q", svc.lastQuery, svc.lastPage, svc.lastLanguage)
	}
}

func TestDetailsInvalidID(t *testing.T) {
	router := newMovieRouter(&fakeMovieService{})
	rec := doRequest(t, router, http.MethodGet, "/api/details/abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDetailsNotFound(t *testing.T) {
	svc := &fakeMovieService{detailsErr: &metadata.StatusError{Code: http.StatusNotFound}}
	router := newMovieRouter(svc)
	rec := doRequest(t, router, http.MethodGet, "/api/details/42")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if apiErr := decodeAPIError(t, rec); apiErr.Dependency != "" {
		t.Fatalf("soft 404 should not blame a dependency: %+v", apiErr)
	}
}

func TestDetailsUpstreamFailure(t *testing.T) {
	svc := &fakeMovieService{detailsErr: metadata.ErrUpstream}
	router := newMovieRouter(svc)
	rec := doRequest(t, router, http.MethodGet, "/api/details/42")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	apiErr := decodeAPIError(t, rec)
	if apiErr.Dependency != "tmdb" {
		t.Fatalf("expected tmdb dependency, got %+v", apiErr)
	}
	if apiErr.TraceID == "" {
		t.Fatal("5xx envelope should carry a trace id")
	}
}

func TestProvidersRegionValidation(t *testing.T) {
	svc := &fakeMovieService{providersResp: &models.ProvidersResponse{Region: "DE"}}
	router := newMovieRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/providers/42?region=de")
	if rec.Code != http.StatusOK {
		t.Fatalf("lowercase region should normalize: %d", rec.Code)
	}
	if svc.lastRegion != "DE" {
		t.Fatalf("service saw region %q", svc.lastRegion)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/providers/42?region=ZZ")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported region: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/providers/42")
	if rec.Code != http.StatusOK || svc.lastRegion != "US" {
		t.Fatalf("missing region should use the default, saw %q", svc.lastRegion)
	}
}

func TestTrendingWindowValidation(t *testing.T) {
	svc := &fakeMovieService{trendingResp: &models.PagedMovies{Page: 1}}
	router := newMovieRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/trending")
	if rec.Code != http.StatusOK || svc.lastWindow != "day" {
		t.Fatalf("default window: code=%d window=%q", rec.Code, svc.lastWindow)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/trending?window=week")
	if rec.Code != http.StatusOK || svc.lastWindow != "week" {
		t.Fatalf("week window: code=%d window=%q", rec.Code, svc.lastWindow)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/trending?window=month")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid window: expected 400, got %d", rec.Code)
	}
}

func TestGenresWrapsList(t *testing.T) {
	svc := &fakeMovieService{genresResp: []models.Genre{{ID: 28, Name: "Action"}}}
	router := newMovieRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/genres")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string][]models.Genre
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["genres"]) != 1 || body["genres"][0].Name != "Action" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRegionsListsSupportedSet(t *testing.T) {
	router := newMovieRouter(&fakeMovieService{})
	rec := doRequest(t, router, http.MethodGet, "/api/regions")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Regions []string `json:"regions"`
		Default string   `json:"default"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Regions) == 0 || body.Default != "US" {
		t.Fatalf("body = %+v", body)
	}
}

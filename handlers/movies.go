package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cinemood/models"
	metadatapkg "cinemood/services/metadata"
)

type movieService interface {
	Search(ctx context.Context, q string, page int, language string) (*models.PagedMovies, error)
	Details(ctx context.Context, id int64, language string) (*models.DetailsResponse, error)
	Recommend(ctx context.Context, id int64, page int, language string) (*models.RecommendResponse, error)
	Providers(ctx context.Context, id int64, region string) (*models.ProvidersResponse, error)
	Trending(ctx context.Context, window string, page int, language string) (*models.PagedMovies, error)
	Popular(ctx context.Context, page int, language string) (*models.PagedMovies, error)
	Genres(ctx context.Context) ([]models.Genre, error)
}

var _ movieService = (*metadatapkg.Service)(nil)

type MovieHandler struct {
	Service       movieService
	DefaultRegion string
}

func NewMovieHandler(s movieService, defaultRegion string) *MovieHandler {
	return &MovieHandler{Service: s, DefaultRegion: defaultRegion}
}

func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required", "", "")
		return
	}
	page := metadatapkg.ClampPage(queryInt(r, "page", 1))
	resp, err := h.Service.Search(r.Context(), q, page, r.URL.Query().Get("language"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := h.Service.Details(r.Context(), id, r.URL.Query().Get("language"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	page := metadatapkg.ClampPage(queryInt(r, "page", 1))
	resp, err := h.Service.Recommend(r.Context(), id, page, r.URL.Query().Get("language"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) Providers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	region, err := metadatapkg.ValidateRegion(r.URL.Query().Get("region"), h.DefaultRegion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp, err := h.Service.Providers(r.Context(), id, region)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) Trending(w http.ResponseWriter, r *http.Request) {
	window := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("window")))
	if window == "" {
		window = "day"
	}
	if window != "day" && window != "week" {
		writeError(w, http.StatusBadRequest, "window must be day or week", "", "")
		return
	}
	page := metadatapkg.ClampPage(queryInt(r, "page", 1))
	resp, err := h.Service.Trending(r.Context(), window, page, r.URL.Query().Get("language"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) Popular(w http.ResponseWriter, r *http.Request) {
	page := metadatapkg.ClampPage(queryInt(r, "page", 1))
	resp, err := h.Service.Popular(r.Context(), page, r.URL.Query().Get("language"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MovieHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.Service.Genres(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Genre{"genres": genres})
}

func (h *MovieHandler) Regions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"regions": metadatapkg.AllowedRegions(),
		"default": h.DefaultRegion,
	})
}

// pathID parses the {id} route variable, writing a 400 envelope when it is
// not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid movie id", "", "")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

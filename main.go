package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"cinemood/api"
	"cinemood/config"
	"cinemood/handlers"
	"cinemood/internal/cache"
	"cinemood/services/llm"
	"cinemood/services/metadata"
	"cinemood/services/recommend"
	"cinemood/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}
	setupLogging(cfg.LogFile)

	store := cache.New(cfg.CacheMaxEntries)

	metaSvc := metadata.NewService(metadata.Options{
		BaseURL:         cfg.TMDB.BaseURL,
		Bearer:          cfg.TMDB.Bearer,
		APIKey:          cfg.TMDB.APIKey,
		DefaultLanguage: cfg.DefaultLanguage,
		HTTPClient:      &http.Client{Timeout: cfg.TMDB.Timeout},
	}, store)

	llmClient := llm.New(llm.Options{
		APIURL:  cfg.LLM.URL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Retries: cfg.LLM.Retries,
		Timeout: cfg.LLM.Timeout,
	})
	if !llmClient.IsConfigured() {
		log.Printf("[main] WARNING: LLM_URL not set, /api/analyze will report the model as unavailable")
	}

	pipeline := recommend.NewPipeline(metaSvc, llmClient, llm.ExtractText, recommend.NewRecencyWindow(0, 0))

	movieHandler := handlers.NewMovieHandler(metaSvc, cfg.DefaultRegion)
	moodHandler := handlers.NewMoodHandler(metaSvc, pipeline, cfg.DefaultRegion)

	router := utils.NewRouter()
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(handlers.RecoverMiddleware)
	apiRouter.Use(api.RateLimitMiddleware(api.NewIPRateLimiter(cfg.RateLimit, cfg.RateWindow)))

	// Each cacheable GET carries the response cache with its own TTL and vary
	// set, so every one of them reports X-Cache. The service layer only caches
	// the operations the pipeline reuses internally.
	cached := func(op string, ttl time.Duration, h http.HandlerFunc, vary ...string) http.Handler {
		return api.CacheResponses(store, op, ttl, vary...)(h)
	}

	apiRouter.Handle("/search", cached("http:search", metadata.SearchTTL, movieHandler.Search, "q", "page", "language")).Methods(http.MethodGet)
	apiRouter.Handle("/details/{id}", cached("http:details", metadata.DetailsTTL, movieHandler.Details, "language")).Methods(http.MethodGet)
	apiRouter.Handle("/providers/{id}", cached("http:providers", metadata.ProvidersTTL, movieHandler.Providers, "region")).Methods(http.MethodGet)
	apiRouter.Handle("/trending", cached("http:trending", metadata.TrendingTTL, movieHandler.Trending, "window", "page", "language")).Methods(http.MethodGet)
	apiRouter.Handle("/popular", cached("http:popular", metadata.PopularTTL, movieHandler.Popular, "page", "language")).Methods(http.MethodGet)
	apiRouter.Handle("/genres", cached("http:genres", metadata.GenresTTL, movieHandler.Genres)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/regions", movieHandler.Regions).Methods(http.MethodGet)
	apiRouter.HandleFunc("/moods", moodHandler.Moods).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analyze", moodHandler.Analyze).Methods(http.MethodPost)

	apiRouter.Handle("/recommend/mood", cached("http:mood", metadata.DiscoverTTL, moodHandler.Discover, "mood", "page", "region", "language")).Methods(http.MethodGet)
	apiRouter.Handle("/recommend/{id:[0-9]+}", cached("http:recommend", metadata.RecommendTTL, movieHandler.Recommend, "page", "language")).Methods(http.MethodGet)

	handler := utils.CORSMiddleware(cfg.FrontendOrigins)(router)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	log.Printf("[main] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("[main] server: %v", err)
	}
}

// setupLogging mirrors stdout logging into a rotating file when LOG_FILE is
// set.
func setupLogging(path string) {
	if path == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}

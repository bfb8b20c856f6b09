package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"cinemood/models"
	metadatapkg "cinemood/services/metadata"
	"cinemood/services/mood"
)

// maxAnalyzeTextLen bounds the free-form text forwarded to the model.
const maxAnalyzeTextLen = 500

type analyzer interface {
	Analyze(ctx context.Context, text string) (*models.AnalyzeResponse, error)
}

type MoodHandler struct {
	Discoverer    mood.Discoverer
	Analyzer      analyzer
	DefaultRegion string
}

func NewMoodHandler(d mood.Discoverer, a analyzer, defaultRegion string) *MoodHandler {
	return &MoodHandler{Discoverer: d, Analyzer: a, DefaultRegion: defaultRegion}
}

// Discover handles GET /api/recommend/mood.
func (h *MoodHandler) Discover(w http.ResponseWriter, r *http.Request) {
	rule, err := mood.Resolve(r.URL.Query().Get("mood"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	region, err := metadatapkg.ValidateRegion(r.URL.Query().Get("region"), h.DefaultRegion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp, err := mood.Discover(r.Context(), h.Discoverer, mood.Query{
		Rule:     rule,
		Region:   region,
		Language: r.URL.Query().Get("language"),
		Page:     metadatapkg.ClampPage(queryInt(r, "page", 1)),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Moods lists the canonical moods clients may pass.
func (h *MoodHandler) Moods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"moods": mood.Supported()})
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// truncateText caps s at max bytes without splitting a multi-byte rune.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Analyze handles POST /api/analyze.
func (h *MoodHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON", `send {"text": "describe a mood"}`, "")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required", `send {"text": "describe a mood"}`, "")
		return
	}
	text = truncateText(text, maxAnalyzeTextLen)

	resp, err := h.Analyzer.Analyze(r.Context(), text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

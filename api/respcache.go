package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"cinemood/internal/cache"
)

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// recordingWriter buffers the response so it can be stored after the handler
// runs. Only the status code and body are captured.
type recordingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

// CacheResponses serves successful JSON responses from the shared store. The
// cache key varies on the route's path variables followed by every query
// parameter named in vary, absent ones contributing an empty string. Error
// responses and non-object bodies pass through uncached.
func CacheResponses(store *cache.Store, op string, ttl time.Duration, vary ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := cache.Key(op, keyParts(r, vary)...)

			var hit cachedResponse
			if store.Get(key, &hit) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "hit")
				w.WriteHeader(hit.Status)
				w.Write(hit.Body)
				return
			}

			w.Header().Set("X-Cache", "miss")
			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < 400 && isJSONObject(rec.buf.Bytes()) {
				store.Put(key, cachedResponse{Status: rec.status, Body: rec.buf.Bytes()}, ttl)
			}
		})
	}
}

// keyParts builds the ordered vary values: mux path variables first (sorted
// by name so the order is stable), then the named query parameters.
func keyParts(r *http.Request, vary []string) []string {
	vars := mux.Vars(r)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+len(vary))
	for _, name := range names {
		parts = append(parts, vars[name])
	}
	for _, name := range vary {
		parts = append(parts, r.URL.Query().Get(name))
	}
	return parts
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

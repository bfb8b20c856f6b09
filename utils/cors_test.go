package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://movies.example.com"}

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://movies.example.com", true},
		{"https://movies.example.com/", true},
		{"http://localhost:3000", true},
		{"http://192.168.1.20:5173", true},
		{"http://mybox.local", true},
		{"http://nas", true},
		{"https://evil.example.net", false},
		{"http://8.8.8.8", false},
		{"", false},
		{"not a url", false},
	}
	for _, c := range cases {
		if got := IsAllowedOrigin(c.origin, allowed); got != c.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", c.origin, got, c.want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	router := CORSMiddleware([]string{"https://movies.example.com"})(NewRouter())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://movies.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://movies.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("untrusted origin should get no CORS headers")
	}
}

func TestCORSPreflight(t *testing.T) {
	router := CORSMiddleware(nil)(NewRouter())

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("preflight should carry allowed methods")
	}
}

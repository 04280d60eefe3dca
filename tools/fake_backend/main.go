package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeBackend is an in-memory stand-in for the backend mapping store,
// used for local development and load drills. Listing order is insertion
// order, which is what drives tie-breaking for colliding timestamps.
type fakeBackend struct {
	start    time.Time
	latency  time.Duration
	failRate float64

	mu     sync.Mutex
	scopes map[string][]storedMapping

	totalCalls int64
	byMethod   map[string]int64
}

type storedMapping struct {
	SourceKey string
	Body      json.RawMessage
}

func main() {
	addr := getenvDefault("FAKE_BACKEND_ADDR", ":18090")
	latencyMs := getenvIntDefault("FAKE_BACKEND_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_BACKEND_FAIL_RATE", 0)

	srv := &fakeBackend{
		start:    time.Now().UTC(),
		latency:  time.Duration(latencyMs) * time.Millisecond,
		failRate: failRate,
		scopes:   make(map[string][]storedMapping),
		byMethod: make(map[string]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	mux.HandleFunc("/api/profiles/", srv.handleMappings)

	log.Printf("fake backend store listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeBackend) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeBackend) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"by_method":  s.byMethod,
		"scopes":     len(s.scopes),
	})
}

// handleMappings serves
// /api/profiles/{pid}/subprofiles/{sid}/mappings[/{source_key}].
func (s *fakeBackend) handleMappings(w http.ResponseWriter, r *http.Request) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	s.recordCall(r.Method)
	if s.failRate > 0 && rand.Float64() < s.failRate {
		http.Error(w, "injected failure", http.StatusBadGateway)
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/profiles/"), "/"), "/")
	if len(parts) < 4 || parts[1] != "subprofiles" || parts[3] != "mappings" {
		http.NotFound(w, r)
		return
	}
	scope := parts[0] + "/" + parts[2]

	switch {
	case len(parts) == 4 && r.Method == http.MethodGet:
		s.handleList(w, scope)
	case len(parts) == 5:
		key, err := url.PathUnescape(parts[4])
		if err != nil {
			http.Error(w, "bad source key", http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodPut:
			s.handleUpsert(w, r, scope, key)
		case http.MethodDelete:
			s.handleDelete(w, scope, key)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeBackend) handleList(w http.ResponseWriter, scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.scopes[scope]
	data := make([]json.RawMessage, 0, len(stored))
	for _, m := range stored {
		data = append(data, m.Body)
	}
	writeJSON(w, map[string]any{"data": data})
}

func (s *fakeBackend) handleUpsert(w http.ResponseWriter, r *http.Request, scope, key string) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.scopes[scope]
	for i, m := range stored {
		if m.SourceKey == key {
			stored[i].Body = body
			writeJSON(w, map[string]any{"status": "updated"})
			return
		}
	}
	s.scopes[scope] = append(stored, storedMapping{SourceKey: key, Body: body})
	writeJSON(w, map[string]any{"status": "created"})
}

func (s *fakeBackend) handleDelete(w http.ResponseWriter, scope, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.scopes[scope]
	for i, m := range stored {
		if m.SourceKey == key {
			s.scopes[scope] = append(stored[:i], stored[i+1:]...)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *fakeBackend) recordCall(method string) {
	atomic.AddInt64(&s.totalCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMethod[method]++
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

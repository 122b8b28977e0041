// Package pokeapitest serves a small, deterministic PokeAPI for tests.
//
// The server knows five pokemon (bulbasaur, ivysaur, charmander, charizard
// and pikachu), their species, moves, types and abilities, three
// generations, the kanto pokedex and three evolution chains. Every
// document links back to the server itself, so references can be expanded.
//
//	srv := pokeapitest.New(t)
//	client, _ := sdk.NewClient(sdk.DefaultConfig().WithBaseURL(srv.BaseURL()))
package pokeapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// APIPrefix is the path PokeAPI is mounted under.
const APIPrefix = "/api/v2"

// HandlerFunc answers one request with a status and a JSON body. A nil body
// writes no content; a string body is written as is.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) (int, interface{})

// RecordedRequest stores information about a received request.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Time    time.Time
}

type failure struct {
	status    int
	remaining int
}

// Server is a fake PokeAPI.
type Server struct {
	*httptest.Server

	mu           sync.RWMutex
	docs         map[string]interface{}
	handlers     map[string]HandlerFunc
	failures     map[string]*failure
	delays       map[string]time.Duration
	hits         map[string]int
	requests     []RecordedRequest
	requestCount atomic.Int32
}

// New starts a server that is closed when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()
	s := NewServer()
	tb.Cleanup(s.Close)
	return s
}

// NewServer starts a server. The caller must Close it.
func NewServer() *Server {
	s := &Server{
		handlers: make(map[string]HandlerFunc),
		failures: make(map[string]*failure),
		delays:   make(map[string]time.Duration),
		hits:     make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleRequest))
	s.docs = fixtures(s.BaseURL())
	return s
}

// BaseURL returns the PokeAPI root served by s, e.g. http://127.0.0.1:1234/api/v2.
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix
}

// SetDocument serves doc at path, replacing any fixture.
func (s *Server) SetDocument(path string, doc interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[normalize(path)] = doc
}

// RemoveDocument makes path answer 404.
func (s *Server) RemoveDocument(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, normalize(path))
}

// Handle routes path to handler ahead of the fixtures.
func (s *Server) Handle(path string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[normalize(path)] = handler
}

// Fail makes the next times requests for path answer status. A times of
// zero or less fails every request.
func (s *Server) Fail(path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[normalize(path)] = &failure{status: status, remaining: times}
}

// Delay holds every response for path by d.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[normalize(path)] = d
}

// Hits returns the number of requests received for path, query ignored.
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[normalize(path)]
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	return int(s.requestCount.Load())
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// ResetCounts forgets recorded requests and hit counts.
func (s *Server) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = make(map[string]int)
	s.requests = nil
	s.requestCount.Store(0)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, APIPrefix) {
		http.NotFound(w, r)
		return
	}
	path := normalize(strings.TrimPrefix(r.URL.Path, APIPrefix))

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:  r.Method,
		Path:    path,
		Query:   r.URL.RawQuery,
		Headers: r.Header.Clone(),
		Time:    time.Now(),
	})
	s.hits[path]++
	delay := s.delays[path]
	var failStatus int
	if f, ok := s.failures[path]; ok {
		failStatus = f.status
		if f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				delete(s.failures, path)
			}
		}
	}
	handler := s.handlers[path]
	doc, found := s.docs[path]
	s.mu.Unlock()
	s.requestCount.Add(1)

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if failStatus != 0 {
		writeResponse(w, failStatus, http.StatusText(failStatus))
		return
	}
	if r.Method != http.MethodGet {
		writeResponse(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	if handler != nil {
		status, body := handler(w, r)
		writeResponse(w, status, body)
		return
	}

	switch path {
	case "/pokemon":
		writeResponse(w, http.StatusOK, s.listPage(r, "pokemon", Names()))
		return
	case "/generation":
		names := make([]string, len(generations))
		for i, g := range generations {
			names[i] = g.name
		}
		writeResponse(w, http.StatusOK, s.listPage(r, "generation", names))
		return
	}

	if !found {
		writeResponse(w, http.StatusNotFound, "Not Found")
		return
	}
	writeResponse(w, http.StatusOK, doc)
}

// listPage renders a PokeAPI list response with next and previous links.
func (s *Server) listPage(r *http.Request, endpoint string, names []string) map[string]interface{} {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	results := make([]interface{}, 0, limit)
	for i := offset; i < len(names) && i < offset+limit; i++ {
		results = append(results, map[string]interface{}{
			"name": names[i],
			"url":  fmt.Sprintf("%s/%s/%s/", s.BaseURL(), endpoint, names[i]),
		})
	}

	link := func(off int) interface{} {
		return fmt.Sprintf("%s/%s?offset=%d&limit=%d", s.BaseURL(), endpoint, off, limit)
	}
	var next, previous interface{}
	if offset+limit < len(names) {
		next = link(offset + limit)
	}
	if offset > 0 {
		previous = link(max(0, offset-limit))
	}

	return map[string]interface{}{
		"count":    len(names),
		"next":     next,
		"previous": previous,
		"results":  results,
	}
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeResponse(w http.ResponseWriter, status int, body interface{}) {
	switch b := body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(b))
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(b)
	}
}

func normalize(path string) string {
	path = "/" + strings.Trim(path, "/")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Package pathstoretest provides an in-memory pathstore server for tests.
package pathstoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
)

// Server is a minimal key-value pathstore. Keys are reported with dotted
// separators the way the real service does.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	nodes  map[string]json.RawMessage
	apiKey string
}

// NewServer starts a server. A non-empty apiKey is required as a bearer
// token on every request.
func NewServer(apiKey string) *Server {
	s := &Server{nodes: make(map[string]json.RawMessage), apiKey: apiKey}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Len reports how many nodes are stored.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

type node struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func dotted(key string) string { return strings.ReplaceAll(key, "/", ".") }

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	key, ok := strings.CutPrefix(r.URL.Path, "/kv/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.nodes[key] = req.Value
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if prefix, ok := strings.CutSuffix(key, "*"); ok {
			keys := make([]string, 0)
			for k := range s.nodes {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			slices.Sort(keys)
			out := make([]node, 0, len(keys))
			for _, k := range keys {
				out = append(out, node{Key: dotted(k), Value: s.nodes[k]})
			}
			json.NewEncoder(w).Encode(map[string]any{"nodes": out})
			return
		}
		v, ok := s.nodes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(node{Key: dotted(key), Value: v})

	case http.MethodDelete:
		delete(s.nodes, key)
		if r.URL.Query().Get("children") == "true" {
			for k := range s.nodes {
				if strings.HasPrefix(k, key+"/") {
					delete(s.nodes, k)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// maxBodyBytes caps a single history item.
const maxBodyBytes = 1 << 20

type historyItem struct {
	Key            string          `json:"key"`
	Value          json.RawMessage `json:"value"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastAccessedAt time.Time       `json:"lastAccessedAt"`
}

type cleanupResult struct {
	EvictedNamespaces int `json:"evictedNamespaces"`
	EvictedEntries    int `json:"evictedEntries"`
}

// Healthz reports liveness. It never touches the store.
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

// Info describes the running process and how much history it holds.
func (s *Server) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		PID        int       `json:"pid"`
		Now        time.Time `json:"now"`
		Namespaces int       `json:"namespaces"`
		Items      int       `json:"items"`
	}
	st := s.store.Stats()
	writeJSON(w, http.StatusOK, resp{PID: os.Getpid(), Now: time.Now(), Namespaces: st.Namespaces, Items: st.Entries})
}

// Put stores the request body as the history item {item} of session {ns}.
func (s *Server) Put(w http.ResponseWriter, req *http.Request) {
	ns, item := req.PathValue("ns"), req.PathValue("item")
	if ns == "" || item == "" {
		http.Error(w, "session and item keys are required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "payload must be valid JSON", http.StatusBadRequest)
		return
	}

	s.store.Put(ns, item, json.RawMessage(body))
	s.logger(req).Debug("stored item", zap.String("session", ns), zap.String("item", item), zap.Int("bytes", len(body)))
	w.WriteHeader(http.StatusNoContent)
}

// Get returns one history item.
func (s *Server) Get(w http.ResponseWriter, req *http.Request) {
	val, ok := s.store.Get(req.PathValue("ns"), req.PathValue("item"))
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(val)
}

// Del removes one history item.
func (s *Server) Del(w http.ResponseWriter, req *http.Request) {
	if !s.store.Delete(req.PathValue("ns"), req.PathValue("item")) {
		http.NotFound(w, req)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History lists a session's items oldest first. An unknown session has an
// empty history.
func (s *Server) History(w http.ResponseWriter, req *http.Request) {
	snap := s.store.Snapshot(req.PathValue("ns"))
	out := make([]historyItem, 0, len(snap))
	for _, it := range snap {
		out = append(out, historyItem{
			Key:            it.Key,
			Value:          it.Value,
			CreatedAt:      it.CreatedAt,
			LastAccessedAt: it.LastAccessedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// List returns the registry of live sessions in creation order.
func (s *Server) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.store.Namespaces()})
}

// Drop removes a whole session.
func (s *Server) Drop(w http.ResponseWriter, req *http.Request) {
	if !s.store.DeleteNamespace(req.PathValue("ns")) {
		http.NotFound(w, req)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cleanup runs a TTL cleanup pass on demand and reports what it removed.
func (s *Server) Cleanup(w http.ResponseWriter, req *http.Request) {
	nsEvicted, entriesEvicted := s.store.CleanupNow()
	s.logger(req).Info("manual cleanup",
		zap.Int("evicted_namespaces", nsEvicted),
		zap.Int("evicted_entries", entriesEvicted))
	writeJSON(w, http.StatusOK, cleanupResult{EvictedNamespaces: nsEvicted, EvictedEntries: entriesEvicted})
}

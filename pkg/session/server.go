// Package session serves reasoning-session history over HTTP on top of a
// bounded store. Each session is a store namespace; each history item is an
// entry holding an arbitrary JSON document.
package session

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/sessionstore/internal/telemetry"
	"github.com/ryandielhenn/sessionstore/pkg/store"
)

// Store is the store type the server reads and writes.
type Store = store.Store[string, string, json.RawMessage]

// NewStore returns a session store that copies documents in and out, so
// handlers never share a buffer with the stored history.
func NewStore(maxSessions, maxHistory int, ttl time.Duration, opts ...store.Option) (*Store, error) {
	opts = append([]store.Option{store.WithClone(slices.Clone[json.RawMessage])}, opts...)
	return store.New[string, string, json.RawMessage](maxSessions, maxHistory, ttl, opts...)
}

type Server struct {
	store *Store
	log   *zap.Logger
}

func NewServer(st *Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: st, log: log}
}

// Routes registers the server's endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.Healthz)
	mux.HandleFunc("GET /info", s.Info)
	mux.Handle("GET /metrics", telemetry.MetricsHandler())

	handle := func(pattern, op string, h http.HandlerFunc) {
		mux.Handle(pattern, s.withRequestID(telemetry.Instrument(op, h)))
	}
	handle("GET /sessions", "list", s.List)
	handle("GET /sessions/{ns}", "history", s.History)
	handle("DELETE /sessions/{ns}", "drop", s.Drop)
	handle("PUT /sessions/{ns}/{item}", "put", s.Put)
	handle("GET /sessions/{ns}/{item}", "get", s.Get)
	handle("DELETE /sessions/{ns}/{item}", "delete", s.Del)
	handle("POST /cleanup", "cleanup", s.Cleanup)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	return mux
}

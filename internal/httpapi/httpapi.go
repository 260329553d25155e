// Package httpapi exposes the follower's operational HTTP surface: health,
// Prometheus scraping, and a debug endpoint for inspecting per-shard cursor
// state.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"shardfollower/internal/cursorstore"
	"shardfollower/internal/metrics"
)

// CursorInspector answers the debug cursor endpoint. follower.Follower does
// not implement this directly; callers wire a closure over their
// cursorstore.Store instead, since the store, not the orchestrator, is
// the authority on persisted position.
type CursorInspector func(ctx context.Context, shardID uint32) (nonce uint64, ok bool, err error)

// Server is the follower's admin HTTP server.
type Server struct {
	log      logrus.FieldLogger
	recorder *metrics.Recorder
	inspect  CursorInspector

	mu  sync.Mutex
	srv *http.Server
}

// New builds a Server. recorder may be nil to omit the /metrics endpoint.
func New(log logrus.FieldLogger, recorder *metrics.Recorder, inspect CursorInspector) *Server {
	return &Server{log: log, recorder: recorder, inspect: inspect}
}

// requestID stamps every request with a UUID, echoed back as a response
// header so an operator can correlate a curl call with a log line.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type requestIDKey struct{}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration", time.Since(start)).
			Info("httpapi request")
	})
}

// Handler builds the full routed handler: a chi mux for the primary
// operational endpoints, with a gorilla/mux sub-router mounted for the
// debug introspection path (its path-variable style reads more naturally
// for the nested {shard} segment).
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if s.recorder != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.recorder.Registry(), promhttp.HandlerOpts{}))
	}

	debug := mux.NewRouter()
	debug.HandleFunc("/debug/cursors/{shard}", s.handleDebugCursor).Methods(http.MethodGet)
	r.Mount("/debug", debug)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDebugCursor(w http.ResponseWriter, r *http.Request) {
	if s.inspect == nil {
		http.Error(w, "cursor inspection not configured", http.StatusNotImplemented)
		return
	}
	shardStr := mux.Vars(r)["shard"]
	shard, err := strconv.ParseUint(shardStr, 10, 32)
	if err != nil {
		http.Error(w, "invalid shard id", http.StatusBadRequest)
		return
	}
	nonce, ok, err := s.inspect(r.Context(), uint32(shard))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cursor recorded for shard"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"shard": uint64(shard), "nonce": nonce})
}

// Start launches the admin server on addr. It returns once the listener is
// established; ListenAndServe runs in a background goroutine.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("httpapi server stopped")
		}
	}()
	return nil
}

// Stop gracefully shuts down the admin server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// InspectorFromStore adapts a cursorstore.Store into a CursorInspector. It
// passes 0 as the currentNonce hint and only reads: a shard with no saved
// cursor is reported as absent, never seeded.
func InspectorFromStore(store cursorstore.Store) CursorInspector {
	return func(ctx context.Context, shardID uint32) (uint64, bool, error) {
		return store.LoadCursor(ctx, shardID, 0)
	}
}

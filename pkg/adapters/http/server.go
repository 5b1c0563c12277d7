// Package http serves the read-only admin API of a running system: health,
// session statistics, metrics, stored aggregates and a live event stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/internal/xjson"
	"github.com/aretw0/wflow/pkg/actor"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/eventstore"
	"github.com/aretw0/wflow/pkg/observability"
	"github.com/aretw0/wflow/pkg/ports"
)

// Supervisor is the part of the guardian the API reads from.
type Supervisor interface {
	HealthCheck(ctx context.Context) actor.Health
	Stats(ctx context.Context) actor.SessionStats
}

// Server handles the admin routes.
type Server struct {
	Supervisor  Supervisor
	Store       ports.EventStore
	Gatherer    prometheus.Gatherer
	Broadcaster *observability.Broadcaster
	Version     string
	logger      *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithGatherer exposes the registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithBroadcaster enables the /events stream.
func WithBroadcaster(b *observability.Broadcaster) Option {
	return func(s *Server) {
		s.Broadcaster = b
	}
}

func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the admin HTTP handler.
func NewHandler(sup Supervisor, store ports.EventStore, opts ...Option) http.Handler {
	server := &Server{
		Supervisor: sup,
		Store:      store,
		Version:    "dev",
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/stats", server.GetStats)
	if server.Gatherer != nil {
		r.Handle("/metrics", observability.Handler(server.Gatherer))
	}
	r.Route("/aggregates", func(r chi.Router) {
		r.Get("/", server.ListAggregates)
		r.Get("/{id}/events", server.GetAggregateEvents)
		r.Get("/{id}/state", server.GetAggregateState)
	})
	r.Get("/events", server.SubscribeEvents)
	r.Get("/events/history", server.QueryEvents)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Supervisor.HealthCheck(r.Context()))
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "wflow",
		"version": s.Version,
	})
}

// GetStats handles GET /stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Supervisor.Stats(r.Context()))
}

// ListAggregates handles GET /aggregates.
func (s *Server) ListAggregates(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.ListAggregates(r.Context())
	if err != nil {
		s.fail(w, "ListAggregates", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"aggregates": ids})
}

// GetAggregateEvents handles GET /aggregates/{id}/events.
func (s *Server) GetAggregateEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := s.Store.GetEvents(r.Context(), id)
	if err != nil {
		s.fail(w, "GetAggregateEvents", err)
		return
	}
	if len(events) == 0 {
		http.Error(w, fmt.Sprintf("aggregate %s not found", id), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

// aggregateState is the body of GET /aggregates/{id}/state.
type aggregateState struct {
	AggregateID string           `json:"aggregate_id"`
	Phase       domain.Phase     `json:"phase"`
	State       xjson.RawMessage `json:"state"`
}

// GetAggregateState handles GET /aggregates/{id}/state.
func (s *Server) GetAggregateState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := s.Store.GetEvents(r.Context(), id)
	if err != nil {
		s.fail(w, "GetAggregateState", err)
		return
	}
	if len(events) == 0 {
		http.Error(w, fmt.Sprintf("aggregate %s not found", id), http.StatusNotFound)
		return
	}

	state, err := s.Store.GetCurrentState(r.Context(), id)
	if err != nil {
		s.fail(w, "GetAggregateState", err)
		return
	}
	raw, err := domain.MarshalState(state)
	if err != nil {
		s.fail(w, "GetAggregateState", err)
		return
	}
	s.writeJSON(w, http.StatusOK, aggregateState{AggregateID: id, Phase: state.Phase(), State: raw})
}

// QueryEvents handles GET /events/history. The optional type, since and until
// query parameters filter the stored events of every aggregate; since and until
// take an RFC 3339 timestamp or a duration back from now.
func (s *Server) QueryEvents(w http.ResponseWriter, r *http.Request) {
	querier, ok := s.Store.(ports.EventQuerier)
	if !ok {
		http.Error(w, "Event queries not supported", http.StatusNotFound)
		return
	}

	params := r.URL.Query()
	now := time.Now()
	since, err := eventstore.ParseTimeBound(params.Get("since"), now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	until, err := eventstore.ParseTimeBound(params.Get("until"), now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := querier.QueryEvents(r.Context(), ports.EventQuery{
		Type:  domain.EventType(params.Get("type")),
		Since: since,
		Until: until,
	})
	if err != nil {
		s.fail(w, "QueryEvents", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// SubscribeEvents handles GET /events (SSE). The optional session_id query
// parameter narrows the stream to one session.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if s.Broadcaster == nil {
		http.Error(w, "Event stream disabled", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := r.URL.Query().Get("session_id")
	ch, cancel := s.Broadcaster.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("SSE: Client subscribed", "session_id", sessionID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", sessionID)
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := xjson.Marshal(n)
			if err != nil {
				s.logger.Error("SSE: Encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Event.Type(), data)
			flusher.Flush()
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.logger.Error("Admin request failed", "op", op, "err", err)
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := xjson.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// within shutdownTimeout.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}

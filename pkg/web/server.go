// Package web serves read-only queries against the current circuit.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/ritzau/circuit-index/pkg/circuit"
	"github.com/ritzau/circuit-index/pkg/index"
	"github.com/ritzau/circuit-index/pkg/logging"
	"github.com/ritzau/circuit-index/pkg/model"
	"github.com/ritzau/circuit-index/pkg/pubsub"
	"github.com/ritzau/circuit-index/pkg/spikes"
)

// NodeEdges is the response of the edge lookup endpoint
type NodeEdges struct {
	Population string          `json:"population"`
	Direction  model.Direction `json:"direction"`
	Node       int             `json:"node"`
	Ranges     [2]int32        `json:"ranges"`   // Slice of range_to_edge_id
	Spans      [][2]int32      `json:"spans"`    // Edge-id spans, ascending
	EdgeIDs    []int32         `json:"edge_ids"` // Every incident edge id
}

// NodeSpikes is the response of the spike lookup endpoint
type NodeSpikes struct {
	Population string    `json:"population"`
	GID        int       `json:"gid"`
	Range      [2]int32  `json:"range"`
	Timestamps []float32 `json:"timestamps"`
}

// Server represents the query server
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher

	mu      sync.RWMutex
	circuit *circuit.Circuit
}

// NewServer creates a new query server
func NewServer() *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// circuit_status: new subscribers only need the current state
	ssePublisher.ConfigureTopic(pubsub.TopicCircuitStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// SetCircuit swaps the served circuit
func (s *Server) SetCircuit(c *circuit.Circuit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuit = c
}

func (s *Server) current() *circuit.Circuit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.circuit
}

// PublishStatus publishes a circuit status event
func (s *Server) PublishStatus(status pubsub.CircuitStatus) {
	if err := s.publisher.Publish(pubsub.TopicCircuitStatus, status.State, status); err != nil {
		logging.Warn("failed to publish circuit status", "error", err)
	}
}

// Handler returns the router wrapped in request logging
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("query server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Ends open SSE streams so Shutdown does not wait on them
	s.publisher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/circuit_status", s.handleSubscribeCircuitStatus).Methods("GET")

	s.router.HandleFunc("/api/circuit", s.handleCircuit).Methods("GET")
	s.router.HandleFunc("/api/edges/{population}/{direction}/nodes/{id}", s.handleNodeEdges).Methods("GET")
	s.router.HandleFunc("/api/spikes/{population}/nodes/{id}", s.handleNodeSpikes).Methods("GET")
}

func (s *Server) handleSubscribeCircuitStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial comment establishes the stream before the first event
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicCircuitStatus)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "SSE client went away", "error", err)
				return
			}
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	c := s.current()
	if c == nil {
		http.Error(w, "Circuit not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, r, c.Summarize())
}

func (s *Server) handleNodeEdges(w http.ResponseWriter, r *http.Request) {
	c := s.current()
	if c == nil {
		http.Error(w, "Circuit not available", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)
	ep, ok := c.Edges[vars["population"]]
	if !ok {
		http.Error(w, fmt.Sprintf("Edge population not found: %s", vars["population"]), http.StatusNotFound)
		return
	}
	dir, err := model.ParseDirection(vars["direction"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	node, ok := parseID(w, vars["id"])
	if !ok {
		return
	}

	idx := ep.Index.Get(dir)
	spans, err := idx.Spans(node)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	ids, err := idx.Lookup(node)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	nr := idx.NodeIDToRanges[node]
	resp := NodeEdges{
		Population: vars["population"],
		Direction:  dir,
		Node:       node,
		Ranges:     [2]int32{nr.Start, nr.End},
		Spans:      make([][2]int32, len(spans)),
		EdgeIDs:    ids,
	}
	for i, sp := range spans {
		resp.Spans[i] = [2]int32{sp.Start, sp.End}
	}
	writeJSON(w, r, resp)
}

func (s *Server) handleNodeSpikes(w http.ResponseWriter, r *http.Request) {
	c := s.current()
	if c == nil {
		http.Error(w, "Circuit not available", http.StatusServiceUnavailable)
		return
	}

	vars := mux.Vars(r)
	sp, ok := c.Spikes[vars["population"]]
	if !ok {
		http.Error(w, fmt.Sprintf("Spike population not found: %s", vars["population"]), http.StatusNotFound)
		return
	}
	gid, ok := parseID(w, vars["id"])
	if !ok {
		return
	}

	times, err := spikes.Times(sp.Table, sp.GIDToRange, gid)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	rg := sp.GIDToRange[gid]
	writeJSON(w, r, NodeSpikes{
		Population: vars["population"],
		GID:        gid,
		Range:      [2]int32{rg.Start, rg.End},
		Timestamps: times,
	})
}

func parseID(w http.ResponseWriter, raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid node id %q", raw), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	var oor *index.OutOfRangeError
	if errors.As(err, &oor) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := gojson.NewEncoder(w).Encode(v); err != nil {
		logging.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Package httpserver exposes the state of a party over HTTP: the Prometheus
// metrics and JSON views of the stores and the result.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.dedis.ch/mpcsum/peer"
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

const shutdownTimeout = 5 * time.Second

// Result is the body of /result.
type Result struct {
	Ready bool   `json:"ready"`
	Sum   uint64 `json:"sum,omitempty"`
}

// StatusHandler serves the read-only views of a party.
type StatusHandler struct {
	party peer.Peer
}

// NewStatusHandler creates a handler over the given party.
func NewStatusHandler(party peer.Peer) *StatusHandler {
	return &StatusHandler{party: party}
}

// RegisterRoutes adds the routes of the handler to the router.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/shares", h.shares)
	r.Get("/sums", h.sums)
	r.Get("/result", h.result)
}

func (h *StatusHandler) shares(w http.ResponseWriter, r *http.Request) {
	records := h.party.GetShares()
	if records == nil {
		records = []types.ShareRecord{}
	}
	writeJSON(w, records)
}

func (h *StatusHandler) sums(w http.ResponseWriter, r *http.Request) {
	records := h.party.GetSums()
	if records == nil {
		records = []types.SumRecord{}
	}
	writeJSON(w, records)
}

func (h *StatusHandler) result(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.party.GetResult()
	writeJSON(w, Result{Ready: ok, Sum: sum})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// Server runs the status handler on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, party peer.Peer) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	NewStatusHandler(party).RegisterRoutes(r)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background. Errors other than the shutdown are logged.
func (s *Server) Start() {
	go func() {
		log.Info().Msgf("status server listening on %s", s.srv.Addr)
		err := s.srv.ListenAndServe()
		if err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status server stopped")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/sentinel/pkg/analyzer"
	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/ratelimit"
	"github.com/cuemby/sentinel/pkg/types"
)

// FailoverSource exposes the resolver selection state
type FailoverSource interface {
	Snapshot() types.FailoverState
	LastResults() map[string]types.ProbeResult
}

// LimiterSource exposes restart budget usage
type LimiterSource interface {
	Snapshot() map[string]ratelimit.Usage
}

// AnalyzerSource exposes per-container risk state
type AnalyzerSource interface {
	Snapshots() []analyzer.TrackerSnapshot
}

// EventSource exposes recently published events
type EventSource interface {
	Recent() []*events.Event
}

// Sources feeds the /status endpoint. Nil sources are omitted.
type Sources struct {
	Failover FailoverSource
	Limiter  LimiterSource
	Analyzer AnalyzerSource
	Events   EventSource
}

// HealthServer provides HTTP health, status and metrics endpoints
type HealthServer struct {
	sources    Sources
	mux        *http.ServeMux
	middleware *Middleware
}

// NewHealthServer creates a new status HTTP server
func NewHealthServer(sources Sources) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		sources: sources,
		mux:     mux,
	}

	// Register endpoints
	mux.HandleFunc("/health", getOnly(metrics.HealthHandler()))
	mux.HandleFunc("/ready", getOnly(metrics.ReadyHandler()))
	mux.HandleFunc("/live", getOnly(metrics.LivenessHandler()))
	mux.HandleFunc("/status", getOnly(hs.statusHandler))
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// WithMiddleware puts access control and rate limiting in front of every endpoint
func (hs *HealthServer) WithMiddleware(m *Middleware) *HealthServer {
	hs.middleware = m
	return hs
}

// Serve listens on addr until ctx is done, then shuts down gracefully
func (hs *HealthServer) Serve(ctx context.Context, addr string, gracePeriod time.Duration) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.GetHandler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger := log.WithComponent("api")
		logger.Info().Str("address", addr).Msg("Status server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// StatusResponse is the /status document
type StatusResponse struct {
	Timestamp  time.Time                    `json:"timestamp"`
	Failover   *types.FailoverState         `json:"failover,omitempty"`
	Probes     map[string]types.ProbeResult `json:"probes,omitempty"`
	Restarts   map[string]ratelimit.Usage   `json:"restarts,omitempty"`
	Containers []analyzer.TrackerSnapshot   `json:"containers,omitempty"`
	Events     []*events.Event              `json:"events,omitempty"`
	Components map[string]string            `json:"components,omitempty"`
}

// Status assembles the current status document
func (hs *HealthServer) Status() StatusResponse {
	resp := StatusResponse{
		Timestamp:  time.Now(),
		Components: metrics.GetHealth().Components,
	}
	if hs.sources.Failover != nil {
		state := hs.sources.Failover.Snapshot()
		resp.Failover = &state
		resp.Probes = hs.sources.Failover.LastResults()
	}
	if hs.sources.Limiter != nil {
		resp.Restarts = hs.sources.Limiter.Snapshot()
	}
	if hs.sources.Analyzer != nil {
		resp.Containers = hs.sources.Analyzer.Snapshots()
	}
	if hs.sources.Events != nil {
		resp.Events = hs.sources.Events.Recent()
	}
	return resp
}

func (hs *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(hs.Status())
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	if hs.middleware != nil {
		return hs.middleware.Wrap(hs.mux)
	}
	return hs.mux
}

// Package bridge is the realtime control plane between the agent
// runtime and the browser extension: a WebSocket endpoint for the
// extension, the dispatcher that forwards queued browser actions, and
// read-only debug endpoints over the conversation log.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coverbridge/coverbridge/internal/agent"
	"github.com/coverbridge/coverbridge/internal/convlog"
	"github.com/coverbridge/coverbridge/internal/observability"
	"github.com/coverbridge/coverbridge/internal/rendezvous"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 15 * time.Second
	wsWriteWait       = 10 * time.Second
)

// Options configures the bridge server.
type Options struct {
	Host    string
	Port    int
	Version string

	Provider   agent.LLMProvider
	Registry   *agent.ToolRegistry
	LoopConfig agent.LoopConfig

	Rendezvous *rendezvous.Rendezvous
	ConvStore  *convlog.Store

	ApprovalTimeout time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// OnConnect runs when a new extension session replaces the
	// previous one, before any message is handled.
	OnConnect func()
}

// Server accepts the extension connection and serves the debug
// surface. One extension session is active at a time; a new
// connection displaces the old one.
type Server struct {
	opts     Options
	logger   *observability.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	current *session
}

// NewServer creates a bridge server.
func NewServer(opts Options) *Server {
	if opts.ApprovalTimeout <= 0 {
		opts.ApprovalTimeout = 300 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}
	return &Server{
		opts:   opts,
		logger: logger.WithFields("component", "bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP mux for the main port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/debug/sessions", s.handleDebugSessions)
	mux.HandleFunc("/debug/sessions/", s.handleDebugSession)
	mux.HandleFunc("/debug/stats", s.handleDebugStats)
	mux.HandleFunc("/debug/search", s.handleDebugSearch)
	mux.HandleFunc("/debug/pending", s.handleDebugPending)
	return s.instrument(mux)
}

// MetricsHandler returns the mux for the metrics port.
func (s *Server) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves the main port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info(ctx, "bridge listening", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// RunMetrics serves the metrics port until ctx is cancelled.
func (s *Server) RunMetrics(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.opts.Host, port),
		Handler:           s.MetricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := newSession(s, conn)

	// Latest connection wins; the displaced session's waiters resolve
	// by timeout.
	s.mu.Lock()
	prev := s.current
	s.current = sess
	s.mu.Unlock()
	if prev != nil {
		s.logger.Info(r.Context(), "displacing previous extension session", "session_id", prev.id)
		prev.close()
	}
	if s.opts.OnConnect != nil {
		s.opts.OnConnect()
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectionOpened()
	}

	sess.run()

	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectionClosed()
	}
	s.mu.Lock()
	if s.current == sess {
		s.current = nil
	}
	s.mu.Unlock()
}

// RequestApproval implements the approval round-trip for sensitive
// tool actions: it sends an action_request envelope on the current
// session and blocks until the extension answers or the approval
// window closes.
func (s *Server) RequestApproval(ctx context.Context, action, summary string) (bool, error) {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess == nil {
		return false, fmt.Errorf("no extension connected")
	}

	token := uuid.NewString()
	waiter, err := s.opts.Rendezvous.Prepare(token)
	if err != nil {
		return false, err
	}
	if err := sess.sendEnvelope(&Envelope{
		Type:    EnvelopeActionRequest,
		Token:   token,
		Action:  action,
		Summary: summary,
	}); err != nil {
		s.opts.Rendezvous.Store().Expire(token)
		return false, err
	}
	sess.logEvent(convlog.EventApproval, map[string]any{"token": token, "action": action, "phase": "requested"})

	payload, err := s.opts.Rendezvous.WaitPrepared(ctx, token, waiter, s.opts.ApprovalTimeout)
	if err != nil {
		return false, fmt.Errorf("approval not answered: %w", err)
	}
	approved, _ := payload["approved"].(bool)
	sess.logEvent(convlog.EventApproval, map[string]any{"token": token, "action": action, "approved": approved})
	return approved, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "coverbridge",
		"version": s.opts.Version,
	})
}

func (s *Server) handleDebugSessions(w http.ResponseWriter, r *http.Request) {
	if s.opts.ConvStore == nil {
		http.Error(w, "conversation log disabled", http.StatusNotFound)
		return
	}
	sessions, err := s.opts.ConvStore.ListSessions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleDebugSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.ConvStore == nil {
		http.Error(w, "conversation log disabled", http.StatusNotFound)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/debug/sessions/")
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	events, err := s.opts.ConvStore.ReadSession(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "events": events})
}

func (s *Server) handleDebugStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.ConvStore == nil {
		http.Error(w, "conversation log disabled", http.StatusNotFound)
		return
	}
	stats, err := s.opts.ConvStore.ToolUsageStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": stats})
}

func (s *Server) handleDebugSearch(w http.ResponseWriter, r *http.Request) {
	if s.opts.ConvStore == nil {
		http.Error(w, "conversation log disabled", http.StatusNotFound)
		return
	}
	query := r.URL.Query().Get("q")
	hits, err := s.opts.ConvStore.Search(query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "hits": hits})
}

func (s *Server) handleDebugPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.opts.Rendezvous.QueueDepth(),
		"live_tokens": s.opts.Rendezvous.LiveTokens(),
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			// The upgrader needs the raw ResponseWriter to hijack.
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

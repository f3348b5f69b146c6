package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/history"
	"vinscan/internal/logging"
	"vinscan/internal/observation"
	"vinscan/internal/services"
	"vinscan/internal/session"
	"vinscan/internal/vin"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-ID"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.handler = srv.routes(cfg.Paths.APIToken)
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleDescribeSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCancelSession)
	mux.HandleFunc("POST /api/sessions/{id}/observations", s.handleSubmit)
	mux.HandleFunc("GET /api/decisions", s.handleDecisions)
	return withRequestID(authMiddleware(strings.TrimSpace(token), mux.ServeHTTP))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.shutdown(server)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	s.shutdown(server)
}

// shutdown stops server and forgets it if it is still the current one.
func (s *apiServer) shutdown(server *http.Server) {
	if server == nil {
		return
	}
	s.mu.Lock()
	if s.server == server {
		s.server = nil
		s.listener = nil
	}
	s.mu.Unlock()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: s.daemon.manager.List()})
}

func (s *apiServer) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req api.StartSessionRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.daemon.manager.Defaults()
	if req.Capacity != 0 {
		opts.Capacity = req.Capacity
	}
	if strings.TrimSpace(req.Policy) != "" {
		policy, err := vin.ParsePolicy(req.Policy)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Policy = policy
	}
	if req.MinConfidence != 0 {
		opts.MinConfidence = req.MinConfidence
	}

	handle, err := s.daemon.manager.Start(opts)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	ctx := services.WithSessionID(r.Context(), string(handle))
	logging.WithContext(ctx, s.logger).Info("session started",
		logging.String("policy", opts.Policy.String()),
		logging.Int("capacity", opts.Capacity),
		logging.Float64("min_confidence", opts.MinConfidence),
	)
	s.writeJSON(w, http.StatusCreated, api.StartSessionResponse{ID: string(handle)})
}

func (s *apiServer) handleDescribeSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.daemon.manager.Describe(session.Handle(r.PathValue("id")))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *apiServer) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	handle := session.Handle(r.PathValue("id"))
	if err := s.daemon.manager.Cancel(handle); err != nil {
		s.writeSessionError(w, err)
		return
	}
	ctx := services.WithSessionID(r.Context(), string(handle))
	logging.WithContext(ctx, s.logger).Info("session cancelled",
		logging.String(logging.FieldEventType, logging.EventSessionCancelled),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	handle := session.Handle(r.PathValue("id"))
	var raw observation.Raw
	if err := decodeBody(w, r, &raw, false); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := s.daemon.manager.Submit(r.Context(), handle, raw)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	info, err := s.daemon.manager.Describe(handle)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	zoom, err := s.daemon.manager.Zoom(handle, raw.Source)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SubmitResponse{
		Decision: decision,
		Zoom:     zoom,
		State:    info.State,
	})
}

func (s *apiServer) handleDecisions(w http.ResponseWriter, r *http.Request) {
	store := s.daemon.store
	if store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "decision history is disabled")
		return
	}

	query := r.URL.Query()
	q := history.Query{VIN: query.Get("vin")}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}
	if value := strings.TrimSpace(query.Get("since")); value != "" {
		since, err := time.Parse(time.RFC3339, value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since (want RFC3339)")
			return
		}
		q.Since = since
	}

	entries, err := store.List(r.Context(), q)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := store.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, http.StatusOK, api.DecisionListResponse{Decisions: entries, Total: total})
}

func (s *apiServer) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidConfiguration):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrUnknownSession):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionTerminated):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrTooManySessions):
		s.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error("session request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody reads one JSON value. An empty body is accepted only when
// allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// withRequestID propagates X-Request-ID, minting one when absent, so log
// lines from one request share a correlation id.
func withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/catalogops/syncboard/internal/pipeline"
	"github.com/catalogops/syncboard/internal/syncstate"
)

type Logger interface {
	Printf(format string, args ...any)
}

// TriggerClient starts an upstream sync run. Satisfied by
// pipeline.HTTPClient; swapped for a fake in tests.
type TriggerClient interface {
	TriggerSync(ctx context.Context, source syncstate.Source) (pipeline.TriggerResult, error)
}

type ServerConfig struct {
	// APIToken guards mutating endpoints. Empty disables auth, for
	// local development only.
	APIToken     string
	MaxBodyBytes int64
	Logger       Logger
}

// Server is the dashboard's own HTTP surface: snapshot reads for browsers,
// notification acks, the manual trigger proxy, and the live WebSocket feed.
type Server struct {
	store   *syncstate.Store
	trigger TriggerClient
	cfg     ServerConfig
}

func NewServer(store *syncstate.Store, trigger TriggerClient, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		store:   store,
		trigger: trigger,
		cfg:     cfg,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/" && r.Method == http.MethodGet {
		s.handleDashboard(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodGet:
		s.handleStatus(w, r)
	case len(parts) == 2 && parts[1] == "logs" && r.Method == http.MethodGet:
		s.handleLogs(w, r)
	case len(parts) == 2 && parts[1] == "notifications" && r.Method == http.MethodGet:
		s.handleNotifications(w, r)
	case len(parts) == 4 && parts[1] == "notifications" && parts[3] == "ack" && r.Method == http.MethodPost:
		s.handleAckNotification(w, r, parts[2])
	case len(parts) == 3 && parts[1] == "sync" && r.Method == http.MethodPost:
		s.handleTriggerSync(w, r, parts[2])
	case len(parts) == 4 && parts[1] == "sources" && parts[3] == "reset" && r.Method == http.MethodPost:
		s.handleResetSource(w, r, parts[2])
	case len(parts) == 2 && parts[1] == "ws" && r.Method == http.MethodGet:
		s.handleWebSocket(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.State())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.State()
	logs := snapshot.Logs
	limit := parseBoundedInt(r.URL.Query().Get("limit"), len(logs), 1, len(logs))
	if limit < len(logs) {
		// Newest entries win when the client asks for fewer.
		logs = logs[len(logs)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly, err := parseOptionalBool(r.URL.Query().Get("unread"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unread must be true or false", getCorrelationID(r))
		return
	}
	notifications := s.store.State().Notifications
	if unreadOnly {
		filtered := notifications[:0:0]
		for _, n := range notifications {
			if !n.Read {
				filtered = append(filtered, n)
			}
		}
		notifications = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleAckNotification(w http.ResponseWriter, r *http.Request, id string) {
	if authErr := s.authorize(r); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, getCorrelationID(r))
		return
	}
	if !s.store.AckNotification(id) {
		writeError(w, http.StatusNotFound, "not_found", "notification not found", getCorrelationID(r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "read"})
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request, rawSource string) {
	if authErr := s.authorize(r); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, getCorrelationID(r))
		return
	}
	source := syncstate.Source(rawSource)
	if !syncstate.ValidSource(source) {
		writeError(w, http.StatusNotFound, "unknown_source", "unknown sync source: "+rawSource, getCorrelationID(r))
		return
	}
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "trigger client not configured", getCorrelationID(r))
		return
	}

	// Optimistic: the pending flag goes up now and comes down only when a
	// corroborating event or poll snapshot arrives.
	_ = s.store.MarkTriggerPending(source)

	result, err := s.trigger.TriggerSync(r.Context(), source)
	if err != nil {
		s.logf("trigger %s failed: %v", source, err)
		s.store.Notify(syncstate.NotifyError, "Sync trigger failed",
			"Could not start "+rawSource+" sync: "+err.Error())
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error(), getCorrelationID(r))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"source": rawSource,
		"jobId":  result.JobID,
	})
}

func (s *Server) handleResetSource(w http.ResponseWriter, r *http.Request, rawSource string) {
	if authErr := s.authorize(r); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, getCorrelationID(r))
		return
	}
	source := syncstate.Source(rawSource)
	if err := s.store.ResetSource(source); err != nil {
		writeError(w, http.StatusNotFound, "unknown_source", "unknown sync source: "+rawSource, getCorrelationID(r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"source": rawSource, "status": "reset"})
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Printf(format, args...)
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}

func parseBoundedInt(raw string, fallback, min, max int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	if parsed < min {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}

func parseOptionalBool(raw string, fallback bool) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseBool(raw)
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// with a short drain window.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

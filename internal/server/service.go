// Package server exposes chat sessions over HTTP.
//
// Every session owns an isolated session.Session. The session table is guarded
// by the service mutex; calls on one session are serialized by its own mutex,
// so concurrent requests to different sessions never share a database handle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theirongolddev/dbchat/internal/errs"
	"github.com/theirongolddev/dbchat/internal/logging"
	"github.com/theirongolddev/dbchat/internal/session"
	"github.com/theirongolddev/dbchat/internal/store"
)

// Config controls the server runtime behavior.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	IdleTimeout    time.Duration // sessions unused this long are closed
	ReapInterval   time.Duration
	EventsBuffer   int
	NewSession     func() *session.Session
	Logger         *slog.Logger
}

// Event records a session lifecycle change.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Detail    string    `json:"detail,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	Sessions        int       `json:"sessions"`
	Loaded          int       `json:"loaded"`
	IdleTimeoutSec  int       `json:"idle_timeout_sec"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// entry fields are guarded by mu. closed is set once the session has been
// closed; a request that looked the entry up before removal must not use it.
type entry struct {
	mu       sync.Mutex
	sess     *session.Session
	lastUsed time.Time
	closed   bool
}

// Service provides the session table and HTTP API.
type Service struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	sessions    map[string]*entry
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new service with the provided config.
func New(cfg Config) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8765"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.NewSession == nil {
		cfg.NewSession = func() *session.Session { return session.New(session.Options{Logger: cfg.Logger}) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		sessions:  make(map[string]*entry),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/sessions", s.handleCreate)
	mux.HandleFunc("POST /v1/sessions/{id}/upload", s.handleUpload)
	mux.HandleFunc("POST /v1/sessions/{id}/ask", s.handleAsk)
	mux.HandleFunc("GET /v1/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDelete)
	return mux
}

// Run serves HTTP and reaps idle sessions until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("server listening", slog.String("addr", s.cfg.Addr))

	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := server.Shutdown(shutdownCtx)
			s.Close()
			return err
		case <-ticker.C:
			s.reapIdle(time.Now())
		case err := <-errCh:
			s.Close()
			return fmt.Errorf("http server: %w", err)
		}
	}
}

// Close ends every session.
func (s *Service) Close() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for id, e := range entries {
		e.mu.Lock()
		e.closed = true
		if err := e.sess.Close(); err != nil {
			s.logger.Warn("closing session", slog.String("session", id), slog.Any("error", err))
		}
		e.mu.Unlock()
	}
}

// reapIdle closes sessions unused for longer than the idle timeout. A session
// with a request in flight is busy, not idle, and is skipped.
func (s *Service) reapIdle(now time.Time) int {
	s.mu.RLock()
	entries := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	var stale []string
	for id, e := range entries {
		if !e.mu.TryLock() {
			continue
		}
		if now.Sub(e.lastUsed) > s.cfg.IdleTimeout {
			stale = append(stale, id)
		}
		e.mu.Unlock()
	}

	reaped := 0
	for _, id := range stale {
		if s.remove(id) {
			reaped++
			s.publishEvent("expired", id, "")
		}
	}
	return reaped
}

func (s *Service) create() string {
	id := store.NewID()
	e := &entry{sess: s.cfg.NewSession(), lastUsed: time.Now()}

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	s.publishEvent("created", id, "")
	return id
}

// with runs fn holding the session's own lock.
func (s *Service) with(id string, fn func(*session.Session) error) (bool, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, nil
	}
	defer func() { e.lastUsed = time.Now() }()
	e.lastUsed = time.Now()
	return true, fn(e.sess)
}

func (s *Service) remove(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if err := e.sess.Close(); err != nil {
		s.logger.Warn("closing session", slog.String("session", id), slog.Any("error", err))
	}
	return true
}

func (s *Service) publishEvent(typ, sessionID, detail string) {
	s.mu.Lock()
	s.nextEventID++
	ev := Event{
		ID:        s.nextEventID,
		Type:      typ,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Detail:    detail,
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	st := Status{
		StartedAt:       s.startedAt,
		Sessions:        len(s.sessions),
		IdleTimeoutSec:  int(s.cfg.IdleTimeout.Seconds()),
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.sess.HasDatabase() {
			st.Loaded++
		}
		e.mu.Unlock()
	}
	return st
}

// SessionIDs lists live sessions in creation order.
func (s *Service) SessionIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

type turnJSON struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func historyJSON(turns []session.Turn) []turnJSON {
	out := make([]turnJSON, len(turns))
	for i, t := range turns {
		out[i] = turnJSON{Role: string(t.Role), Content: t.Content, At: t.At}
	}
	return out
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleCreate(w http.ResponseWriter, _ *http.Request) {
	id := s.create()
	var history []turnJSON
	_, _ = s.with(id, func(sess *session.Session) error {
		history = historyJSON(sess.History())
		return nil
	})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "history": history})
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_upload", "multipart field \"file\" is required: "+err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	var res session.LoadResult
	found, err := s.with(id, func(sess *session.Session) error {
		var loadErr error
		res, loadErr = sess.Load(r.Context(), header.Filename, file)
		return loadErr
	})
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "unknown session "+id)
		return
	}
	if err != nil {
		s.publishEvent("load_failed", id, err.Error())
		writeKindError(w, err)
		return
	}

	s.publishEvent("loaded", id, res.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       res.Name,
		"kind":       res.Kind,
		"tables":     res.Tables,
		"statements": res.Report.Executed,
		"summary":    res.Summary(),
	})
}

func (s *Service) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}

	var answer string
	found, err := s.with(id, func(sess *session.Session) error {
		var askErr error
		answer, askErr = sess.Ask(r.Context(), body.Question)
		return askErr
	})
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "unknown session "+id)
		return
	}
	if errors.Is(err, session.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, "empty_question", err.Error())
		return
	}
	if err != nil {
		writeKindError(w, err)
		return
	}
	s.publishEvent("answered", id, "")
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var history []turnJSON
	found, _ := s.with(id, func(sess *session.Session) error {
		history = historyJSON(sess.History())
		return nil
	})
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "unknown session "+id)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.remove(id) {
		writeError(w, http.StatusNotFound, "not_found", "unknown session "+id)
		return
	}
	s.publishEvent("closed", id, "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": code, "message": message})
}

// writeKindError maps an error category to a status code.
func writeKindError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.IO:
		status = http.StatusBadRequest
	case errs.UnsupportedFile:
		status = http.StatusUnsupportedMediaType
	case errs.Query, errs.Normalization:
		status = http.StatusUnprocessableEntity
	case errs.NoDatabase:
		status = http.StatusConflict
	default:
		kind = "internal"
	}
	writeError(w, status, string(kind), err.Error())
}

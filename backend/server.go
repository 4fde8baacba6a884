// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/ttbt-io/lineupkeeper/backend/cache"
	"github.com/ttbt-io/lineupkeeper/backend/chart"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/ttbt-io/lineupkeeper/backend/report"
	"github.com/ttbt-io/lineupkeeper/backend/roster"
	"github.com/ttbt-io/lineupkeeper/backend/search"
)

// tombstoneRetention is how long deleted saved lineups are kept on disk.
const tombstoneRetention = 30 * 24 * time.Hour

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

func busyResponse(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	http.Error(w, "Too Many Requests: Server is busy", http.StatusTooManyRequests)
}

func parsePagination(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil {
			offset = val
		}
	}

	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Options represent server options.
type Options struct {
	Addr       string
	Cert       *tls.Certificate
	DataDir    string
	RosterPath string
	// TopK is the default number of lineups returned by the search.
	TopK           int
	Debug          bool
	AllowedOrigins []string
	Storage        *storage.Storage
	LineupStore    *LineupStore
	// Cache memoizes search results. Nil disables it.
	Cache    cache.Results
	Listener net.Listener
	// MaxSearches bounds concurrent CPU-bound searches. Zero means GOMAXPROCS.
	MaxSearches int
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
	hub        *Hub
}

// Shutdown gracefully shuts down the server and disconnects live sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	hub, handler, err := NewServerHandler(opts)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	go func() {
		var err error
		if opts.Listener != nil {
			if httpServer.TLSConfig != nil {
				log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
				err = httpServer.ServeTLS(opts.Listener, "", "")
			} else {
				log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
				err = httpServer.Serve(opts.Listener)
			}
		} else {
			log.Printf("Server starting on port %s...", opts.Addr)
			if httpServer.TLSConfig != nil {
				err = httpServer.ListenAndServeTLS("", "")
			} else {
				err = httpServer.ListenAndServe()
			}
		}

		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{
		httpServer: httpServer,
		hub:        hub,
	}, nil
}

// NewServerHandler creates and configures the HTTP handler for the server.
// The roster must be readable: a missing or malformed roster is fatal.
func NewServerHandler(opts Options) (*Hub, http.Handler, error) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	lStore := opts.LineupStore
	if lStore == nil {
		lStore = NewLineupStore(opts.DataDir, opts.Storage)
	}

	debugf := func(string, ...any) {}
	if opts.Debug {
		debugf = func(f string, a ...any) {
			log.Printf("[DEBUG BACKEND] "+f, a...)
		}
	}

	metrics := NewMetrics()
	engine := NewEngine(opts.RosterPath, opts.TopK, opts.Cache, metrics, debugf)
	engine.SetMaxSearches(opts.MaxSearches)
	if _, err := engine.Roster(); err != nil {
		return nil, nil, fmt.Errorf("roster: %w", err)
	}

	if n, err := lStore.PurgeDeleted(tombstoneRetention); err != nil {
		log.Printf("Warning: could not purge deleted lineups: %v", err)
	} else if n > 0 {
		log.Printf("Purged %d deleted lineups", n)
	}

	hub := NewHub(engine, metrics)
	go hub.Run()
	upgrader := newUpgrader(opts.AllowedOrigins)

	api := &apiHandler{
		engine:  engine,
		store:   lStore,
		hub:     hub,
		debugf:  debugf,
		maxBody: maxRequestBody,
		topK:    engine.TopK(),
		metrics: metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(metrics))
	r.Use(securityMiddleware)
	r.Use(cacheControlMiddleware)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
			ExposedHeaders: []string{"ETag"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/roster", api.getRoster)
		r.Post("/roster/reload", api.reloadRoster)

		r.Get("/lineups/best", api.getBest)
		r.Get("/lineups/best/chart.png", api.getBestChart)
		r.Get("/lineups/best/export.xlsx", api.getBestExport)
		r.Post("/lineups/evaluate", api.postEvaluate)
		r.Get("/lineups/evaluate/chart.png", api.getEvaluateChart)
		r.Get("/lineups/evaluate/card", api.getEvaluateCard)

		r.Get("/saved", api.listSaved)
		r.Post("/saved", api.createSaved)
		r.Get("/saved/{id}", api.getSaved)
		r.Delete("/saved/{id}", api.deleteSaved)
	})
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, upgrader, w, r, debugf)
	})

	return hub, r, nil
}

type apiHandler struct {
	engine  *Engine
	store   *LineupStore
	hub     *Hub
	debugf  func(string, ...any)
	maxBody int64
	topK    int
	metrics *Metrics
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// apiError is the JSON body of 4xx lineup responses.
type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"`
}

// writeLineupError maps lineup and roster errors to HTTP responses.
// unknownStatus is used for names that are not on the roster.
func writeLineupError(w http.ResponseWriter, err error, unknownStatus int) {
	var se *lineup.SelectionError
	switch {
	case errors.As(err, &se):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Kind: string(se.Kind), Message: se.Error(), Warning: se.Warning()})
	case errors.Is(err, lineup.ErrUnknownPlayer):
		writeJSON(w, unknownStatus, apiError{Kind: "unknown_player", Message: err.Error()})
	case errors.Is(err, lineup.ErrNotEnoughPlayers):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Kind: "not_enough_players", Message: err.Error()})
	case errors.Is(err, ErrBusy):
		busyResponse(w, retryAfterSearch)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Request canceled", http.StatusServiceUnavailable)
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, roster.ErrMissingColumn),
		errors.Is(err, roster.ErrDuplicatePlayer),
		errors.Is(err, roster.ErrEmpty):
		log.Printf("Roster unavailable: %v", err)
		http.Error(w, "Service Unavailable: roster could not be loaded", http.StatusServiceUnavailable)
	default:
		log.Printf("Internal Server Error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

type rosterResponse struct {
	Source   string          `json:"source"`
	Digest   string          `json:"digest"`
	LoadedAt time.Time       `json:"loadedAt"`
	Skipped  int             `json:"skipped"`
	Total    int             `json:"total"`
	Players  []roster.Player `json:"players"`
}

func (a *apiHandler) getRoster(w http.ResponseWriter, r *http.Request) {
	q := search.Parse(r.URL.Query().Get("q"))
	if err := q.Validate(); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	ros, err := a.engine.Roster()
	if err != nil {
		writeLineupError(w, err, http.StatusNotFound)
		return
	}
	players := q.Apply(ros.ByEstimatedRuns())
	limit, offset := parsePagination(r, 100, 500)
	writeJSON(w, http.StatusOK, rosterResponse{
		Source:   ros.Source,
		Digest:   ros.Digest,
		LoadedAt: ros.LoadedAt,
		Skipped:  ros.Skipped,
		Total:    len(players),
		Players:  paginate(players, limit, offset),
	})
}

func (a *apiHandler) reloadRoster(w http.ResponseWriter, r *http.Request) {
	ros, err := a.engine.Reload()
	if err != nil {
		writeLineupError(w, err, http.StatusNotFound)
		return
	}
	summary := summarize(ros)
	a.hub.Broadcast(Message{Type: MsgTypeRosterReloaded, Roster: summary})
	writeJSON(w, http.StatusOK, summary)
}

func (a *apiHandler) best(w http.ResponseWriter, r *http.Request) (*BestResult, bool) {
	player := r.URL.Query().Get("player")
	if err := validatePlayerName(player); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	k, err := parseTopK(r.URL.Query().Get("k"), a.topK)
	if err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	res, err := a.engine.Best(r.Context(), player, k)
	if err != nil {
		writeLineupError(w, err, http.StatusNotFound)
		return nil, false
	}
	return res, true
}

func (a *apiHandler) getBest(w http.ResponseWriter, r *http.Request) {
	res, ok := a.best(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *apiHandler) getBestChart(w http.ResponseWriter, r *http.Request) {
	rank := 1
	if s := r.URL.Query().Get("rank"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > maxTopK {
			http.Error(w, "Bad Request: invalid rank", http.StatusBadRequest)
			return
		}
		rank = v
	}
	res, ok := a.best(w, r)
	if !ok {
		return
	}
	if rank > len(res.Lineups) {
		http.Error(w, "Not Found: no lineup at that rank", http.StatusNotFound)
		return
	}
	l := res.Lineups[rank-1]
	title := fmt.Sprintf("Lineup #%d with %s: %.3f Estimated Runs", rank, res.Locked, l.TotalEstimatedRuns)
	a.writeChart(w, r, title, l.Breakdown())
}

func (a *apiHandler) getBestExport(w http.ResponseWriter, r *http.Request) {
	res, ok := a.best(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	title := fmt.Sprintf("Top %d lineups with %s", len(res.Lineups), res.Locked)
	if err := report.WriteLineups(&buf, title, res.Lineups); err != nil {
		log.Printf("Error writing report: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="top-lineups.xlsx"`)
	w.Write(buf.Bytes())
}

func (a *apiHandler) writeChart(w http.ResponseWriter, r *http.Request, title string, players []roster.Player) {
	png, err := chart.Breakdown(title, players)
	if err != nil {
		log.Printf("Error rendering chart: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	etag := generateETag(png)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type evaluateRequest struct {
	Players []string `json:"players"`
}

func (a *apiHandler) evaluate(w http.ResponseWriter, names []string) (lineup.Lineup, bool) {
	if err := validateSelection(names); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return lineup.Lineup{}, false
	}
	l, err := a.engine.Evaluate(names)
	if err != nil {
		writeLineupError(w, err, http.StatusUnprocessableEntity)
		return lineup.Lineup{}, false
	}
	return l, true
}

func (a *apiHandler) postEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody)).Decode(&req); err != nil {
		http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
		return
	}
	l, ok := a.evaluate(w, req.Players)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *apiHandler) getEvaluateChart(w http.ResponseWriter, r *http.Request) {
	l, ok := a.evaluate(w, r.URL.Query()["player"])
	if !ok {
		return
	}
	title := fmt.Sprintf("Manual Lineup: %.3f Estimated Runs", l.TotalEstimatedRuns)
	a.writeChart(w, r, title, l.Breakdown())
}

func (a *apiHandler) getEvaluateCard(w http.ResponseWriter, r *http.Request) {
	l, ok := a.evaluate(w, r.URL.Query()["player"])
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := lineup.WriteCard(&buf, l); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

// savedResponse is a saved lineup scored against the current roster. Score is
// nil when the selection no longer evaluates, e.g. a player left the roster.
type savedResponse struct {
	Lineup *SavedLineup   `json:"lineup"`
	Score  *lineup.Lineup `json:"score,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (a *apiHandler) score(l *SavedLineup) savedResponse {
	resp := savedResponse{Lineup: l}
	ev, err := a.engine.Evaluate(l.Players)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	ev.Locked = l.Locked
	resp.Score = &ev
	return resp
}

type createSavedRequest struct {
	Name    string   `json:"name"`
	Notes   string   `json:"notes"`
	Locked  string   `json:"locked"`
	Players []string `json:"players"`
}

func (a *apiHandler) createSaved(w http.ResponseWriter, r *http.Request) {
	var req createSavedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody)).Decode(&req); err != nil {
		http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
		return
	}
	l, ok := a.evaluate(w, req.Players)
	if !ok {
		return
	}
	if req.Locked != "" && !l.Contains(strings.TrimSpace(req.Locked)) {
		http.Error(w, "Bad Request: locked player is not in the lineup", http.StatusBadRequest)
		return
	}

	saved := &SavedLineup{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(req.Name),
		Notes:   req.Notes,
		Locked:  strings.TrimSpace(req.Locked),
		Players: l.Names(),
	}
	if err := ValidateSavedLineup(saved); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.store.SaveLineup(saved); err != nil {
		log.Printf("Internal Server Error during SaveLineup: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.debugf("Saved lineup %s (%s)", saved.ID, saved.Name)
	l.Locked = saved.Locked
	writeJSON(w, http.StatusCreated, savedResponse{Lineup: saved, Score: &l})
}

func (a *apiHandler) listSaved(w http.ResponseWriter, r *http.Request) {
	var all []*SavedLineup
	for l, err := range a.store.ListAllLineups() {
		if err != nil {
			log.Printf("Error listing lineups: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !l.Deleted() {
			all = append(all, l)
		}
	}
	limit, offset := parsePagination(r, 50, 100)
	page := paginate(all, limit, offset)
	out := make([]savedResponse, 0, len(page))
	for _, l := range page {
		out = append(out, a.score(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   len(all),
		"lineups": out,
	})
}

func (a *apiHandler) savedID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !isValidUUID(id) {
		http.Error(w, "Bad Request: id is missing or invalid", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (a *apiHandler) getSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := a.savedID(w, r)
	if !ok {
		return
	}
	l, err := a.store.LoadLineup(id)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		log.Printf("Internal Server Error during LoadLineup: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if l.Deleted() {
		http.Error(w, "Gone", http.StatusGone)
		return
	}
	writeJSON(w, http.StatusOK, a.score(l))
}

func (a *apiHandler) deleteSaved(w http.ResponseWriter, r *http.Request) {
	id, ok := a.savedID(w, r)
	if !ok {
		return
	}
	if err := a.store.DeleteLineup(id); err != nil {
		log.Printf("Internal Server Error during DeleteLineup: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cacheControlMiddleware keeps API responses out of shared caches.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: blob:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs every incoming HTTP request and counts it by route.
func loggingMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("Received request: %s %s", r.Method, r.URL.Path)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		})
	}
}

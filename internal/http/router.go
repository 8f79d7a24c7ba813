// Package http serves the REST API and the WebSocket event feed.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/service/session"
	"ai-session-insights-service/internal/store/sqlite"
)

// Sessions is the session manager surface the API exposes.
type Sessions interface {
	Controller
	State() session.State
	SessionID() string
	Transcript() models.Transcript
}

// History reads closed sessions.
type History interface {
	ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error)
	GetSession(ctx context.Context, id string) (models.SessionRecord, error)
	SessionInsights(ctx context.Context, sessionID string) ([]models.Insight, error)
}

// Deps are the router's collaborators. History, Hub and Ready may be nil.
type Deps struct {
	Sessions Sessions
	History  History
	Hub      *Hub
	Ready    func() bool
}

type currentResponse struct {
	State      string            `json:"state"`
	SessionID  string            `json:"sessionId,omitempty"`
	Transcript models.Transcript `json:"transcript"`
}

type sessionResponse struct {
	models.SessionRecord
	Items []models.Insight `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if d.Ready != nil && !d.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if d.Hub != nil {
		r.Handle("/v1/ws", d.Hub)
	}

	// API routes
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			res, err := d.Sessions.Start(r.Context())
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, session.ErrSessionEnding) {
					status = http.StatusConflict
				}
				writeJSON(w, status, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
			rec, err := d.Sessions.Stop(r.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
				return
			}
			if rec == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})

		r.Get("/current", func(w http.ResponseWriter, _ *http.Request) {
			tr := d.Sessions.Transcript()
			if tr == nil {
				tr = models.Transcript{}
			}
			writeJSON(w, http.StatusOK, currentResponse{
				State:      d.Sessions.State().String(),
				SessionID:  d.Sessions.SessionID(),
				Transcript: tr,
			})
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if d.History == nil {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history unavailable"})
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			list, err := d.History.ListSessions(r.Context(), limit)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
				return
			}
			if list == nil {
				list = []models.SessionRecord{}
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if d.History == nil {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history unavailable"})
				return
			}
			id := chi.URLParam(r, "id")
			rec, err := d.History.GetSession(r.Context(), id)
			if errors.Is(err, sqlite.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
				return
			}
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
				return
			}
			items, err := d.History.SessionInsights(r.Context(), id)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
				return
			}
			if items == nil {
				items = []models.Insight{}
			}
			writeJSON(w, http.StatusOK, sessionResponse{SessionRecord: rec, Items: items})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

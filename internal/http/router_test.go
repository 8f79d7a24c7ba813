package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"ai-session-insights-service/internal/models"
	"ai-session-insights-service/internal/service/session"
	"ai-session-insights-service/internal/store/sqlite"
)

type fakeSessions struct {
	state    session.State
	id       string
	startErr error
	record   *models.SessionRecord
	tr       models.Transcript
}

func (f *fakeSessions) Start(context.Context) (session.StartResult, error) {
	if f.startErr != nil {
		return session.StartResult{}, f.startErr
	}
	return session.StartResult{SessionID: f.id}, nil
}

func (f *fakeSessions) Stop(context.Context) (*models.SessionRecord, error) { return f.record, nil }
func (f *fakeSessions) State() session.State                                { return f.state }
func (f *fakeSessions) SessionID() string                                   { return f.id }
func (f *fakeSessions) Transcript() models.Transcript                       { return f.tr }

type fakeHistory struct {
	records  []models.SessionRecord
	insights []models.Insight
	limit    int
}

func (f *fakeHistory) ListSessions(_ context.Context, limit int) ([]models.SessionRecord, error) {
	f.limit = limit
	return f.records, nil
}

func (f *fakeHistory) GetSession(_ context.Context, id string) (models.SessionRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.SessionRecord{}, sqlite.ErrNotFound
}

func (f *fakeHistory) SessionInsights(context.Context, string) ([]models.Insight, error) {
	return f.insights, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	ready := false
	r := NewRouter(Deps{Sessions: &fakeSessions{}, Ready: func() bool { return ready }})

	if rec := do(t, r, http.MethodGet, "/v1/liveness"); rec.Code != http.StatusOK {
		t.Errorf("expected liveness 200, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/v1/readiness"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected readiness 503, got %d", rec.Code)
	}
	ready = true
	if rec := do(t, r, http.MethodGet, "/v1/readiness"); rec.Code != http.StatusOK {
		t.Errorf("expected readiness 200, got %d", rec.Code)
	}
}

func TestRouter_StartStop(t *testing.T) {
	tests := []struct {
		name     string
		sessions *fakeSessions
		method   string
		path     string
		want     int
	}{
		{"start", &fakeSessions{id: "s1"}, http.MethodPost, "/v1/sessions/start", http.StatusOK},
		{"start while ending", &fakeSessions{startErr: session.ErrSessionEnding}, http.MethodPost, "/v1/sessions/start", http.StatusConflict},
		{"start failure", &fakeSessions{startErr: errors.New("boom")}, http.MethodPost, "/v1/sessions/start", http.StatusInternalServerError},
		{"stop idle", &fakeSessions{}, http.MethodPost, "/v1/sessions/stop", http.StatusNoContent},
		{"stop active", &fakeSessions{record: &models.SessionRecord{ID: "s1"}}, http.MethodPost, "/v1/sessions/stop", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewRouter(Deps{Sessions: tt.sessions}), tt.method, tt.path)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRouter_StartBody(t *testing.T) {
	rec := do(t, NewRouter(Deps{Sessions: &fakeSessions{id: "s1"}}), http.MethodPost, "/v1/sessions/start")

	var res session.StartResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SessionID != "s1" {
		t.Errorf("expected s1, got %s", res.SessionID)
	}
}

func TestRouter_Current(t *testing.T) {
	s := &fakeSessions{state: session.StateRecording, id: "s1", tr: models.Transcript{{Text: "hello"}}}
	rec := do(t, NewRouter(Deps{Sessions: s}), http.MethodGet, "/v1/sessions/current")

	var res currentResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.State != session.StateRecording.String() {
		t.Errorf("expected state %s, got %s", session.StateRecording, res.State)
	}
	if len(res.Transcript) != 1 || res.Transcript[0].Text != "hello" {
		t.Errorf("expected one transcript item, got %+v", res.Transcript)
	}
}

func TestRouter_History(t *testing.T) {
	h := &fakeHistory{
		records:  []models.SessionRecord{{ID: "s1", Insights: 1}},
		insights: []models.Insight{{SessionID: "s1", Sequence: 1, Text: "hi"}},
	}
	r := NewRouter(Deps{Sessions: &fakeSessions{}, History: h})

	rec := do(t, r, http.MethodGet, "/v1/sessions?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if h.limit != 5 {
		t.Errorf("expected limit 5, got %d", h.limit)
	}

	rec = do(t, r, http.MethodGet, "/v1/sessions/s1")
	var res sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ID != "s1" || len(res.Items) != 1 {
		t.Errorf("expected s1 with one item, got %+v", res)
	}

	if rec := do(t, r, http.MethodGet, "/v1/sessions/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_NoHistory(t *testing.T) {
	rec := do(t, NewRouter(Deps{Sessions: &fakeSessions{}}), http.MethodGet, "/v1/sessions")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(Deps{Sessions: &fakeSessions{}, Hub: hub}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return conn, ctx
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub(&fakeSessions{id: "s1"})
	conn, ctx := dialHub(t, hub)

	hub.UtteranceReady(ctx, models.UtteranceReady{EventType: models.EventUtteranceReady, SessionID: "s1"})
	hub.SessionClosed(ctx, models.SessionClosed{EventType: models.EventSessionClosed, SessionID: "s1"})

	for _, want := range []string{models.EventUtteranceReady, models.EventSessionClosed} {
		var got map[string]any
		if err := wsjson.Read(ctx, conn, &got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got["eventType"] != want {
			t.Errorf("expected %s, got %v", want, got["eventType"])
		}
	}
}

func TestHub_Commands(t *testing.T) {
	hub := NewHub(&fakeSessions{id: "s1", record: &models.SessionRecord{ID: "s1"}})
	conn, ctx := dialHub(t, hub)

	tests := []struct {
		cmd  string
		want string
	}{
		{"start", "started"},
		{"stop", "stopped"},
		{"dance", "error"},
	}
	for _, tt := range tests {
		if err := wsjson.Write(ctx, conn, Command{Type: tt.cmd}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var reply Reply
		if err := wsjson.Read(ctx, conn, &reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		if reply.Type != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.cmd, tt.want, reply.Type)
		}
	}
}

func TestHub_NoClients(t *testing.T) {
	hub := NewHub(nil)
	hub.SessionEnding(context.Background(), models.SessionEnding{})
	if hub.Clients() != 0 {
		t.Errorf("expected no clients, got %d", hub.Clients())
	}
	if r := hub.handle(context.Background(), Command{Type: "start"}); r.Type != "error" {
		t.Errorf("expected error without sessions, got %s", r.Type)
	}
}

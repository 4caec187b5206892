package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnstream/turnstream/internal/agent"
	"github.com/turnstream/turnstream/internal/emitter"
	"github.com/turnstream/turnstream/internal/session"
	"github.com/turnstream/turnstream/internal/tasks"
	"github.com/turnstream/turnstream/internal/user"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	agents := agent.NewStore()
	users := user.NewStore()
	factory := agent.NewFactory()
	factory.RegisterRunner(agent.EchoRunnerType, agent.NewEchoRunner())

	em := emitter.New()
	t.Cleanup(func() { em.Close() })

	taskSvc := tasks.New()
	store := session.NewStore()
	sessionSvc := session.NewService(store, agents, factory, taskSvc, em)

	cfg := DefaultConfig()
	return New(cfg, sessionSvc, agents, users)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func createTestAgent(t *testing.T, srv *Server) AgentDTO {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/agents", AgentCreationParams{Type: agent.EchoRunnerType, Name: "Echo"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var a AgentDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	return a
}

func TestCreateAndGetAgent(t *testing.T) {
	srv := newTestServer(t)
	a := createTestAgent(t, srv)
	assert.Equal(t, agent.EchoRunnerType, a.Type)
	assert.Equal(t, "Echo", a.Name)

	rec := doJSON(t, srv, http.MethodGet, "/api/agents/"+string(a.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetAgent_NotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/agents/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSession_NoGreeting(t *testing.T) {
	srv := newTestServer(t)
	a := createTestAgent(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", SessionCreationParams{AgentID: a.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	var s SessionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, a.ID, s.AgentID)

	events := doJSON(t, srv, http.MethodGet, "/api/sessions/"+string(s.ID)+"/events", nil)
	assert.Equal(t, http.StatusOK, events.Code)
	assert.JSONEq(t, `{"data":[]}`, events.Body.String())
}

func TestCreateSession_MissingAgent(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", SessionCreationParams{AgentID: "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEvents_UnknownSession(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/does-not-exist/events", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestStreamEvent_SingleTurn drives a full turn through the SSE bridge:
// posting a user message streams the echo runner's typing status, its
// message, and its completed status, then the stream closes. The
// recorder never closes its request context, so the only way the
// handler returns is via the terminal-status exit path.
func TestStreamEvent_SingleTurn(t *testing.T) {
	srv := newTestServer(t)
	a := createTestAgent(t, srv)

	sessRec := doJSON(t, srv, http.MethodPost, "/api/sessions", SessionCreationParams{AgentID: a.ID})
	require.Equal(t, http.StatusCreated, sessRec.Code)
	var s SessionDTO
	require.NoError(t, json.Unmarshal(sessRec.Body.Bytes(), &s))

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+string(s.ID)+"/events/stream", EventCreationParams{
		Type:    "message",
		Source:  "user",
		Content: "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, `"status":"typing"`)
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, "hello from echo")
	assert.Contains(t, body, `"status":"completed"`)

	events := doJSON(t, srv, http.MethodGet, "/api/sessions/"+string(s.ID)+"/events", nil)
	assert.Equal(t, http.StatusOK, events.Code)

	var payload struct {
		Data []EventDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(events.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 4) // user message, typing, echo message, completed

	sources := make([]string, len(payload.Data))
	for i, e := range payload.Data {
		sources[i] = string(e.Source)
	}
	assert.Equal(t, []string{"user", "ai_agent", "ai_agent", "ai_agent"}, sources)
}

func TestStreamEvent_RejectsWrongShape(t *testing.T) {
	srv := newTestServer(t)
	a := createTestAgent(t, srv)
	sessRec := doJSON(t, srv, http.MethodPost, "/api/sessions", SessionCreationParams{AgentID: a.ID})
	var s SessionDTO
	require.NoError(t, json.Unmarshal(sessRec.Body.Bytes(), &s))

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+string(s.ID)+"/events/stream", EventCreationParams{
		Type:   "tool",
		Source: "user",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListEvents_FiltersBySource(t *testing.T) {
	srv := newTestServer(t)
	a := createTestAgent(t, srv)
	sessRec := doJSON(t, srv, http.MethodPost, "/api/sessions", SessionCreationParams{AgentID: a.ID})
	var s SessionDTO
	require.NoError(t, json.Unmarshal(sessRec.Body.Bytes(), &s))

	doJSON(t, srv, http.MethodPost, "/api/sessions/"+string(s.ID)+"/events/stream", EventCreationParams{
		Type: "message", Source: "user", Content: "hi",
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/"+string(s.ID)+"/events?source=user", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data []EventDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	assert.True(t, strings.Contains(string(payload.Data[0].Source), "user"))
}

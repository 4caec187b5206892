package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turnstream/turnstream/internal/session"
	"github.com/turnstream/turnstream/pkg/types"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var params SessionCreationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, fmt.Errorf("%w: decoding body: %v", ErrValidationError, err))
		return
	}

	ag, ok := s.agents.Get(params.AgentID)
	if !ok {
		writeError(w, fmt.Errorf("%w: agent not found: %s", ErrInvalidRequest, params.AgentID))
		return
	}

	allowGreeting := r.URL.Query().Get("allow_greeting") == "true"
	guest := s.users.EnsureNoopUser()

	sess, err := s.sessions.CreateUserSession(r.Context(), guest.ID, ag, session.CreateUserSessionParams{
		CreateSessionParams: session.CreateSessionParams{
			ID:    types.SessionId(params.ID),
			Title: params.Title,
		},
		AllowGreeting: allowGreeting,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionToDTO(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := types.SessionId(chi.URLParam(r, "id"))
	sess, ok := s.sessions.Store().ReadSession(id)
	if !ok {
		writeErrorDetail(w, http.StatusNotFound, "session not found: "+string(id))
		return
	}
	writeJSON(w, http.StatusOK, sessionToDTO(sess))
}

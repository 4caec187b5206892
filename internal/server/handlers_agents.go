package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turnstream/turnstream/pkg/types"
)

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var params AgentCreationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, fmt.Errorf("%w: decoding body: %v", ErrValidationError, err))
		return
	}

	a := s.agents.Create(params.Type, params.Name, params.Description)
	writeJSON(w, http.StatusCreated, agentToDTO(a))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := types.AgentId(chi.URLParam(r, "id"))
	a, ok := s.agents.Get(id)
	if !ok {
		writeErrorDetail(w, http.StatusNotFound, "agent not found: "+string(id))
		return
	}
	writeJSON(w, http.StatusOK, agentToDTO(a))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	list := s.agents.List()
	dtos := make([]AgentDTO, 0, len(list))
	for _, a := range list {
		dtos = append(dtos, agentToDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": dtos})
}

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/turnstream/turnstream/internal/session"
	"github.com/turnstream/turnstream/pkg/types"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id := types.SessionId(chi.URLParam(r, "id"))
	if _, ok := s.sessions.Store().ReadSession(id); !ok {
		writeErrorDetail(w, http.StatusBadRequest, "session not found: "+string(id))
		return
	}

	q := r.URL.Query()
	params := session.ListEventsParams{
		Source:         types.EventSource(q.Get("source")),
		CorrelationID:  q.Get("correlation_id"),
		ExcludeDeleted: true,
	}
	if raw := q.Get("min_offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorDetail(w, http.StatusBadRequest, "invalid min_offset: "+raw)
			return
		}
		params.MinOffset = &n
	}
	if raw := q.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			params.Types = append(params.Types, types.EventType(t))
		}
	}

	events := s.sessions.Store().ListEvents(id, params)
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": dtos})
}

package server

import (
	"time"

	"github.com/turnstream/turnstream/pkg/types"
)

// AgentDTO is the wire shape of an Agent.
type AgentDTO struct {
	ID          types.AgentId `json:"id"`
	Type        string        `json:"type"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

func agentToDTO(a types.Agent) AgentDTO {
	return AgentDTO{
		ID:          a.ID,
		Type:        a.Type,
		Name:        a.Name,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
}

// SessionDTO is the wire shape of a Session.
type SessionDTO struct {
	ID                 types.SessionId          `json:"id"`
	UserID             types.UserId             `json:"user_id"`
	AgentID            types.AgentId            `json:"agent_id"`
	Mode               types.SessionMode        `json:"mode"`
	Title              *string                  `json:"title,omitempty"`
	ConsumptionOffsets types.ConsumptionOffsets `json:"consumption_offsets"`
	CreatedAt          time.Time                `json:"created_at"`
}

func sessionToDTO(s types.Session) SessionDTO {
	return SessionDTO{
		ID:                 s.ID,
		UserID:             s.UserID,
		AgentID:            s.AgentID,
		Mode:               s.Mode,
		Title:              s.Title,
		ConsumptionOffsets: s.ConsumptionOffsets,
		CreatedAt:          s.CreatedAt,
	}
}

// EventDTO is the wire shape of an Event.
type EventDTO struct {
	ID            types.EventId     `json:"id"`
	SessionID     types.SessionId   `json:"session_id"`
	Source        types.EventSource `json:"source"`
	Type          types.EventType   `json:"type"`
	Offset        int               `json:"offset"`
	CorrelationID string            `json:"correlation_id"`
	Data          any               `json:"data"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func eventToDTO(e types.Event) EventDTO {
	return EventDTO{
		ID:            e.ID,
		SessionID:     e.SessionID,
		Source:        e.Source,
		Type:          e.Type,
		Offset:        e.Offset,
		CorrelationID: e.CorrelationID,
		Data:          e.Data,
		Metadata:      e.Metadata,
		CreatedAt:     e.CreatedAt,
	}
}

// AgentCreationParams is the POST /api/agents request body.
type AgentCreationParams struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description *string `json:"description,omitempty"`
}

// SessionCreationParams is the POST /api/sessions request body.
type SessionCreationParams struct {
	AgentID types.AgentId `json:"agent_id"`
	ID      string        `json:"id,omitempty"`
	Title   *string       `json:"title,omitempty"`
}

// EventCreationParams is the POST .../events/stream request body.
// Only type=message, source=user is accepted; every other
// combination fails validation with HTTP 422.
type EventCreationParams struct {
	Type    types.EventType   `json:"type"`
	Source  types.EventSource `json:"source"`
	Content string            `json:"content"`
}

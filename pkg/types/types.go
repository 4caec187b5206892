// Package types holds the data model shared across the session
// runtime: identifiers, agents, users, sessions, and the append-only
// event log's payload variants.
package types

import "time"

// UserId, AgentId, SessionId, and EventId are nominal id kinds; all
// ids are opaque 10-character alphanumeric strings generated by
// internal/ids.
type (
	UserId    string
	AgentId   string
	SessionId string
	EventId   string
)

// Agent selects a runner implementation by Type. Immutable after
// creation.
type Agent struct {
	ID          AgentId   `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a Agent) DocID() string { return string(a.ID) }

// User is the external principal a session belongs to.
type User struct {
	ID        UserId    `json:"id"`
	Sub       string    `json:"sub"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) DocID() string { return string(u.ID) }

// SessionMode selects whether a session's agent responds on its own
// (auto) or only when explicitly dispatched (manual).
type SessionMode string

const (
	SessionModeAuto   SessionMode = "auto"
	SessionModeManual SessionMode = "manual"
)

// ConsumptionOffsets maps a consumer id to the highest event offset it
// has acknowledged. The default consumer key is "client".
type ConsumptionOffsets map[string]int

// DefaultConsumer is the consumption-offset key used when a caller
// does not name a specific consumer.
const DefaultConsumer = "client"

// Session is never deleted implicitly; deleting one cascades to its
// events.
type Session struct {
	ID                 SessionId          `json:"id"`
	UserID             UserId             `json:"user_id"`
	AgentID            AgentId            `json:"agent_id"`
	Mode               SessionMode        `json:"mode"`
	Title              *string            `json:"title,omitempty"`
	ConsumptionOffsets ConsumptionOffsets `json:"consumption_offsets"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (s Session) DocID() string { return string(s.ID) }

// EventSource identifies who or what produced an event.
type EventSource string

const (
	SourceUser                   EventSource = "user"
	SourceAIAgent                EventSource = "ai_agent"
	SourceHumanAgent             EventSource = "human_agent"
	SourceHumanAgentOnBehalfOfAI EventSource = "human_agent_on_behalf_of_ai_agent"
	SourceSystem                 EventSource = "system"
)

// EventType tags the shape of an Event's Data payload.
type EventType string

const (
	EventTypeMessage EventType = "message"
	EventTypeStatus  EventType = "status"
	EventTypeTool    EventType = "tool"
	EventTypeCustom  EventType = "custom"
)

// Event is the append-only unit of the per-session event log. Offset
// is assigned at append time as the count of non-deleted events
// already in the session; offsets are strictly monotonic and
// gap-free.
type Event struct {
	ID            EventId        `json:"id"`
	SessionID     SessionId      `json:"session_id"`
	Source        EventSource    `json:"source"`
	Type          EventType      `json:"type"`
	Offset        int            `json:"offset"`
	CorrelationID string         `json:"correlation_id"`
	Data          any            `json:"data"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Deleted       bool           `json:"deleted"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (e Event) DocID() string { return string(e.ID) }

// Participant names who authored a message part.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ContentPart is the extensible variant of a message's parts; today
// only the "content" kind exists.
type ContentPart struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// MessageEventData is the payload of an Event with Type message.
type MessageEventData struct {
	Type        string        `json:"type"`
	Participant Participant   `json:"participant"`
	Parts       []ContentPart `json:"parts"`
	Flagged     *bool         `json:"flagged,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// Status is the enumerated value a StatusEventData carries.
type Status string

const (
	StatusTyping     Status = "typing"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// StatusEventData is the payload of an Event with Type status.
type StatusEventData struct {
	Type               string         `json:"type"`
	Status             Status         `json:"status"`
	AcknowledgedOffset *int           `json:"acknowledged_offset,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
}

// ToolCall is one invocation within a ToolEventData.
type ToolCall struct {
	ToolName  string `json:"tool_name"`
	Arguments any    `json:"arguments"`
	Result    any    `json:"result,omitempty"`
}

// ToolEventData is the payload of an Event with Type tool.
type ToolEventData struct {
	Type      string     `json:"type"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

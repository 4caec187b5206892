// Package session implements the per-session append-only event log
// and the session service that ties the runtime's components
// together for a turn.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/turnstream/turnstream/internal/ids"
	"github.com/turnstream/turnstream/pkg/types"
)

// ErrSessionNotFound is returned when an operation names a session
// that does not exist.
var ErrSessionNotFound = errors.New("session: not found")

// Store is the event log: sessions and their append-only events,
// guarded by one readers-writer lock. Reads run concurrently; event
// append and session delete are exclusive, which is what preserves
// the gap-free-offsets invariant under concurrent create_event.
type Store struct {
	mu       sync.RWMutex
	sessions map[types.SessionId]types.Session
	events   map[types.SessionId][]types.Event
}

// NewStore returns an empty event log.
func NewStore() *Store {
	return &Store{
		sessions: make(map[types.SessionId]types.Session),
		events:   make(map[types.SessionId][]types.Event),
	}
}

// CreateSessionParams are the optional fields accepted by
// CreateSession; zero values mean "generate" or "default".
type CreateSessionParams struct {
	ID        types.SessionId
	Mode      types.SessionMode
	Title     *string
	CreatedAt time.Time
}

// CreateSession persists a new session with consumption_offsets
// initialized to {"client": 0}.
func (s *Store) CreateSession(userID types.UserId, agentID types.AgentId, params CreateSessionParams) types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := params.ID
	if id == "" {
		id = types.SessionId(ids.New())
	}
	mode := params.Mode
	if mode == "" {
		mode = types.SessionModeAuto
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	sess := types.Session{
		ID:                 id,
		UserID:             userID,
		AgentID:            agentID,
		Mode:               mode,
		Title:              params.Title,
		ConsumptionOffsets: types.ConsumptionOffsets{types.DefaultConsumer: 0},
		CreatedAt:          createdAt,
	}
	s.sessions[id] = sess
	return sess
}

// ReadSession returns the session with id, or ok=false.
func (s *Store) ReadSession(id types.SessionId) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// DeleteSession atomically removes a session's events then the
// session record itself, reporting whether the session existed.
func (s *Store) DeleteSession(id types.SessionId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.events, id)
	delete(s.sessions, id)
	return true
}

// ListSessions returns every session matching the AND of the
// non-empty filters.
func (s *Store) ListSessions(agentID types.AgentId, userID types.UserId) []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Session
	for _, sess := range s.sessions {
		if agentID != "" && sess.AgentID != agentID {
			continue
		}
		if userID != "" && sess.UserID != userID {
			continue
		}
		out = append(out, sess)
	}
	return out
}

// CreateEventParams are the optional fields accepted by CreateEvent.
type CreateEventParams struct {
	Metadata  map[string]any
	CreatedAt time.Time
}

// CreateEvent appends a new event to sessionID's log. offset is
// assigned as the current count of non-deleted events, and the
// count-then-insert pair is performed under the store's writer lock
// so concurrent appends can never race on offset assignment.
func (s *Store) CreateEvent(sessionID types.SessionId, source types.EventSource, typ types.EventType, correlationID string, data any, params CreateEventParams) (types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return types.Event{}, ErrSessionNotFound
	}

	offset := countNonDeleted(s.events[sessionID])
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	evt := types.Event{
		ID:            types.EventId(ids.New()),
		SessionID:     sessionID,
		Source:        source,
		Type:          typ,
		Offset:        offset,
		CorrelationID: correlationID,
		Data:          data,
		Metadata:      params.Metadata,
		CreatedAt:     createdAt,
	}
	s.events[sessionID] = append(s.events[sessionID], evt)
	return evt, nil
}

func countNonDeleted(events []types.Event) int {
	n := 0
	for _, e := range events {
		if !e.Deleted {
			n++
		}
	}
	return n
}

// ReadEvent returns the event with eventID in sessionID's log, or
// ok=false.
func (s *Store) ReadEvent(sessionID types.SessionId, eventID types.EventId) (types.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events[sessionID] {
		if e.ID == eventID {
			return e, true
		}
	}
	return types.Event{}, false
}

// ListEventsParams are the optional filters accepted by ListEvents.
type ListEventsParams struct {
	Source         types.EventSource
	CorrelationID  string
	Types          []types.EventType
	MinOffset      *int
	ExcludeDeleted bool
}

// ListEvents returns sessionID's events in insertion order, filtered
// by the AND of every non-empty field in params.
func (s *Store) ListEvents(sessionID types.SessionId, params ListEventsParams) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Event
	for _, e := range s.events[sessionID] {
		if params.ExcludeDeleted && e.Deleted {
			continue
		}
		if params.Source != "" && e.Source != params.Source {
			continue
		}
		if params.CorrelationID != "" && e.CorrelationID != params.CorrelationID {
			continue
		}
		if len(params.Types) > 0 && !containsType(params.Types, e.Type) {
			continue
		}
		if params.MinOffset != nil && e.Offset < *params.MinOffset {
			continue
		}
		out = append(out, e)
	}
	return out
}

func containsType(wanted []types.EventType, t types.EventType) bool {
	for _, w := range wanted {
		if w == t {
			return true
		}
	}
	return false
}

// DeleteEvent soft-deletes the event with eventID across all
// sessions, reporting whether it existed and was not already deleted.
func (s *Store) DeleteEvent(eventID types.EventId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sessionID, events := range s.events {
		for i, e := range events {
			if e.ID == eventID {
				if e.Deleted {
					return false
				}
				events[i].Deleted = true
				s.events[sessionID] = events
				return true
			}
		}
	}
	return false
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/turnstream/turnstream/internal/chunkstore"
	"github.com/turnstream/turnstream/internal/logging"
	"github.com/turnstream/turnstream/internal/session"
	"github.com/turnstream/turnstream/pkg/types"
)

// sseWriter wraps an http.ResponseWriter with SSE framing and
// reliable flushing via http.ResponseController.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errors.New("streaming not supported")
	}
	return &sseWriter{w: w, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *Server) handleStreamEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := types.SessionId(chi.URLParam(r, "id"))
	sess, ok := s.sessions.Store().ReadSession(sessionID)
	if !ok {
		writeErrorDetail(w, http.StatusBadRequest, "session not found: "+string(sessionID))
		return
	}

	var params EventCreationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, fmt.Errorf("%w: decoding body: %v", ErrValidationError, err))
		return
	}
	if params.Type != types.EventTypeMessage || params.Source != types.SourceUser {
		writeError(w, fmt.Errorf("%w: only type=message, source=user is accepted for posting", ErrValidationError))
		return
	}

	ag, ok := s.sessions.AgentFor(sess)
	if !ok {
		writeError(w, fmt.Errorf("%w: agent not found for session", ErrInvalidRequest))
		return
	}

	data := types.MessageEventData{
		Type:        string(types.EventTypeMessage),
		Participant: types.Participant{ID: string(sess.UserID), Name: "user"},
		Parts:       []types.ContentPart{{Type: "content", Content: params.Content}},
	}

	evt, err := s.sessions.PostEvent(r.Context(), sess, ag, types.EventTypeMessage, data, session.PostEventParams{
		Source:            types.SourceUser,
		TriggerProcessing: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.runSSEBridge(w, r, sess, evt.CorrelationID)
}

// item is whatever the emitter's two subscriptions enqueue: either a
// ChunkEvent or an EmittedEvent.
type item struct {
	chunk *chunkstore.ChunkEvent
	final *chunkstore.EmittedEvent
}

// runSSEBridge couples a live HTTP request to a correlation-scoped
// subscription: it fans chunk and final events from the emitter into
// SSE frames, persisting every final event via the event log first so
// that anything observed in-stream is also visible to list_events.
func (s *Server) runSSEBridge(w http.ResponseWriter, r *http.Request, sess types.Session, correlationID string) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeErrorDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	items := make(chan item, 16)
	em := s.sessions.Emitter()

	chunkSub, err := em.SubscribeProcessed(correlationID, func(c chunkstore.ChunkEvent) {
		items <- item{chunk: &c}
	})
	if err != nil {
		logging.Error().Err(err).Msg("sse: failed to subscribe to chunks")
		return
	}
	finalSub, err := em.SubscribeFinal(correlationID, func(e chunkstore.EmittedEvent) {
		items <- item{final: &e}
	})
	if err != nil {
		logging.Error().Err(err).Msg("sse: failed to subscribe to final events")
		em.UnsubscribeProcessed(chunkSub)
		return
	}

	unsubscribed := false
	unsubscribe := func() {
		if unsubscribed {
			return
		}
		unsubscribed = true
		em.UnsubscribeProcessed(chunkSub)
		em.UnsubscribeFinal(finalSub)
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("sse: bridge panicked")
		}
		unsubscribe()
	}()

	idleTimeout := s.config.SSEIdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.sessions.CancelProcessingSessionTask(sess.ID)
			return

		case <-timer.C:
			s.sessions.CancelProcessingSessionTask(sess.ID)
			return

		case it := <-items:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idleTimeout)

			if it.chunk != nil {
				if err := sse.writeEvent("chunk", it.chunk); err != nil {
					return
				}
				continue
			}

			terminal, err := s.handleFinalEvent(sse, sess, it.final)
			if err != nil {
				sse.writeEvent("error", map[string]string{"message": err.Error()})
				return
			}
			if terminal {
				return
			}
		}
	}
}

// handleFinalEvent persists a finalized event and, unless it is a
// suppressed empty-parts message, writes its SSE frame. It reports
// whether the event is terminal for its correlation (status
// completed or cancelled), which ends the stream.
func (s *Server) handleFinalEvent(sse *sseWriter, sess types.Session, evt *chunkstore.EmittedEvent) (bool, error) {
	persisted, err := s.sessions.Store().CreateEvent(
		sess.ID,
		types.EventSource(evt.Source),
		types.EventType(evt.Type),
		evt.CorrelationID,
		evt.Data,
		session.CreateEventParams{Metadata: evt.Metadata},
	)
	if err != nil {
		return false, err
	}

	terminal := false
	if evt.Type == string(types.EventTypeStatus) {
		var status types.StatusEventData
		if err := json.Unmarshal(evt.Data, &status); err == nil {
			terminal = status.Status == types.StatusCompleted || status.Status == types.StatusCancelled
		}
	}

	if evt.Type == string(types.EventTypeMessage) && isEmptyMessage(evt.Data) {
		return terminal, nil
	}

	if err := sse.writeEvent(evt.Type, eventToDTO(persisted)); err != nil {
		return terminal, err
	}
	return terminal, nil
}

func isEmptyMessage(raw json.RawMessage) bool {
	var msg types.MessageEventData
	if err := json.Unmarshal(raw, &msg); err != nil {
		return false
	}
	return len(msg.Parts) == 0
}

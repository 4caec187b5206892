package session

import (
	"context"
	"fmt"

	"github.com/turnstream/turnstream/internal/agent"
	"github.com/turnstream/turnstream/internal/correlator"
	"github.com/turnstream/turnstream/internal/emitter"
	"github.com/turnstream/turnstream/internal/ids"
	"github.com/turnstream/turnstream/internal/logging"
	"github.com/turnstream/turnstream/internal/tasks"
	"github.com/turnstream/turnstream/pkg/types"
)

// CancelReasonUser is the reason recorded when a caller explicitly
// cancels a session's processing task.
const CancelReasonUser = "user-cancel"

func processingTag(sessionID types.SessionId) string {
	return fmt.Sprintf("process-session(%s)", sessionID)
}

// Service is the session service: it owns turn orchestration, tying
// the event log, the background task registry, the agent factory,
// and the emitter together.
type Service struct {
	store   *Store
	agents  *agent.Store
	factory *agent.Factory
	tasks   *tasks.Service
	emitter *emitter.Emitter
}

// NewService wires a session service from its dependencies.
func NewService(store *Store, agents *agent.Store, factory *agent.Factory, taskSvc *tasks.Service, em *emitter.Emitter) *Service {
	return &Service{store: store, agents: agents, factory: factory, tasks: taskSvc, emitter: em}
}

// CreateUserSessionParams mirrors CreateSessionParams plus the
// allow_greeting flag.
type CreateUserSessionParams struct {
	CreateSessionParams
	AllowGreeting bool
}

// CreateUserSession persists a session and, if AllowGreeting is set,
// immediately dispatches its processing task.
func (s *Service) CreateUserSession(ctx context.Context, userID types.UserId, ag types.Agent, params CreateUserSessionParams) (types.Session, error) {
	sess := s.store.CreateSession(userID, ag.ID, params.CreateSessionParams)

	if params.AllowGreeting {
		if _, err := s.DispatchProcessingTask(ctx, sess, ag, ""); err != nil {
			return sess, err
		}
	}
	return sess, nil
}

// DispatchProcessingTask restarts the session's processing task. If
// correlationID is empty, a fresh correlation scope is entered. It
// returns the effective correlation id.
func (s *Service) DispatchProcessingTask(ctx context.Context, sess types.Session, ag types.Agent, correlationID string) (string, error) {
	taskCtx := ctx
	switch {
	case correlationID == "":
		taskCtx = correlator.WithScope(ctx, ids.New())
	case correlator.Current(ctx) != correlationID:
		taskCtx = correlator.WithScope(ctx, correlationID)
	}
	correlationID = correlator.Current(taskCtx)

	runner, err := s.factory.CreateRunner(ag.Type)
	if err != nil {
		return correlationID, err
	}

	tag := processingTag(sess.ID)
	s.tasks.Restart(taskCtx, tag, func(runCtx context.Context) {
		rc := agent.RunContext{SessionID: sess.ID, AgentID: ag.ID}
		if _, err := runner.Run(runCtx, rc, s.emitter); err != nil {
			logging.Error().Err(err).Str("session_id", string(sess.ID)).Msg("session: runner returned an error")
		}
	})

	return correlationID, nil
}

// CancelProcessingSessionTask cancels the processing task for
// sessionID, if any.
func (s *Service) CancelProcessingSessionTask(sessionID types.SessionId) bool {
	return s.tasks.Cancel(processingTag(sessionID), CancelReasonUser)
}

// PostEventParams configures PostEvent.
type PostEventParams struct {
	Source            types.EventSource
	TriggerProcessing bool
}

// PostEvent appends an event to the session's log and, when
// TriggerProcessing is set, dispatches a processing task under the
// same correlation id. A fresh correlation scope is entered only when
// TriggerProcessing is true; otherwise the event is recorded under
// whatever correlation id is already ambient on ctx.
func (s *Service) PostEvent(ctx context.Context, sess types.Session, ag types.Agent, typ types.EventType, data any, params PostEventParams) (types.Event, error) {
	source := params.Source
	if source == "" {
		source = types.SourceUser
	}

	eventCtx := ctx
	if params.TriggerProcessing {
		eventCtx = correlator.WithScope(ctx, ids.New())
	}
	correlationID := correlator.Current(eventCtx)

	evt, err := s.store.CreateEvent(sess.ID, source, typ, correlationID, data, CreateEventParams{})
	if err != nil {
		return types.Event{}, err
	}

	if params.TriggerProcessing {
		if _, err := s.DispatchProcessingTask(eventCtx, sess, ag, correlationID); err != nil {
			return evt, err
		}
	}
	return evt, nil
}

// AgentFor resolves the agent bound to a session, which every
// dispatch and post-event call needs but a Session only records by
// id.
func (s *Service) AgentFor(sess types.Session) (types.Agent, bool) {
	return s.agents.Get(sess.AgentID)
}

// Store exposes the underlying event log for the HTTP layer's read
// operations.
func (s *Service) Store() *Store { return s.store }

// Emitter exposes the shared emitter for the SSE bridge's
// subscriptions.
func (s *Service) Emitter() *emitter.Emitter { return s.emitter }

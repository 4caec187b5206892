package agent

import (
	"context"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/turnstream/turnstream/internal/correlator"
	"github.com/turnstream/turnstream/internal/emitter"
)

// EchoRunnerType is the agent type tag for NewEchoRunner, used in
// tests and as a minimal working default.
const EchoRunnerType = "test"

// NewEchoRunner returns a Runner that announces it is typing, streams
// a one-chunk message with the fixed text "hello from echo", then
// reports completed.
// It exists to give the session runtime something real to dispatch
// without depending on an external model provider.
func NewEchoRunner() Runner {
	return RunnerFunc(func(ctx context.Context, rc RunContext, em *emitter.Emitter) (bool, error) {
		correlationID := correlator.Current(ctx)

		if err := em.EnqueueStatusEvent(correlationID, emitter.StatusEventData{Status: "typing"}, "", nil); err != nil {
			return false, err
		}

		patch, err := jsonpatch.DecodePatch([]byte(`[
			{"op":"add","path":"/participant","value":{"id":"echo","name":"Echo"}},
			{"op":"add","path":"/parts","value":[{"type":"content","content":"hello from echo"}]}
		]`))
		if err != nil {
			return false, err
		}

		eventID, err := em.EnqueueChunkEvent(correlationID, "", patch, "ai_agent", "message", nil)
		if err != nil {
			return false, err
		}
		if err := em.Finalize(correlationID, eventID); err != nil {
			return false, err
		}

		if err := em.EnqueueStatusEvent(correlationID, emitter.StatusEventData{Status: "completed"}, "", nil); err != nil {
			return false, err
		}
		return true, nil
	})
}

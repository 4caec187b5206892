package session

import (
	"context"
	"testing"
	"time"

	"github.com/turnstream/turnstream/internal/agent"
	"github.com/turnstream/turnstream/internal/emitter"
	"github.com/turnstream/turnstream/internal/tasks"
	"github.com/turnstream/turnstream/pkg/types"
)

func newTestService(t *testing.T) (*Service, types.Agent) {
	t.Helper()
	agentStore := agent.NewStore()
	factory := agent.NewFactory()
	factory.RegisterRunner(agent.EchoRunnerType, agent.NewEchoRunner())
	ag := agentStore.Create(agent.EchoRunnerType, "Echo", nil)

	svc := NewService(NewStore(), agentStore, factory, tasks.New(), emitter.New())
	return svc, ag
}

func TestCreateUserSession_NoGreetingStartsNoTask(t *testing.T) {
	svc, ag := newTestService(t)
	sess, err := svc.CreateUserSession(context.Background(), "u1", ag, CreateUserSessionParams{})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}
	if sess.ConsumptionOffsets[types.DefaultConsumer] != 0 {
		t.Error("expected default consumer offset 0")
	}
	if svc.tasks.Running(processingTag(sess.ID)) {
		t.Error("expected no background task without allow_greeting")
	}
}

func TestCreateUserSession_GreetingDispatchesTask(t *testing.T) {
	svc, ag := newTestService(t)

	sess, err := svc.CreateUserSession(context.Background(), "u1", ag, CreateUserSessionParams{AllowGreeting: true})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}

	waitUntil(t, func() bool { return !svc.tasks.Running(processingTag(sess.ID)) })
}

func TestPostEvent_TriggerProcessingFalseUsesAmbientCorrelation(t *testing.T) {
	svc, ag := newTestService(t)
	sess, err := svc.CreateUserSession(context.Background(), "u1", ag, CreateUserSessionParams{})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}

	evt, err := svc.PostEvent(context.Background(), sess, ag, types.EventTypeMessage, nil, PostEventParams{TriggerProcessing: false})
	if err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
	if evt.CorrelationID != "<main>" {
		t.Errorf("expected ambient correlation id <main>, got %q", evt.CorrelationID)
	}
	if svc.tasks.Running(processingTag(sess.ID)) {
		t.Error("expected no task dispatch when trigger_processing=false")
	}
}

func TestPostEvent_TriggerProcessingTrueEntersFreshScope(t *testing.T) {
	svc, ag := newTestService(t)
	sess, err := svc.CreateUserSession(context.Background(), "u1", ag, CreateUserSessionParams{})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}

	evt, err := svc.PostEvent(context.Background(), sess, ag, types.EventTypeMessage, nil, PostEventParams{TriggerProcessing: true})
	if err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
	if evt.CorrelationID == "<main>" || evt.CorrelationID == "" {
		t.Errorf("expected a fresh non-default correlation id, got %q", evt.CorrelationID)
	}

	waitUntil(t, func() bool { return !svc.tasks.Running(processingTag(sess.ID)) })
}

func TestCancelProcessingSessionTask(t *testing.T) {
	svc, ag := newTestService(t)
	sess, err := svc.CreateUserSession(context.Background(), "u1", ag, CreateUserSessionParams{})
	if err != nil {
		t.Fatalf("CreateUserSession: %v", err)
	}

	if svc.CancelProcessingSessionTask(sess.ID) {
		t.Error("expected cancel to report false when no task is running")
	}

	if _, err := svc.DispatchProcessingTask(context.Background(), sess, ag, ""); err != nil {
		t.Fatalf("DispatchProcessingTask: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	svc.CancelProcessingSessionTask(sess.ID)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

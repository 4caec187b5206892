package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/turnstream/turnstream/internal/chunkstore"
	"github.com/turnstream/turnstream/internal/correlator"
	"github.com/turnstream/turnstream/internal/emitter"
)

func TestFactory_UnknownAgentType(t *testing.T) {
	f := NewFactory()
	_, err := f.CreateRunner("nope")
	if !errors.Is(err, ErrUnknownAgentType) {
		t.Fatalf("expected ErrUnknownAgentType, got %v", err)
	}
}

func TestFactory_RegisterAndCreate(t *testing.T) {
	f := NewFactory()
	f.RegisterRunner(EchoRunnerType, NewEchoRunner())

	runner, err := f.CreateRunner(EchoRunnerType)
	if err != nil {
		t.Fatalf("CreateRunner: %v", err)
	}
	if runner == nil {
		t.Fatal("expected non-nil runner")
	}
}

func TestStore_CreateDefaultsUnnamedAgent(t *testing.T) {
	s := NewStore()
	a := s.Create("test", "", nil)
	if a.Name != "Unnamed Agent" {
		t.Errorf("Name = %q, want Unnamed Agent", a.Name)
	}
	if a.ID == "" {
		t.Error("expected a generated id")
	}

	got, ok := s.Get(a.ID)
	if !ok || got.ID != a.ID {
		t.Fatalf("Get did not return the created agent: %+v ok=%v", got, ok)
	}
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	s.Create("test", "A", nil)
	s.Create("test", "B", nil)

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(list))
	}
}

func TestEchoRunner_EmitsTypingThenCompleted(t *testing.T) {
	em := emitter.New()
	defer em.Close()

	var statuses []string
	sub, err := em.SubscribeFinal("c1", func(evt chunkstore.EmittedEvent) {
		if evt.Type == "status" {
			statuses = append(statuses, string(evt.Data))
		}
	})
	if err != nil {
		t.Fatalf("SubscribeFinal: %v", err)
	}
	defer em.UnsubscribeFinal(sub)

	ctx := correlator.WithScope(context.Background(), "c1")
	runner := NewEchoRunner()
	ok, err := runner.Run(ctx, RunContext{}, em)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ok {
		t.Fatal("expected echo runner to report completion")
	}

	time.Sleep(20 * time.Millisecond)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 status events, got %d: %v", len(statuses), statuses)
	}
}

package emitter

import (
	"testing"
	"time"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/turnstream/turnstream/internal/chunkstore"
)

func mustPatch(t *testing.T, raw string) jsonpatch.Patch {
	t.Helper()
	p, err := jsonpatch.DecodePatch([]byte(raw))
	if err != nil {
		t.Fatalf("DecodePatch: %v", err)
	}
	return p
}

func TestEnqueueStatusEvent_DeliversToFinalSubscriber(t *testing.T) {
	e := New()
	defer e.Close()

	got := make(chan chunkstore.EmittedEvent, 1)
	sub, err := e.SubscribeFinal("c1", func(evt chunkstore.EmittedEvent) { got <- evt })
	if err != nil {
		t.Fatalf("SubscribeFinal: %v", err)
	}
	defer e.UnsubscribeFinal(sub)

	if err := e.EnqueueStatusEvent("c1", StatusEventData{Status: "typing"}, "", nil); err != nil {
		t.Fatalf("EnqueueStatusEvent: %v", err)
	}

	select {
	case evt := <-got:
		if evt.Type != "status" || evt.Source != "ai_agent" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status event")
	}
}

func TestEnqueueStatusEvent_CompletedIsTerminal(t *testing.T) {
	e := New()
	defer e.Close()

	if err := e.EnqueueStatusEvent("c1", StatusEventData{Status: "completed"}, "", nil); err != nil {
		t.Fatalf("EnqueueStatusEvent: %v", err)
	}

	got := make(chan chunkstore.EmittedEvent, 1)
	sub, err := e.SubscribeFinal("c1", func(evt chunkstore.EmittedEvent) { got <- evt })
	if err != nil {
		t.Fatalf("SubscribeFinal: %v", err)
	}
	defer e.UnsubscribeFinal(sub)

	if err := e.EnqueueStatusEvent("c1", StatusEventData{Status: "typing"}, "", nil); err != nil {
		t.Fatalf("EnqueueStatusEvent after terminal: %v", err)
	}

	select {
	case evt := <-got:
		t.Fatalf("expected no delivery after terminal status, got %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEnqueueChunkEvent_StreamsAndFinalizes(t *testing.T) {
	e := New()
	defer e.Close()

	var chunkSeqs []int
	chunkSub, err := e.SubscribeProcessed("c1", func(c chunkstore.ChunkEvent) { chunkSeqs = append(chunkSeqs, c.Seq) })
	if err != nil {
		t.Fatalf("SubscribeProcessed: %v", err)
	}
	defer e.UnsubscribeProcessed(chunkSub)

	finalCh := make(chan chunkstore.EmittedEvent, 1)
	finalSub, err := e.SubscribeFinal("c1", func(evt chunkstore.EmittedEvent) { finalCh <- evt })
	if err != nil {
		t.Fatalf("SubscribeFinal: %v", err)
	}
	defer e.UnsubscribeFinal(finalSub)

	eventID, err := e.EnqueueChunkEvent("c1", "", mustPatch(t, `[{"op":"add","path":"/parts","value":[]}]`), "ai_agent", "message", nil)
	if err != nil {
		t.Fatalf("EnqueueChunkEvent first: %v", err)
	}
	if _, err := e.EnqueueChunkEvent("c1", eventID, mustPatch(t, `[{"op":"add","path":"/parts/0","value":"hi"}]`), "ai_agent", "message", nil); err != nil {
		t.Fatalf("EnqueueChunkEvent second: %v", err)
	}
	if err := e.Finalize("c1", eventID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	select {
	case evt := <-finalCh:
		if evt.Type != "message" || evt.EventID != eventID {
			t.Fatalf("unexpected final event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for finalized event")
	}

	time.Sleep(20 * time.Millisecond)
	if len(chunkSeqs) != 2 || chunkSeqs[0] != 0 || chunkSeqs[1] != 1 {
		t.Fatalf("expected seqs [0 1], got %v", chunkSeqs)
	}
}

func TestEnqueueChunkEvent_SequenceViolationIsDroppedNotPropagated(t *testing.T) {
	e := New()
	defer e.Close()

	eventID, err := e.EnqueueChunkEvent("c1", "", mustPatch(t, `[{"op":"add","path":"/parts","value":[]}]`), "ai_agent", "message", nil)
	if err != nil {
		t.Fatalf("EnqueueChunkEvent first: %v", err)
	}

	// Force the optimistic counter out of sync with the chunk store's
	// authoritative length, the way a concurrent emit race could.
	e.mu.Lock()
	e.nextSeq[eventID] = 5
	e.mu.Unlock()

	if _, err := e.EnqueueChunkEvent("c1", eventID, mustPatch(t, `[{"op":"add","path":"/parts/0","value":"hi"}]`), "ai_agent", "message", nil); err != nil {
		t.Fatalf("expected sequence violation to be swallowed, got %v", err)
	}

	// nextSeq should have resynced to the chunk store's true length (1),
	// so the next chunk, at seq 1, is accepted rather than cascading
	// into another violation.
	if _, err := e.EnqueueChunkEvent("c1", eventID, mustPatch(t, `[{"op":"add","path":"/parts/1","value":"there"}]`), "ai_agent", "message", nil); err != nil {
		t.Fatalf("expected recovery chunk to succeed, got %v", err)
	}

	finalCh := make(chan chunkstore.EmittedEvent, 1)
	sub, err := e.SubscribeFinal("c1", func(evt chunkstore.EmittedEvent) { finalCh <- evt })
	if err != nil {
		t.Fatalf("SubscribeFinal: %v", err)
	}
	defer e.UnsubscribeFinal(sub)

	if err := e.Finalize("c1", eventID); err != nil {
		t.Fatalf("Finalize after recovery: %v", err)
	}

	select {
	case evt := <-finalCh:
		if evt.EventID != eventID {
			t.Fatalf("unexpected final event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for finalized event after sequence violation recovery")
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	e := New()
	defer e.Close()

	got := make(chan chunkstore.EmittedEvent, 1)
	sub, err := e.SubscribeFinal("c1", func(evt chunkstore.EmittedEvent) { got <- evt })
	if err != nil {
		t.Fatalf("SubscribeFinal: %v", err)
	}
	e.UnsubscribeFinal(sub)
	time.Sleep(20 * time.Millisecond)

	if err := e.EnqueueStatusEvent("c1", StatusEventData{Status: "typing"}, "", nil); err != nil {
		t.Fatalf("EnqueueStatusEvent: %v", err)
	}

	select {
	case evt := <-got:
		t.Fatalf("expected no delivery after unsubscribe, got %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

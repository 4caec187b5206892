// Package emitter exposes the runner-facing API for producing session
// events: emit a status event immediately, stream a message or tool
// event as a sequence of JSON-Patch chunks, and finalize it. It fans
// out both chunk and finalized events to per-correlation subscribers.
//
// Transport between producer and subscribers is watermill's in-memory
// gochannel pub/sub: each correlation gets its own "chunk:<id>" and
// "final:<id>" topic, and each Subscribe call against a topic yields
// an independent channel, which gives every subscriber its own
// ordered, bounded delivery queue for free.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	jsonpatch "github.com/evanphx/json-patch"

	"github.com/turnstream/turnstream/internal/chunkstore"
	"github.com/turnstream/turnstream/internal/ids"
	"github.com/turnstream/turnstream/internal/logging"
	"github.com/turnstream/turnstream/pkg/types"
)

// StatusEventData is the payload of an immediately-finalized status
// event; an alias of the persisted status payload type, since a
// status event is never chunked on the way in.
type StatusEventData = types.StatusEventData

const (
	statusCompleted = types.StatusCompleted
	statusCancelled = types.StatusCancelled
)

// ChunkSubscriber is invoked for every ChunkEvent on a correlation.
type ChunkSubscriber func(chunkstore.ChunkEvent)

// FinalSubscriber is invoked for every EmittedEvent on a correlation.
type FinalSubscriber func(chunkstore.EmittedEvent)

// Subscription is an opaque handle returned by the Subscribe* methods;
// pass it to the matching Unsubscribe* method to stop delivery.
type Subscription struct {
	cancel context.CancelFunc
}

// Emitter is the runner-facing event production API described above.
type Emitter struct {
	pubsub *gochannel.GoChannel
	chunks *chunkstore.Store

	mu       sync.Mutex
	nextSeq  map[string]int  // eventID -> next expected seq
	terminal map[string]bool // correlationID -> terminal reached
}

// New returns a ready-to-use Emitter.
func New() *Emitter {
	return &Emitter{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NopLogger{},
		),
		chunks:   chunkstore.New(),
		nextSeq:  make(map[string]int),
		terminal: make(map[string]bool),
	}
}

// Close shuts down the underlying pub/sub transport.
func (e *Emitter) Close() error {
	return e.pubsub.Close()
}

func chunkTopic(correlationID string) string { return "chunk:" + correlationID }
func finalTopic(correlationID string) string { return "final:" + correlationID }

func (e *Emitter) isTerminal(correlationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal[correlationID]
}

func (e *Emitter) markTerminal(correlationID string) {
	e.mu.Lock()
	e.terminal[correlationID] = true
	delete(e.nextSeq, correlationID)
	e.mu.Unlock()
}

// EnqueueStatusEvent emits a single final status event immediately,
// with no chunk accumulation. Once its status is "completed" or
// "cancelled" the correlation becomes terminal and every later
// enqueue on it is silently dropped.
func (e *Emitter) EnqueueStatusEvent(correlationID string, data StatusEventData, source string, metadata map[string]any) error {
	if e.isTerminal(correlationID) {
		return nil
	}
	if source == "" {
		source = "ai_agent"
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("emitter: marshaling status data: %w", err)
	}

	evt := chunkstore.EmittedEvent{
		EventID:       ids.New(),
		CorrelationID: correlationID,
		Source:        source,
		Type:          "status",
		Data:          payload,
		Metadata:      metadata,
	}

	if err := e.publishFinal(evt); err != nil {
		return err
	}

	if data.Status == statusCompleted || data.Status == statusCancelled {
		e.markTerminal(correlationID)
	}
	return nil
}

// EnqueueChunkEvent appends a chunk to the (correlationID, eventID)
// sequence, allocating eventID if empty. source and typ establish the
// eventual EmittedEvent's fields on the first chunk for a new event
// id; later chunks for the same id ignore them.
func (e *Emitter) EnqueueChunkEvent(correlationID, eventID string, patch jsonpatch.Patch, source, typ string, metadata map[string]any) (string, error) {
	if e.isTerminal(correlationID) {
		return eventID, nil
	}
	if eventID == "" {
		eventID = ids.New()
	}

	e.mu.Lock()
	seq := e.nextSeq[eventID]
	e.nextSeq[eventID] = seq + 1
	e.mu.Unlock()

	chunk := chunkstore.ChunkEvent{
		CorrelationID: correlationID,
		EventID:       eventID,
		Seq:           seq,
		Patch:         patch,
		Metadata:      metadata,
	}
	if err := e.chunks.AddChunk(chunk, source, typ); err != nil {
		// A sequence violation is local to this one chunk: log it and
		// resync the optimistic counter with the chunk store's
		// authoritative length so the next chunk or Finalize on this
		// event id proceeds instead of cascading into further
		// violations.
		logging.Error().Err(err).Str("correlation_id", correlationID).Str("event_id", eventID).Msg("emitter: dropping chunk after sequence violation")
		e.mu.Lock()
		e.nextSeq[eventID] = e.chunks.Len(correlationID, eventID)
		e.mu.Unlock()
		return eventID, nil
	}

	payload, err := json.Marshal(chunk)
	if err != nil {
		return eventID, fmt.Errorf("emitter: marshaling chunk: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubsub.Publish(chunkTopic(correlationID), msg); err != nil {
		return eventID, fmt.Errorf("emitter: publishing chunk: %w", err)
	}
	return eventID, nil
}

// Finalize folds the chunk sequence for (correlationID, eventID) and
// fans the result to final subscribers. A correlation already marked
// terminal is a no-op.
func (e *Emitter) Finalize(correlationID, eventID string) error {
	if e.isTerminal(correlationID) {
		return nil
	}

	e.mu.Lock()
	delete(e.nextSeq, eventID)
	e.mu.Unlock()

	evt, ok, err := e.chunks.FinalizeEvent(correlationID, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return e.publishFinal(evt)
}

func (e *Emitter) publishFinal(evt chunkstore.EmittedEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("emitter: marshaling final event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubsub.Publish(finalTopic(evt.CorrelationID), msg); err != nil {
		return fmt.Errorf("emitter: publishing final event: %w", err)
	}
	return nil
}

// SubscribeProcessed registers cb to be invoked, in seq order, for
// every ChunkEvent published under correlationID.
func (e *Emitter) SubscribeProcessed(correlationID string, cb ChunkSubscriber) (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := e.pubsub.Subscribe(ctx, chunkTopic(correlationID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("emitter: subscribing to chunks: %w", err)
	}

	go func() {
		for msg := range ch {
			var chunk chunkstore.ChunkEvent
			if err := json.Unmarshal(msg.Payload, &chunk); err != nil {
				logging.Error().Err(err).Msg("emitter: decoding chunk message")
				msg.Ack()
				continue
			}
			if !invokeChunk(cb, chunk) {
				msg.Ack()
				cancel()
				return
			}
			msg.Ack()
		}
	}()

	return &Subscription{cancel: cancel}, nil
}

// SubscribeFinal registers cb to be invoked, in finalize order, for
// every EmittedEvent published under correlationID.
func (e *Emitter) SubscribeFinal(correlationID string, cb FinalSubscriber) (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := e.pubsub.Subscribe(ctx, finalTopic(correlationID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("emitter: subscribing to final events: %w", err)
	}

	go func() {
		for msg := range ch {
			var evt chunkstore.EmittedEvent
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				logging.Error().Err(err).Msg("emitter: decoding final message")
				msg.Ack()
				continue
			}
			if !invokeFinal(cb, evt) {
				msg.Ack()
				cancel()
				return
			}
			msg.Ack()
		}
	}()

	return &Subscription{cancel: cancel}, nil
}

// UnsubscribeProcessed stops delivery for a subscription returned by
// SubscribeProcessed.
func (e *Emitter) UnsubscribeProcessed(sub *Subscription) {
	if sub != nil {
		sub.cancel()
	}
}

// UnsubscribeFinal stops delivery for a subscription returned by
// SubscribeFinal.
func (e *Emitter) UnsubscribeFinal(sub *Subscription) {
	if sub != nil {
		sub.cancel()
	}
}

// invokeChunk calls cb, recovering from a panic and reporting false
// so the caller drops the subscriber; other subscribers are
// unaffected since each has its own goroutine and channel.
func invokeChunk(cb ChunkSubscriber, chunk chunkstore.ChunkEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("emitter: chunk subscriber panicked, dropping subscriber")
			ok = false
		}
	}()
	cb(chunk)
	return true
}

func invokeFinal(cb FinalSubscriber, evt chunkstore.EmittedEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("emitter: final subscriber panicked, dropping subscriber")
			ok = false
		}
	}()
	cb(evt)
	return true
}

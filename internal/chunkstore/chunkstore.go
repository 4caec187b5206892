// Package chunkstore accumulates the chunk sequences runners emit for
// a single in-flight event and folds them into one finalized event.
// Chunks arrive as JSON-Patch operations applied against a document
// that starts empty; folding applies each patch in seq order.
package chunkstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
)

// ErrSequenceViolation is returned by AddChunk when seq is not exactly
// one greater than the highest seq already recorded for the bucket.
var ErrSequenceViolation = errors.New("chunkstore: sequence violation")

// ChunkEvent is one in-flight patch fragment of a streaming event. It
// is never persisted on its own; it exists only until folded by
// FinalizeEvent.
type ChunkEvent struct {
	CorrelationID string
	EventID       string
	Seq           int
	Patch         jsonpatch.Patch
	Metadata      map[string]any
	Timestamp     time.Time
}

// EmittedEvent is the finalized result of folding a chunk sequence.
// Source and Type are fixed at the first chunk for the event and
// carried through to finalization, since the chunk sequence itself
// never repeats them.
type EmittedEvent struct {
	EventID       string
	CorrelationID string
	Source        string
	Type          string
	Data          json.RawMessage
	Metadata      map[string]any
	CreatedAt     time.Time
}

type bucketKey struct {
	correlationID string
	eventID       string
}

type bucket struct {
	mu     sync.Mutex
	source string
	typ    string
	chunks []ChunkEvent
}

// Store is an in-memory map keyed by (correlation_id, event_id) to an
// ordered chunk sequence, guarded by one mutex per bucket.
type Store struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

// New returns an empty chunk store.
func New() *Store {
	return &Store{buckets: make(map[bucketKey]*bucket)}
}

// AddChunk appends chunk to its (correlation_id, event_id) bucket,
// rejecting an out-of-order seq with ErrSequenceViolation. source and
// typ establish the eventual EmittedEvent's Source/Type on the first
// chunk for this event id; later calls for the same event id ignore
// them.
func (s *Store) AddChunk(chunk ChunkEvent, source, typ string) error {
	key := bucketKey{chunk.CorrelationID, chunk.EventID}

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{source: source, typ: typ}
		s.buckets[key] = b
	}
	s.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	wantSeq := len(b.chunks)
	if chunk.Seq != wantSeq {
		return fmt.Errorf("%w: event %s expected seq %d, got %d", ErrSequenceViolation, chunk.EventID, wantSeq, chunk.Seq)
	}
	b.chunks = append(b.chunks, chunk)
	return nil
}

// Len reports how many chunks are currently recorded for
// (correlationID, eventID), i.e. the seq a caller must supply for its
// next AddChunk to succeed. It is 0 for an event with no bucket yet.
func (s *Store) Len(correlationID, eventID string) int {
	key := bucketKey{correlationID, eventID}

	s.mu.Lock()
	b, ok := s.buckets[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// FinalizeEvent folds the recorded patch sequence for (correlationID,
// eventID) starting from an empty JSON document, applying each
// chunk's patch in seq order, and purges the bucket. It returns
// ok=false if no chunks were ever recorded for the event.
func (s *Store) FinalizeEvent(correlationID, eventID string) (EmittedEvent, bool, error) {
	key := bucketKey{correlationID, eventID}

	s.mu.Lock()
	b, ok := s.buckets[key]
	if ok {
		delete(s.buckets, key)
	}
	s.mu.Unlock()

	if !ok {
		return EmittedEvent{}, false, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return EmittedEvent{}, false, nil
	}

	doc := json.RawMessage(`{}`)
	for _, c := range b.chunks {
		patched, err := c.Patch.Apply(doc)
		if err != nil {
			return EmittedEvent{}, false, fmt.Errorf("chunkstore: folding event %s at seq %d: %w", eventID, c.Seq, err)
		}
		doc = patched
	}

	return EmittedEvent{
		EventID:       eventID,
		CorrelationID: correlationID,
		Source:        b.source,
		Type:          b.typ,
		Data:          doc,
		CreatedAt:     time.Now(),
	}, true, nil
}

// Package tasks runs at most one background task per tag: starting a
// task under a tag already running fails, restarting cancels and
// awaits the prior task before starting fresh, and completion (by any
// means) removes the tag from the registry.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/turnstream/turnstream/internal/logging"
)

// ErrAlreadyRunning is returned by Start when tag already has a
// running task.
var ErrAlreadyRunning = errors.New("tasks: already running")

// Body is the function a task runs. It must return promptly once ctx
// is cancelled.
type Body func(ctx context.Context)

type entry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service is a tag-keyed registry of at most one running task per tag.
type Service struct {
	mu      sync.Mutex
	running map[string]*entry
}

// New returns an empty task service.
func New() *Service {
	return &Service{running: make(map[string]*entry)}
}

// Start runs body under tag in its own goroutine. It fails with
// ErrAlreadyRunning if tag is already in use.
func (s *Service) Start(ctx context.Context, tag string, body Body) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[tag]; ok {
		return fmt.Errorf("%w: tag %q", ErrAlreadyRunning, tag)
	}
	s.spawn(ctx, tag, body)
	return nil
}

// Restart cancels and awaits any task currently running under tag,
// then starts body fresh under the same tag. No window exists in
// which two tasks share the tag: the prior task's cancellation and
// termination both happen before the lock is reacquired to register
// the new one.
func (s *Service) Restart(ctx context.Context, tag string, body Body) {
	s.mu.Lock()
	prior, ok := s.running[tag]
	s.mu.Unlock()

	if ok {
		prior.cancel()
		<-prior.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawn(ctx, tag, body)
}

// spawn must be called with s.mu held. It registers tag and launches
// body's goroutine.
func (s *Service) spawn(ctx context.Context, tag string, body Body) {
	taskCtx, cancel := context.WithCancel(ctx)
	e := &entry{cancel: cancel, done: make(chan struct{})}
	s.running[tag] = e

	go func() {
		defer close(e.done)
		defer func() {
			if r := recover(); r != nil {
				logging.Error().Interface("panic", r).Str("tag", tag).Msg("tasks: task panicked")
			}
			s.mu.Lock()
			if s.running[tag] == e {
				delete(s.running, tag)
			}
			s.mu.Unlock()
		}()
		body(taskCtx)
	}()
}

// Cancel signals cooperative cancellation for tag, recording reason as
// the cause. It is idempotent and reports whether a task existed for tag.
func (s *Service) Cancel(tag, reason string) bool {
	s.mu.Lock()
	e, ok := s.running[tag]
	s.mu.Unlock()

	if !ok {
		return false
	}
	logging.Info().Str("tag", tag).Str("reason", reason).Msg("tasks: cancelling task")
	e.cancel()
	return true
}

// CancelAll cancels every registered task, recording reason as the cause.
func (s *Service) CancelAll(reason string) {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.running))
	for tag, e := range s.running {
		entries = append(entries, e)
		logging.Info().Str("tag", tag).Str("reason", reason).Msg("tasks: cancelling task")
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
}

// CancelMatching cancels every task whose tag matches the doublestar
// glob pattern, recording reason as the cause.
func (s *Service) CancelMatching(pattern, reason string) error {
	s.mu.Lock()
	var matched []*entry
	for tag, e := range s.running {
		ok, err := doublestar.Match(pattern, tag)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("tasks: invalid pattern %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, e)
			logging.Info().Str("tag", tag).Str("reason", reason).Msg("tasks: cancelling task")
		}
	}
	s.mu.Unlock()

	for _, e := range matched {
		e.cancel()
	}
	return nil
}

// Running reports whether tag currently has a running task.
func (s *Service) Running(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[tag]
	return ok
}

// Package correlator maintains the current correlation id for a
// logical task. The source system keeps this as a task-local stack;
// Go has no such primitive, so scopes are carried explicitly on a
// context.Context instead, per the scoped-correlation alternative
// spec.md's design notes call out.
package correlator

import "context"

// defaultID is returned when no scope has been entered.
const defaultID = "<main>"

type scopeKey struct{}

// WithScope returns a context carrying a new correlation scope. If the
// parent context already carries a scope, the new id is composed as
// "parent::child"; otherwise it is used as-is. Scopes nest: entering
// further scopes keeps composing onto the current value.
func WithScope(ctx context.Context, id string) context.Context {
	if parent, ok := From(ctx); ok {
		id = parent + "::" + id
	}
	return context.WithValue(ctx, scopeKey{}, id)
}

// From returns the correlation id bound to ctx and whether a scope has
// been entered at all.
func From(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(scopeKey{}).(string)
	return v, ok
}

// Current returns the correlation id bound to ctx, or the "<main>"
// default if no scope has been entered.
func Current(ctx context.Context) string {
	if id, ok := From(ctx); ok {
		return id
	}
	return defaultID
}

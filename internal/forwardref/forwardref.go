// Package forwardref implements the deferred-binding primitive used
// throughout the assembler to bind a symbol name to a value that may
// not exist yet — a procedure called before its definition, a label
// jumped to before it is bound, an object referenced before its
// property table is laid out.
package forwardref

import "fmt"

// Ref is either unresolved (a queue of pending callbacks) or resolved
// (a final value of T). Registering a callback on an unresolved Ref
// appends it to the queue; on a resolved Ref it fires immediately.
// Resolving an unresolved Ref fires every queued callback, in
// registration order, and transitions the Ref to resolved. Resolving
// an already-resolved Ref with an equal value is a no-op; with a
// different value it is an error — the caller asked two different
// things to be the same symbol.
//
// The zero value is a usable, unresolved Ref.
type Ref[T comparable] struct {
	resolved bool
	value    T
	pending  []func(T)
}

// Register appends cb to the callback queue if r is unresolved, or
// invokes it immediately with the resolved value otherwise.
func (r *Ref[T]) Register(cb func(T)) {
	if r.resolved {
		cb(r.value)
		return
	}
	r.pending = append(r.pending, cb)
}

// Resolve binds r to value. If r was already resolved to an unequal
// value, it returns an error describing the conflict; the caller is
// expected to treat this as a fatal compiler error. Resolving twice
// with an equal value is accepted silently.
func (r *Ref[T]) Resolve(value T) error {
	if r.resolved {
		if r.value != value {
			return fmt.Errorf("forward reference already resolved to %v, cannot resolve to %v", r.value, value)
		}
		return nil
	}
	r.resolved = true
	r.value = value
	pending := r.pending
	r.pending = nil
	for _, cb := range pending {
		cb(value)
	}
	return nil
}

// Resolved reports whether r has been bound to a final value.
func (r *Ref[T]) Resolved() bool {
	return r.resolved
}

// Value returns the bound value and true if r is resolved, or the
// zero value and false otherwise.
func (r *Ref[T]) Value() (T, bool) {
	return r.value, r.resolved
}

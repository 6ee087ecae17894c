// Package hooks runs the lifecycle callbacks composed on a document class.
package hooks

import (
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyHook is the key for the running callback's *Context
	ContextKeyHook ContextKey = "hook"
	// ContextKeySession is the key for an engine session passed through to
	// callbacks and engine calls
	ContextKeySession ContextKey = "session"
)

// Callback identifies one composed callback of a class
type Callback struct {
	Phase  schema.Phase
	Name   string
	Method schema.Method
}

// Callbacks resolves the ordered callbacks of class for phase. Each name is
// bound to the most derived method declared with it.
func Callbacks(class *schema.Class, phase schema.Phase) ([]Callback, error) {
	meta := class.Metadata()
	names := meta.CallbacksFor(phase)
	out := make([]Callback, 0, len(names))
	for _, name := range names {
		fn, ok := meta.Method(name)
		if !ok {
			return nil, &schema.ConfigError{
				Class:   class.Name(),
				Field:   name,
				Err:     schema.ErrUnknownCallback,
				Message: "callback " + name + " (" + phase.String() + ") has no method",
			}
		}
		out = append(out, Callback{Phase: phase, Name: name, Method: fn})
	}
	return out, nil
}

// HasCallbacks reports whether class registers any callback for phase
func HasCallbacks(class *schema.Class, phase schema.Phase) bool {
	return len(class.Metadata().Callbacks[phase]) > 0
}

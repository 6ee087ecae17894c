package hooks

import (
	"context"

	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Context wraps the standard context with information about the running
// callback. It is the ctx handed to every callback method.
type Context struct {
	context.Context
	class    *schema.Class
	phase    schema.Phase
	callback string
}

// NewContext creates a new callback context
func NewContext(ctx context.Context, class *schema.Class, phase schema.Phase, callback string) *Context {
	return &Context{
		Context:  ctx,
		class:    class,
		phase:    phase,
		callback: callback,
	}
}

// Value returns the context itself for ContextKeyHook
func (c *Context) Value(key any) any {
	if key == ContextKeyHook {
		return c
	}
	return c.Context.Value(key)
}

// Class returns the class whose callbacks are running
func (c *Context) Class() *schema.Class {
	return c.class
}

// Phase returns the running phase
func (c *Context) Phase() schema.Phase {
	return c.phase
}

// Callback returns the name of the running callback
func (c *Context) Callback() string {
	return c.callback
}

// Session returns the engine session passed to the operation, or nil
func (c *Context) Session() any {
	return SessionFrom(c)
}

// FromContext returns the callback context carried by ctx
func FromContext(ctx context.Context) (*Context, bool) {
	hc, ok := ctx.Value(ContextKeyHook).(*Context)
	return hc, ok
}

// PhaseFrom returns the phase of the callback running under ctx
func PhaseFrom(ctx context.Context) (schema.Phase, bool) {
	hc, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return hc.phase, true
}

// WithSession returns a context carrying an engine session. The session is
// opaque here and only handed on.
func WithSession(ctx context.Context, session any) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, ContextKeySession, session)
}

// SessionFrom returns the engine session carried by ctx, or nil
func SessionFrom(ctx context.Context) any {
	return ctx.Value(ContextKeySession)
}
